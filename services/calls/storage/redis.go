package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	config "github.com/rishabh280305/SehatMitra-sub000/config/calls"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/entity"
)

const (
	sessionKeyPrefix = "call:session:"
	historyKeyPrefix = "call:history:"
	historyMaxLen    = 200
)

// redisSessionStore keeps call sessions in Redis with a per-key TTL anchored
// at creation time, which implements the record expiry rule without a sweep.
// A per-user list of call ids serves the history queries; expired sessions
// simply stop resolving.
type redisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewRedisSessionStore(cfg *config.RedisConfig, ttl time.Duration, log *slog.Logger) (SessionStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("connected to redis", slog.String("addr", cfg.Addr))
	return &redisSessionStore{client: rdb, ttl: ttl, log: log}, nil
}

// NewRedisSessionStoreFromClient wires an existing client; used by tests.
func NewRedisSessionStoreFromClient(client *redis.Client, ttl time.Duration, log *slog.Logger) SessionStore {
	return &redisSessionStore{client: client, ttl: ttl, log: log}
}

// remainingTTL anchors expiry at the session's creation time so updates
// never extend a record's life.
func (s *redisSessionStore) remainingTTL(sess *entity.CallSession) time.Duration {
	remaining := time.Until(sess.CreatedAt.Add(s.ttl))
	if remaining < time.Second {
		remaining = time.Second
	}
	return remaining
}

func (s *redisSessionStore) CreateSession(ctx context.Context, sess *entity.CallSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := s.remainingTTL(sess)
	if err := s.client.Set(ctx, sessionKeyPrefix+sess.CallID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	for _, userID := range []string{sess.Caller.UserID, sess.Receiver.UserID} {
		key := historyKeyPrefix + userID
		if err := s.client.LPush(ctx, key, sess.CallID).Err(); err != nil {
			s.log.Warn("failed to index session for user",
				slog.String("user_id", userID),
				slog.String("error", err.Error()))
			continue
		}
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			s.log.Warn("failed to set history TTL", slog.String("user_id", userID))
		}
		if err := s.client.LTrim(ctx, key, 0, historyMaxLen-1).Err(); err != nil {
			s.log.Warn("failed to trim history", slog.String("user_id", userID))
		}
	}
	return nil
}

func (s *redisSessionStore) UpdateSession(ctx context.Context, sess *entity.CallSession) error {
	exists, err := s.client.Exists(ctx, sessionKeyPrefix+sess.CallID).Result()
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if exists == 0 {
		return entity.ErrCallNotFound
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+sess.CallID, data, s.remainingTTL(sess)).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *redisSessionStore) GetSession(ctx context.Context, callID string) (*entity.CallSession, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+callID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, entity.ErrCallNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess entity.CallSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *redisSessionStore) ListSessionsByUser(ctx context.Context, userID string) ([]*entity.CallSession, error) {
	ids, err := s.client.LRange(ctx, historyKeyPrefix+userID, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	out := make([]*entity.CallSession, 0, len(ids))
	for _, id := range ids {
		sess, err := s.GetSession(ctx, id)
		if err != nil {
			if errors.Is(err, entity.ErrCallNotFound) {
				continue // expired
			}
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *redisSessionStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	// Redis expires session keys natively.
	return 0, nil
}

func (s *redisSessionStore) Close() error {
	return s.client.Close()
}
