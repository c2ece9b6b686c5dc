package signal

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rishabh280305/SehatMitra-sub000/services/calls/entity"
)

// Conn is the write side of one user's live signaling connection. A gorilla
// websocket connection satisfies it; tests use in-memory fakes.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Router owns the userId -> live connection registry and relays signaling
// frames between exactly two identified parties. Delivery is best-effort and
// at-most-once: if the target has no live connection the frame is dropped.
type Router struct {
	mu    sync.RWMutex
	conns map[string]Conn
	log   *slog.Logger
}

func NewRouter(log *slog.Logger) *Router {
	return &Router{
		conns: make(map[string]Conn),
		log:   log,
	}
}

// Register binds a live connection to userID. A prior connection for the
// same user is superseded and closed: re-registration is a normal reconnect,
// not an error.
func (r *Router) Register(userID string, c Conn) {
	r.mu.Lock()
	old := r.conns[userID]
	r.conns[userID] = c
	r.mu.Unlock()

	if old != nil && old != c {
		old.Close()
		r.log.Debug("superseded prior connection", slog.String("user_id", userID))
	}
	r.log.Info("connection registered", slog.String("user_id", userID))
}

// Unregister removes the mapping for userID, but only if it still points at
// c. A stale disconnect arriving after a reconnect must not evict the
// superseding connection.
func (r *Router) Unregister(userID string, c Conn) {
	r.mu.Lock()
	if cur, ok := r.conns[userID]; ok && cur == c {
		delete(r.conns, userID)
	}
	r.mu.Unlock()
	r.log.Info("connection unregistered", slog.String("user_id", userID))
}

// Relay delivers msg to the live connection of toUserID. It never blocks on
// the remote party: either the connection exists and the write is attempted
// once, or entity.ErrDeliveryUnavailable is returned and the message dropped.
func (r *Router) Relay(ctx context.Context, fromUserID, toUserID string, msg any) error {
	r.mu.RLock()
	c, ok := r.conns[toUserID]
	r.mu.RUnlock()

	if !ok {
		r.log.Debug("relay target offline, dropping message",
			slog.String("from", fromUserID),
			slog.String("to", toUserID))
		return entity.ErrDeliveryUnavailable
	}

	if err := c.WriteJSON(msg); err != nil {
		r.log.Warn("relay write failed",
			slog.String("from", fromUserID),
			slog.String("to", toUserID),
			slog.String("error", err.Error()))
		return entity.ErrDeliveryUnavailable
	}
	return nil
}

func (r *Router) Connected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

// CloseAll tears the registry down on shutdown.
func (r *Router) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]Conn)
	r.mu.Unlock()

	for userID, c := range conns {
		if err := c.Close(); err != nil {
			r.log.Debug("close failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		}
	}
}
