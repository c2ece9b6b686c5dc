package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rishabh280305/SehatMitra-sub000/pkg/gen"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/consts"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/entity"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/storage"
)

// Directory resolves a user id to a participant snapshot. It fronts the
// platform user service; this subsystem never stores accounts itself.
type Directory interface {
	Resolve(ctx context.Context, userID string) (*entity.Participant, error)
}

// Relay delivers a signaling frame to a user's live connection, best-effort.
type Relay interface {
	Relay(ctx context.Context, fromUserID, toUserID string, msg any) error
}

type Usecase interface {
	InitiateCall(ctx context.Context, req *entity.InitiateCallRequest) (*entity.CallSession, error)
	GetCall(ctx context.Context, callID string) (*entity.CallSession, error)
	ListCallHistory(ctx context.Context, userID string) ([]*entity.CallSession, error)
	RecordAnswer(ctx context.Context, callID string) (*entity.CallSession, error)
	RecordEnd(ctx context.Context, callID string, reason entity.EndReason) (*entity.CallSession, error)
	RecordIceExchange(ctx context.Context, callID, fromUserID string)
	HandleDisconnect(ctx context.Context, userID string)

	CreateSchedule(ctx context.Context, req *entity.CreateScheduleRequest) (*entity.CallSchedule, error)
	GetSchedule(ctx context.Context, scheduleID string) (*entity.CallSchedule, error)
	AcceptSchedule(ctx context.Context, scheduleID, userID string, userType entity.UserType) (*entity.CallSchedule, error)
	DeclineSchedule(ctx context.Context, scheduleID string) (*entity.CallSchedule, error)
	MarkScheduleOutcome(ctx context.Context, scheduleID string, outcome entity.ScheduleOutcome) (*entity.CallSchedule, error)
	ListPendingSchedules(ctx context.Context, userID string) ([]*entity.CallSchedule, error)

	AppendTranscript(ctx context.Context, req *entity.AppendTranscriptRequest) (*entity.TranscriptSegment, error)
	RenderTranscript(ctx context.Context, callID string) (string, error)

	StartReaper(ctx context.Context)
	Shutdown()
}

type Options struct {
	Sessions  storage.SessionStore
	Schedules storage.ScheduleStore
	Directory Directory
	Relay     Relay

	RingTimeout time.Duration
	SessionTTL  time.Duration

	Log *slog.Logger
}

type usecase struct {
	sessions  storage.SessionStore
	schedules storage.ScheduleStore
	directory Directory
	relay     Relay

	ringTimeout time.Duration
	sessionTTL  time.Duration

	ids gen.UUIDGenerator
	log *slog.Logger

	// One logical lock per record id: mutations to a single call or
	// schedule are serialized, mutations to different records are not.
	// Entries are reference-counted and removed once the last holder
	// releases, so the map does not grow with every call ever made.
	locksMu sync.Mutex
	locks   map[string]*recordLock

	// Pending ring timers, cancelable on answer/reject/end.
	timersMu sync.Mutex
	timers   map[string]*time.Timer
}

func New(opts Options) Usecase {
	if opts.RingTimeout <= 0 {
		opts.RingTimeout = consts.DefaultRingTimeout
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = consts.DefaultSessionTTL
	}

	return &usecase{
		sessions:    opts.Sessions,
		schedules:   opts.Schedules,
		directory:   opts.Directory,
		relay:       opts.Relay,
		ringTimeout: opts.RingTimeout,
		sessionTTL:  opts.SessionTTL,
		ids:         gen.UUID(),
		log:         opts.Log,
		locks:       make(map[string]*recordLock),
		timers:      make(map[string]*time.Timer),
	}
}

type recordLock struct {
	mu   sync.Mutex
	refs int
}

func (u *usecase) lock(id string) func() {
	u.locksMu.Lock()
	l, ok := u.locks[id]
	if !ok {
		l = &recordLock{}
		u.locks[id] = l
	}
	l.refs++
	u.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		u.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(u.locks, id)
		}
		u.locksMu.Unlock()
	}
}

// persistWithRetry retries transient storage failures before surfacing a
// fatal error: losing a committed state transition silently is the worst
// failure mode. Not-found errors are final and returned as-is.
func (u *usecase) persistWithRetry(op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= consts.PersistRetryAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, entity.ErrCallNotFound) || errors.Is(err, entity.ErrScheduleNotFound) {
			return err
		}
		u.log.Warn("persist attempt failed",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		time.Sleep(consts.PersistRetryBackoff)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// StartReaper launches the background sweep that removes call sessions a
// fixed time after creation, terminal or not. It is independent of, and
// never a precondition for, any other operation.
func (u *usecase) StartReaper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(consts.ReapInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-u.sessionTTL)
				n, err := u.sessions.DeleteExpired(ctx, cutoff)
				if err != nil {
					u.log.Error("session sweep failed", slog.String("error", err.Error()))
					continue
				}
				if n > 0 {
					u.log.Info("reaped expired call sessions", slog.Int("count", n))
				}
			}
		}
	}()
}

func (u *usecase) Shutdown() {
	u.timersMu.Lock()
	defer u.timersMu.Unlock()
	for callID, t := range u.timers {
		t.Stop()
		delete(u.timers, callID)
	}
}
