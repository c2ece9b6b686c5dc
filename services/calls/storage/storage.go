package storage

import (
	"context"
	"time"

	"github.com/rishabh280305/SehatMitra-sub000/services/calls/entity"
)

// SessionStore persists call sessions. Sessions are ephemeral signaling
// artifacts: every record expires a fixed time after creation regardless of
// terminal status.
type SessionStore interface {
	CreateSession(ctx context.Context, s *entity.CallSession) error
	UpdateSession(ctx context.Context, s *entity.CallSession) error
	GetSession(ctx context.Context, callID string) (*entity.CallSession, error)
	ListSessionsByUser(ctx context.Context, userID string) ([]*entity.CallSession, error)

	// DeleteExpired removes sessions created before cutoff. Backends with
	// native key expiry may treat this as a no-op.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}

// ScheduleStore persists scheduled calls and their acceptance sets.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, s *entity.CallSchedule) error
	UpdateSchedule(ctx context.Context, s *entity.CallSchedule) error
	GetSchedule(ctx context.Context, scheduleID string) (*entity.CallSchedule, error)
	ListPendingForUser(ctx context.Context, userID string) ([]*entity.CallSchedule, error)

	Close() error
}
