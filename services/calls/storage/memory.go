package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rishabh280305/SehatMitra-sub000/services/calls/entity"
)

// memorySessionStore keeps sessions in a mutex-guarded map. It backs tests
// and single-node deployments; expiry is handled by the reaper sweep calling
// DeleteExpired.
type memorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*entity.CallSession
}

func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{
		sessions: make(map[string]*entity.CallSession),
	}
}

func (s *memorySessionStore) CreateSession(ctx context.Context, sess *entity.CallSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.CallID] = sess.Clone()
	return nil
}

func (s *memorySessionStore) UpdateSession(ctx context.Context, sess *entity.CallSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.CallID]; !ok {
		return entity.ErrCallNotFound
	}
	s.sessions[sess.CallID] = sess.Clone()
	return nil
}

func (s *memorySessionStore) GetSession(ctx context.Context, callID string) (*entity.CallSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[callID]
	if !ok {
		return nil, entity.ErrCallNotFound
	}
	return sess.Clone(), nil
}

func (s *memorySessionStore) ListSessionsByUser(ctx context.Context, userID string) ([]*entity.CallSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.CallSession
	for _, sess := range s.sessions {
		if sess.Caller.UserID == userID || sess.Receiver.UserID == userID {
			out = append(out, sess.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memorySessionStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.sessions {
		if sess.CreatedAt.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *memorySessionStore) Close() error {
	return nil
}

type memoryScheduleStore struct {
	mu        sync.RWMutex
	schedules map[string]*entity.CallSchedule
}

func NewMemoryScheduleStore() ScheduleStore {
	return &memoryScheduleStore{
		schedules: make(map[string]*entity.CallSchedule),
	}
}

func (s *memoryScheduleStore) CreateSchedule(ctx context.Context, sched *entity.CallSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[sched.ScheduleID] = sched.Clone()
	return nil
}

func (s *memoryScheduleStore) UpdateSchedule(ctx context.Context, sched *entity.CallSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[sched.ScheduleID]; !ok {
		return entity.ErrScheduleNotFound
	}
	s.schedules[sched.ScheduleID] = sched.Clone()
	return nil
}

func (s *memoryScheduleStore) GetSchedule(ctx context.Context, scheduleID string) (*entity.CallSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sched, ok := s.schedules[scheduleID]
	if !ok {
		return nil, entity.ErrScheduleNotFound
	}
	return sched.Clone(), nil
}

func (s *memoryScheduleStore) ListPendingForUser(ctx context.Context, userID string) ([]*entity.CallSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entity.CallSchedule
	for _, sched := range s.schedules {
		if sched.Status != entity.ScheduleStatusPending {
			continue
		}
		if sched.PatientID != userID || sched.HasAccepted(userID) {
			continue
		}
		out = append(out, sched.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
	return out, nil
}

func (s *memoryScheduleStore) Close() error {
	return nil
}
