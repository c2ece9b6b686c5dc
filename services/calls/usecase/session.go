package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rishabh280305/SehatMitra-sub000/services/calls/consts"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/entity"
)

func (u *usecase) InitiateCall(ctx context.Context, req *entity.InitiateCallRequest) (*entity.CallSession, error) {
	caller, err := u.directory.Resolve(ctx, req.CallerID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve caller %s: %w", req.CallerID, err)
	}

	receiver, err := u.directory.Resolve(ctx, req.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrReceiverUnknown, req.ReceiverID)
	}

	callID := req.CallID
	if callID == "" {
		callID = u.ids.NextString()
	}

	session := &entity.CallSession{
		CallID:         callID,
		Caller:         *caller,
		Receiver:       *receiver,
		CallType:       req.CallType,
		Status:         entity.CallStatusRinging,
		PatientID:      req.PatientID,
		ConsultationID: req.ConsultationID,
		CreatedAt:      time.Now(),
	}

	if err := u.persistWithRetry("create session", func() error {
		return u.sessions.CreateSession(ctx, session)
	}); err != nil {
		return nil, err
	}

	u.startRingTimer(callID)

	u.log.Info("call initiated",
		slog.String("call_id", callID),
		slog.String("caller", caller.UserID),
		slog.String("receiver", receiver.UserID),
		slog.String("call_type", string(req.CallType)))

	return session, nil
}

func (u *usecase) GetCall(ctx context.Context, callID string) (*entity.CallSession, error) {
	return u.sessions.GetSession(ctx, callID)
}

func (u *usecase) ListCallHistory(ctx context.Context, userID string) ([]*entity.CallSession, error) {
	return u.sessions.ListSessionsByUser(ctx, userID)
}

func (u *usecase) RecordAnswer(ctx context.Context, callID string) (*entity.CallSession, error) {
	unlock := u.lock(callID)
	defer unlock()

	session, err := u.sessions.GetSession(ctx, callID)
	if err != nil {
		return nil, err
	}

	if session.Status != entity.CallStatusRinging {
		return nil, &entity.InvalidTransitionError{
			ID:   callID,
			From: string(session.Status),
			To:   string(entity.CallStatusActive),
		}
	}

	now := time.Now()
	session.Status = entity.CallStatusActive
	session.StartTime = &now

	if err := u.persistWithRetry("record answer", func() error {
		return u.sessions.UpdateSession(ctx, session)
	}); err != nil {
		return nil, err
	}

	u.stopRingTimer(callID)

	u.log.Info("call answered", slog.String("call_id", callID))
	return session, nil
}

func (u *usecase) RecordEnd(ctx context.Context, callID string, reason entity.EndReason) (*entity.CallSession, error) {
	unlock := u.lock(callID)
	defer unlock()

	session, err := u.sessions.GetSession(ctx, callID)
	if err != nil {
		return nil, err
	}

	target, from, ok := reason.TargetStatus()
	if !ok {
		return nil, fmt.Errorf("unknown end reason %q", reason)
	}
	if session.Status != from {
		return nil, &entity.InvalidTransitionError{
			ID:   callID,
			From: string(session.Status),
			To:   string(target),
		}
	}

	now := time.Now()
	session.Status = target
	session.EndTime = &now
	session.DurationSeconds = 0
	if session.StartTime != nil {
		if d := int(now.Sub(*session.StartTime).Seconds()); d > 0 {
			session.DurationSeconds = d
		}
	}

	if err := u.persistWithRetry("record end", func() error {
		return u.sessions.UpdateSession(ctx, session)
	}); err != nil {
		return nil, err
	}

	u.stopRingTimer(callID)

	u.log.Info("call ended",
		slog.String("call_id", callID),
		slog.String("status", string(target)),
		slog.Int("duration_seconds", session.DurationSeconds))
	return session, nil
}

// RecordIceExchange is pass-through bookkeeping for a relayed candidate.
// No state change.
func (u *usecase) RecordIceExchange(ctx context.Context, callID, fromUserID string) {
	u.log.Debug("ice candidate relayed",
		slog.String("call_id", callID),
		slog.String("from", fromUserID))
}

// HandleDisconnect drives the same transitions the disconnected party would
// have sent explicitly: an active call completes, a ringing call is rejected
// by a vanishing receiver and missed by a vanishing caller.
func (u *usecase) HandleDisconnect(ctx context.Context, userID string) {
	sessions, err := u.sessions.ListSessionsByUser(ctx, userID)
	if err != nil {
		u.log.Error("failed to list sessions on disconnect",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return
	}

	for _, session := range sessions {
		var reason entity.EndReason
		switch session.Status {
		case entity.CallStatusActive:
			reason = entity.EndReasonCompleted
		case entity.CallStatusRinging:
			if session.Receiver.UserID == userID {
				reason = entity.EndReasonRejected
			} else {
				reason = entity.EndReasonMissed
			}
		default:
			continue
		}

		ended, err := u.RecordEnd(ctx, session.CallID, reason)
		if err != nil {
			if entity.IsInvalidTransition(err) {
				continue // raced with an explicit transition, which won
			}
			u.log.Error("failed to end call on disconnect",
				slog.String("call_id", session.CallID),
				slog.String("error", err.Error()))
			continue
		}

		peer := ended.Caller
		if ended.Caller.UserID == userID {
			peer = ended.Receiver
		}
		if err := u.relay.Relay(ctx, userID, peer.UserID, &entity.Envelope{
			Type:   consts.SignalCallEnded,
			CallID: ended.CallID,
			From:   userID,
		}); err != nil && !errors.Is(err, entity.ErrDeliveryUnavailable) {
			u.log.Warn("failed to notify peer of disconnect",
				slog.String("call_id", ended.CallID))
		}
	}
}

// startRingTimer arms the missed-call timeout. The timer fires a regular
// RecordEnd(missed) transition; if the call was answered or rejected first
// the transition loses the legality check and is discarded.
func (u *usecase) startRingTimer(callID string) {
	timer := time.AfterFunc(u.ringTimeout, func() {
		u.timersMu.Lock()
		delete(u.timers, callID)
		u.timersMu.Unlock()

		ctx := context.Background()
		session, err := u.RecordEnd(ctx, callID, entity.EndReasonMissed)
		if err != nil {
			if !entity.IsInvalidTransition(err) {
				u.log.Error("ring timeout transition failed",
					slog.String("call_id", callID),
					slog.String("error", err.Error()))
			}
			return
		}

		u.log.Info("call missed after ring timeout", slog.String("call_id", callID))

		// The caller sees the call move to missed rather than ring forever.
		if err := u.relay.Relay(ctx, session.Receiver.UserID, session.Caller.UserID, &entity.Envelope{
			Type:   consts.SignalCallEnded,
			CallID: callID,
			From:   session.Receiver.UserID,
		}); err != nil && !errors.Is(err, entity.ErrDeliveryUnavailable) {
			u.log.Warn("failed to notify caller of missed call", slog.String("call_id", callID))
		}
	})

	u.timersMu.Lock()
	u.timers[callID] = timer
	u.timersMu.Unlock()
}

func (u *usecase) stopRingTimer(callID string) {
	u.timersMu.Lock()
	defer u.timersMu.Unlock()
	if t, ok := u.timers[callID]; ok {
		t.Stop()
		delete(u.timers, callID)
	}
}
