package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/rishabh280305/SehatMitra-sub000/services/calls/consts"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/entity"
)

// CreateSchedule registers a pre-agreed future call from a follow-up
// request. The initiating doctor counts as accepted from the start, so a
// single patient-side acceptance confirms the schedule.
func (u *usecase) CreateSchedule(ctx context.Context, req *entity.CreateScheduleRequest) (*entity.CallSchedule, error) {
	now := time.Now()
	schedule := &entity.CallSchedule{
		ScheduleID:      u.ids.NextString(),
		FollowUpID:      req.FollowUpID,
		PatientID:       req.PatientID,
		CreatedBy:       req.Doctor,
		CallType:        req.CallType,
		ScheduledTime:   req.ScheduledTime,
		DurationMinutes: req.DurationMinutes,
		Status:          entity.ScheduleStatusPending,
		Acceptances: []entity.Acceptance{{
			UserID:     req.Doctor.UserID,
			UserType:   req.Doctor.UserType,
			AcceptedAt: now,
		}},
		CreatedAt: now,
	}

	if err := u.persistWithRetry("create schedule", func() error {
		return u.schedules.CreateSchedule(ctx, schedule)
	}); err != nil {
		return nil, err
	}

	u.log.Info("schedule created",
		slog.String("schedule_id", schedule.ScheduleID),
		slog.String("follow_up_id", req.FollowUpID),
		slog.String("call_type", string(req.CallType)),
		slog.Time("scheduled_time", req.ScheduledTime))
	return schedule, nil
}

func (u *usecase) GetSchedule(ctx context.Context, scheduleID string) (*entity.CallSchedule, error) {
	return u.schedules.GetSchedule(ctx, scheduleID)
}

// AcceptSchedule is idempotent per user: re-accepting is a no-op, never a
// duplicate acceptance. When the set reaches two distinct users of two
// distinct roles, the schedule confirms and the call link is generated
// exactly once.
func (u *usecase) AcceptSchedule(ctx context.Context, scheduleID, userID string, userType entity.UserType) (*entity.CallSchedule, error) {
	unlock := u.lock(scheduleID)
	defer unlock()

	schedule, err := u.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	if schedule.HasAccepted(userID) {
		return schedule, nil
	}

	if schedule.Status != entity.ScheduleStatusPending {
		return nil, &entity.InvalidTransitionError{
			ID:   scheduleID,
			From: string(schedule.Status),
			To:   string(entity.ScheduleStatusConfirmed),
		}
	}

	schedule.Acceptances = append(schedule.Acceptances, entity.Acceptance{
		UserID:     userID,
		UserType:   userType,
		AcceptedAt: time.Now(),
	})

	if schedule.Quorum() {
		schedule.Status = entity.ScheduleStatusConfirmed
		if schedule.CallLink == "" {
			schedule.CallLink = consts.CallLinkPrefix + schedule.ScheduleID
		}
	}

	if err := u.persistWithRetry("accept schedule", func() error {
		return u.schedules.UpdateSchedule(ctx, schedule)
	}); err != nil {
		return nil, err
	}

	u.log.Info("schedule acceptance recorded",
		slog.String("schedule_id", scheduleID),
		slog.String("user_id", userID),
		slog.String("status", string(schedule.Status)))
	return schedule, nil
}

// DeclineSchedule cancels a pending schedule when the underlying follow-up
// is declined.
func (u *usecase) DeclineSchedule(ctx context.Context, scheduleID string) (*entity.CallSchedule, error) {
	unlock := u.lock(scheduleID)
	defer unlock()

	schedule, err := u.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	if schedule.Status != entity.ScheduleStatusPending {
		return nil, &entity.InvalidTransitionError{
			ID:   scheduleID,
			From: string(schedule.Status),
			To:   string(entity.ScheduleStatusCancelled),
		}
	}

	schedule.Status = entity.ScheduleStatusCancelled

	if err := u.persistWithRetry("decline schedule", func() error {
		return u.schedules.UpdateSchedule(ctx, schedule)
	}); err != nil {
		return nil, err
	}

	u.log.Info("schedule declined", slog.String("schedule_id", scheduleID))
	return schedule, nil
}

func (u *usecase) MarkScheduleOutcome(ctx context.Context, scheduleID string, outcome entity.ScheduleOutcome) (*entity.CallSchedule, error) {
	unlock := u.lock(scheduleID)
	defer unlock()

	schedule, err := u.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	var target entity.ScheduleStatus
	switch outcome {
	case entity.ScheduleOutcomeCompleted:
		target = entity.ScheduleStatusCompleted
	case entity.ScheduleOutcomeMissed:
		target = entity.ScheduleStatusMissed
	default:
		return nil, &entity.InvalidTransitionError{
			ID:   scheduleID,
			From: string(schedule.Status),
			To:   string(outcome),
		}
	}

	if schedule.Status != entity.ScheduleStatusConfirmed {
		return nil, &entity.InvalidTransitionError{
			ID:   scheduleID,
			From: string(schedule.Status),
			To:   string(target),
		}
	}

	schedule.Status = target

	if err := u.persistWithRetry("mark schedule outcome", func() error {
		return u.schedules.UpdateSchedule(ctx, schedule)
	}); err != nil {
		return nil, err
	}

	u.log.Info("schedule outcome recorded",
		slog.String("schedule_id", scheduleID),
		slog.String("outcome", string(outcome)))
	return schedule, nil
}

func (u *usecase) ListPendingSchedules(ctx context.Context, userID string) ([]*entity.CallSchedule, error) {
	return u.schedules.ListPendingForUser(ctx, userID)
}
