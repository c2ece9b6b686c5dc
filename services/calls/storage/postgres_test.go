package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishabh280305/SehatMitra-sub000/services/calls/entity"
)

func setupScheduleStore(t *testing.T) (sqlmock.Sqlmock, ScheduleStore) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return mock, NewPostgresScheduleStoreFromDB(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testSchedule() *entity.CallSchedule {
	now := time.Now()
	return &entity.CallSchedule{
		ScheduleID:      "7f9c0a3e-0000-0000-0000-000000000001",
		FollowUpID:      "followup-1",
		PatientID:       "sita",
		CreatedBy:       entity.Participant{UserID: "dr-rao", UserType: entity.UserTypeDoctor, DisplayName: "Dr. Rao"},
		CallType:        entity.CallTypeVideo,
		ScheduledTime:   now.Add(24 * time.Hour),
		DurationMinutes: 15,
		Status:          entity.ScheduleStatusPending,
		Acceptances: []entity.Acceptance{{
			UserID:     "dr-rao",
			UserType:   entity.UserTypeDoctor,
			AcceptedAt: now,
		}},
		CreatedAt: now,
	}
}

func TestPostgresScheduleStore_Create(t *testing.T) {
	mock, store := setupScheduleStore(t)
	sched := testSchedule()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO call_schedules`).
		WithArgs(sched.ScheduleID, sched.FollowUpID, sched.PatientID,
			"dr-rao", "Dr. Rao", string(sched.CallType), sched.ScheduledTime,
			sched.DurationMinutes, string(sched.Status), sched.CallLink, sched.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO call_schedule_acceptances`).
		WithArgs(sched.ScheduleID, "dr-rao", string(entity.UserTypeDoctor), sched.Acceptances[0].AcceptedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.CreateSchedule(context.Background(), sched)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresScheduleStore_UpdateWritesStatusAndAcceptances(t *testing.T) {
	mock, store := setupScheduleStore(t)
	sched := testSchedule()
	sched.Status = entity.ScheduleStatusConfirmed
	sched.CallLink = "/call/" + sched.ScheduleID
	sched.Acceptances = append(sched.Acceptances, entity.Acceptance{
		UserID: "sita", UserType: entity.UserTypePatient, AcceptedAt: time.Now(),
	})

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE call_schedules`).
		WithArgs(sched.ScheduleID, string(sched.Status), sched.CallLink).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO call_schedule_acceptances`).
		WithArgs(sched.ScheduleID, "dr-rao", string(entity.UserTypeDoctor), sched.Acceptances[0].AcceptedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO call_schedule_acceptances`).
		WithArgs(sched.ScheduleID, "sita", string(entity.UserTypePatient), sched.Acceptances[1].AcceptedAt).
		WillReturnResult(sqlmock.NewResult(0, 0)) // conflict, already present
	mock.ExpectCommit()

	err := store.UpdateSchedule(context.Background(), sched)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresScheduleStore_UpdateMissing(t *testing.T) {
	mock, store := setupScheduleStore(t)
	sched := testSchedule()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE call_schedules`).
		WithArgs(sched.ScheduleID, string(sched.Status), sched.CallLink).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.UpdateSchedule(context.Background(), sched)
	require.ErrorIs(t, err, entity.ErrScheduleNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresScheduleStore_Get(t *testing.T) {
	mock, store := setupScheduleStore(t)
	sched := testSchedule()

	scheduleCols := []string{
		"schedule_id", "follow_up_id", "patient_id", "doctor_id", "doctor_name",
		"call_type", "scheduled_time", "duration_minutes", "status", "call_link", "created_at",
	}
	mock.ExpectQuery(`SELECT schedule_id`).
		WithArgs(sched.ScheduleID).
		WillReturnRows(sqlmock.NewRows(scheduleCols).AddRow(
			sched.ScheduleID, sched.FollowUpID, sched.PatientID,
			"dr-rao", "Dr. Rao", string(sched.CallType), sched.ScheduledTime,
			sched.DurationMinutes, string(sched.Status), "", sched.CreatedAt))
	mock.ExpectQuery(`SELECT user_id, user_type, accepted_at`).
		WithArgs(sched.ScheduleID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "user_type", "accepted_at"}).
			AddRow("dr-rao", string(entity.UserTypeDoctor), sched.Acceptances[0].AcceptedAt))

	got, err := store.GetSchedule(context.Background(), sched.ScheduleID)
	require.NoError(t, err)
	assert.Equal(t, sched.ScheduleID, got.ScheduleID)
	assert.Equal(t, entity.ScheduleStatusPending, got.Status)
	require.Len(t, got.Acceptances, 1)
	assert.Equal(t, "dr-rao", got.Acceptances[0].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresScheduleStore_GetMissing(t *testing.T) {
	mock, store := setupScheduleStore(t)

	mock.ExpectQuery(`SELECT schedule_id`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"schedule_id"}))

	_, err := store.GetSchedule(context.Background(), "ghost")
	require.ErrorIs(t, err, entity.ErrScheduleNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
