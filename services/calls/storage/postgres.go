package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	config "github.com/rishabh280305/SehatMitra-sub000/config/calls"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/entity"
)

// postgresScheduleStore persists scheduled calls. Schedules are durable
// bookings, unlike the ephemeral call sessions, so they live in Postgres.
//
// Expected schema:
//
//	CREATE TABLE call_schedules (
//	    schedule_id      UUID PRIMARY KEY,
//	    follow_up_id     TEXT NOT NULL,
//	    patient_id       TEXT NOT NULL,
//	    doctor_id        TEXT NOT NULL,
//	    doctor_name      TEXT NOT NULL,
//	    call_type        TEXT NOT NULL,
//	    scheduled_time   TIMESTAMPTZ NOT NULL,
//	    duration_minutes INT NOT NULL,
//	    status           TEXT NOT NULL,
//	    call_link        TEXT NOT NULL DEFAULT '',
//	    created_at       TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE call_schedule_acceptances (
//	    schedule_id UUID NOT NULL REFERENCES call_schedules(schedule_id),
//	    user_id     TEXT NOT NULL,
//	    user_type   TEXT NOT NULL,
//	    accepted_at TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (schedule_id, user_id)
//	);
type postgresScheduleStore struct {
	db  *sql.DB
	log *slog.Logger
}

func NewPostgresScheduleStore(cfg *config.DatabaseConfig, log *slog.Logger) (ScheduleStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("connected to postgres", slog.String("host", cfg.Host), slog.String("db", cfg.Name))
	return &postgresScheduleStore{db: db, log: log}, nil
}

// NewPostgresScheduleStoreFromDB wires an existing handle; used by tests.
func NewPostgresScheduleStoreFromDB(db *sql.DB, log *slog.Logger) ScheduleStore {
	return &postgresScheduleStore{db: db, log: log}
}

func (s *postgresScheduleStore) CreateSchedule(ctx context.Context, sched *entity.CallSchedule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO call_schedules
			(schedule_id, follow_up_id, patient_id, doctor_id, doctor_name,
			 call_type, scheduled_time, duration_minutes, status, call_link, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sched.ScheduleID, sched.FollowUpID, sched.PatientID,
		sched.CreatedBy.UserID, sched.CreatedBy.DisplayName,
		sched.CallType, sched.ScheduledTime, sched.DurationMinutes,
		sched.Status, sched.CallLink, sched.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert schedule: %w", err)
	}

	for _, a := range sched.Acceptances {
		if err := insertAcceptance(ctx, tx, sched.ScheduleID, a); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *postgresScheduleStore) UpdateSchedule(ctx context.Context, sched *entity.CallSchedule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE call_schedules
		SET status = $2, call_link = $3
		WHERE schedule_id = $1`,
		sched.ScheduleID, sched.Status, sched.CallLink)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return entity.ErrScheduleNotFound
	}

	for _, a := range sched.Acceptances {
		if err := insertAcceptance(ctx, tx, sched.ScheduleID, a); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// insertAcceptance is idempotent per (schedule, user): re-accepting never
// produces a duplicate row.
func insertAcceptance(ctx context.Context, tx *sql.Tx, scheduleID string, a entity.Acceptance) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO call_schedule_acceptances (schedule_id, user_id, user_type, accepted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (schedule_id, user_id) DO NOTHING`,
		scheduleID, a.UserID, a.UserType, a.AcceptedAt)
	if err != nil {
		return fmt.Errorf("failed to insert acceptance: %w", err)
	}
	return nil
}

func (s *postgresScheduleStore) GetSchedule(ctx context.Context, scheduleID string) (*entity.CallSchedule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT schedule_id, follow_up_id, patient_id, doctor_id, doctor_name,
		       call_type, scheduled_time, duration_minutes, status, call_link, created_at
		FROM call_schedules
		WHERE schedule_id = $1`, scheduleID)

	sched, err := scanSchedule(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadAcceptances(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

func (s *postgresScheduleStore) ListPendingForUser(ctx context.Context, userID string) ([]*entity.CallSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.schedule_id, s.follow_up_id, s.patient_id, s.doctor_id, s.doctor_name,
		       s.call_type, s.scheduled_time, s.duration_minutes, s.status, s.call_link, s.created_at
		FROM call_schedules s
		WHERE s.status = 'pending'
		  AND s.patient_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM call_schedule_acceptances a
			WHERE a.schedule_id = s.schedule_id AND a.user_id = $1
		  )
		ORDER BY s.scheduled_time`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending schedules: %w", err)
	}
	defer rows.Close()

	var out []*entity.CallSchedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sched)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schedules: %w", err)
	}

	for _, sched := range out {
		if err := s.loadAcceptances(ctx, sched); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *postgresScheduleStore) loadAcceptances(ctx context.Context, sched *entity.CallSchedule) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, user_type, accepted_at
		FROM call_schedule_acceptances
		WHERE schedule_id = $1
		ORDER BY accepted_at`, sched.ScheduleID)
	if err != nil {
		return fmt.Errorf("failed to query acceptances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a entity.Acceptance
		if err := rows.Scan(&a.UserID, &a.UserType, &a.AcceptedAt); err != nil {
			return fmt.Errorf("failed to scan acceptance: %w", err)
		}
		sched.Acceptances = append(sched.Acceptances, a)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*entity.CallSchedule, error) {
	var sched entity.CallSchedule
	err := row.Scan(
		&sched.ScheduleID, &sched.FollowUpID, &sched.PatientID,
		&sched.CreatedBy.UserID, &sched.CreatedBy.DisplayName,
		&sched.CallType, &sched.ScheduledTime, &sched.DurationMinutes,
		&sched.Status, &sched.CallLink, &sched.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to scan schedule: %w", err)
	}
	sched.CreatedBy.UserType = entity.UserTypeDoctor
	return &sched, nil
}

func (s *postgresScheduleStore) Close() error {
	return s.db.Close()
}
