package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/user/listing-sentinel/internal/domain"
)

// ScheduleStore implements domain.ScheduleStore on PostgreSQL. A single row
// holds the schedule; Get falls back to the built-in default when no row
// exists yet.
type ScheduleStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewScheduleStore creates a new PostgreSQL schedule store.
func NewScheduleStore(db *sql.DB, logger *slog.Logger) *ScheduleStore {
	return &ScheduleStore{db: db, logger: logger.With("component", "schedule_store")}
}

func (s *ScheduleStore) Get(ctx context.Context) (*domain.CronScheduleDefinition, error) {
	if _, err := requireTenant(ctx); err != nil {
		return nil, err
	}

	var (
		expression, timeZone string
		lastRun              *sql.NullTime
	)
	lastRun = &sql.NullTime{}
	err := s.db.QueryRowContext(ctx,
		`SELECT expression, time_zone, last_run_utc FROM scan_schedule WHERE id = 1`,
	).Scan(&expression, &timeZone, lastRun)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Info("no scan schedule persisted yet, using built-in default",
			"expression", domain.DefaultCronExpression, "time_zone", domain.DefaultTimeZoneID)
		return domain.DefaultCronSchedule(), nil
	}
	if err != nil {
		return nil, err
	}

	definition, err := domain.NewCronSchedule(expression, timeZone)
	if err != nil {
		return nil, err
	}
	if lastRun.Valid {
		at := lastRun.Time.UTC()
		definition.LastRun = &at
	}
	return definition, nil
}

func (s *ScheduleStore) Upsert(ctx context.Context, definition *domain.CronScheduleDefinition) error {
	if _, err := requireTenant(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_schedule (id, expression, time_zone, last_run_utc)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			expression = EXCLUDED.expression,
			time_zone = EXCLUDED.time_zone,
			last_run_utc = EXCLUDED.last_run_utc`,
		definition.Expression, definition.TimeZoneID, definition.LastRun,
	)
	return err
}
