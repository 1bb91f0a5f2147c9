package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/user/listing-sentinel/internal/domain"
)

// ScanJobStore implements domain.ScanJobStore on PostgreSQL. Updates are
// upserts with last-writer-wins semantics; one orchestration owns one job.
type ScanJobStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewScanJobStore creates a new PostgreSQL scan job store.
func NewScanJobStore(db *sql.DB, logger *slog.Logger) *ScanJobStore {
	return &ScanJobStore{db: db, logger: logger.With("component", "scanjob_store")}
}

// cohortRow is the persisted JSON shape of a cohort scope.
type cohortRow struct {
	TenantID      string `json:"tenantId"`
	InstitutionID string `json:"institutionId"`
}

func marshalCohorts(cohorts []domain.TenantInstitutionScope) ([]byte, error) {
	rows := make([]cohortRow, 0, len(cohorts))
	for _, c := range cohorts {
		rows = append(rows, cohortRow{TenantID: c.TenantID, InstitutionID: c.InstitutionID})
	}
	return json.Marshal(rows)
}

func unmarshalCohorts(data []byte) ([]domain.TenantInstitutionScope, error) {
	var rows []cohortRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	cohorts := make([]domain.TenantInstitutionScope, 0, len(rows))
	for _, r := range rows {
		cohorts = append(cohorts, domain.TenantInstitutionScope{TenantID: r.TenantID, InstitutionID: r.InstitutionID})
	}
	return cohorts, nil
}

const scanJobColumns = "id, state_or_province, cohorts, status, failure_reason, created_at, started_at, completed_at"

// jobTenantFilter restricts non-admin reads to jobs whose cohorts include
// the context's tenant.
func jobTenantFilter(tc domain.TenantContext, args []any) (string, []any) {
	if tc.IsPlatformAdmin {
		return "", args
	}
	args = append(args, tc.TenantID)
	clause := ` AND EXISTS (
		SELECT 1 FROM jsonb_array_elements(cohorts) AS c
		WHERE lower(c->>'tenantId') = lower($` + itoa(len(args)) + `))`
	return clause, args
}

func (s *ScanJobStore) scanJob(row interface{ Scan(...any) error }) (*domain.ScanJob, error) {
	var (
		job     domain.ScanJob
		cohorts []byte
	)
	err := row.Scan(
		&job.ID, &job.StateOrProvince, &cohorts, &job.Status,
		&job.FailureReason, &job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Cohorts, err = unmarshalCohorts(cohorts)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *ScanJobStore) authorize(tc domain.TenantContext, job *domain.ScanJob) error {
	for _, c := range job.Cohorts {
		if err := tc.AuthorizeWrite(c.TenantID, c.InstitutionID); err != nil {
			return err
		}
	}
	return nil
}

func (s *ScanJobStore) Create(ctx context.Context, job *domain.ScanJob) error {
	tc, err := requireTenant(ctx)
	if err != nil {
		return err
	}
	if err := s.authorize(tc, job); err != nil {
		return err
	}
	cohorts, err := marshalCohorts(job.Cohorts)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scan_jobs (`+scanJobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.StateOrProvince, cohorts, job.Status,
		job.FailureReason, job.CreatedAt, job.StartedAt, job.CompletedAt,
	)
	return err
}

func (s *ScanJobStore) Update(ctx context.Context, job *domain.ScanJob) error {
	tc, err := requireTenant(ctx)
	if err != nil {
		return err
	}
	if err := s.authorize(tc, job); err != nil {
		return err
	}
	cohorts, err := marshalCohorts(job.Cohorts)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scan_jobs (`+scanJobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			failure_reason = EXCLUDED.failure_reason,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at`,
		job.ID, job.StateOrProvince, cohorts, job.Status,
		job.FailureReason, job.CreatedAt, job.StartedAt, job.CompletedAt,
	)
	return err
}

func (s *ScanJobStore) Get(ctx context.Context, id string) (*domain.ScanJob, error) {
	tc, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + scanJobColumns + ` FROM scan_jobs WHERE id = $1`
	args := []any{id}
	clause, args := jobTenantFilter(tc, args)
	query += clause

	job, err := s.scanJob(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func (s *ScanJobStore) GetLatest(ctx context.Context) (*domain.ScanJob, error) {
	tc, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + scanJobColumns + ` FROM scan_jobs WHERE 1=1`
	var args []any
	clause, args := jobTenantFilter(tc, args)
	query += clause + ` ORDER BY created_at DESC LIMIT 1`

	job, err := s.scanJob(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func (s *ScanJobStore) ListRecent(ctx context.Context, page, size int) ([]*domain.ScanJob, int, error) {
	tc, err := requireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	where := ` WHERE 1=1`
	var args []any
	clause, args := jobTenantFilter(tc, args)
	where += clause

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scan_jobs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageWindow(page, size)
	query := `SELECT ` + scanJobColumns + ` FROM scan_jobs` + where +
		` ORDER BY created_at DESC LIMIT ` + itoa(limit) + ` OFFSET ` + itoa(offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*domain.ScanJob
	for rows.Next() {
		job, err := s.scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, job)
	}
	return out, total, rows.Err()
}
