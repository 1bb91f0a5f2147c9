package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/user/listing-sentinel/internal/domain"
)

// InstitutionStore implements domain.InstitutionStore on PostgreSQL.
// Addresses are not loaded with the aggregate; state-level address queries
// go through AddressStore.
type InstitutionStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewInstitutionStore creates a new PostgreSQL institution store.
func NewInstitutionStore(db *sql.DB, logger *slog.Logger) *InstitutionStore {
	return &InstitutionStore{db: db, logger: logger.With("component", "institution_store")}
}

const institutionColumns = "id, tenant_id, name, time_zone, status, contact_email, created_at, updated_at"

func scanInstitution(row interface{ Scan(...any) error }) (*domain.Institution, error) {
	var inst domain.Institution
	err := row.Scan(
		&inst.ID, &inst.TenantID, &inst.Name, &inst.TimeZoneID,
		&inst.Status, &inst.PrimaryContactEmail, &inst.CreatedAt, &inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (s *InstitutionStore) Create(ctx context.Context, institution *domain.Institution) error {
	tc, err := requireTenant(ctx)
	if err != nil {
		return err
	}
	if err := tc.AuthorizeWrite(institution.TenantID, institution.ID); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO institutions (`+institutionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		institution.ID, institution.TenantID, institution.Name, institution.TimeZoneID,
		institution.Status, institution.PrimaryContactEmail, institution.CreatedAt, institution.UpdatedAt,
	)
	return err
}

func (s *InstitutionStore) Get(ctx context.Context, id string) (*domain.Institution, error) {
	tc, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + institutionColumns + ` FROM institutions WHERE id = $1`
	args := []any{id}
	clause, args := tenantFilter(tc, "tenant_id", "id", args)
	query += clause

	inst, err := scanInstitution(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return inst, err
}

func (s *InstitutionStore) Update(ctx context.Context, institution *domain.Institution) error {
	tc, err := requireTenant(ctx)
	if err != nil {
		return err
	}
	if err := tc.AuthorizeWrite(institution.TenantID, institution.ID); err != nil {
		return err
	}
	// tenant_id is immutable by contract and never part of the SET list.
	res, err := s.db.ExecContext(ctx, `
		UPDATE institutions
		SET name = $2, time_zone = $3, status = $4, contact_email = $5, updated_at = $6
		WHERE id = $1 AND lower(tenant_id) = lower($7)`,
		institution.ID, institution.Name, institution.TimeZoneID, institution.Status,
		institution.PrimaryContactEmail, institution.UpdatedAt, institution.TenantID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *InstitutionStore) Delete(ctx context.Context, id string) error {
	tc, err := requireTenant(ctx)
	if err != nil {
		return err
	}
	query := `DELETE FROM institutions WHERE id = $1`
	args := []any{id}
	clause, args := tenantFilter(tc, "tenant_id", "", args)
	query += clause

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List pages through institutions visible to the ambient context. The total
// count is computed under the same filter, never the unfiltered universe.
func (s *InstitutionStore) List(ctx context.Context, page, size int) ([]*domain.Institution, int, error) {
	tc, err := requireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := ` WHERE 1=1`
	var args []any
	clause, args := tenantFilter(tc, "tenant_id", "id", args)
	where += clause

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM institutions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageWindow(page, size)
	query := `SELECT ` + institutionColumns + ` FROM institutions` + where +
		` ORDER BY id LIMIT ` + itoa(limit) + ` OFFSET ` + itoa(offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*domain.Institution
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, inst)
	}
	return out, total, rows.Err()
}

func (s *InstitutionStore) GetCounts(ctx context.Context) (domain.InstitutionCounts, error) {
	tc, err := requireTenant(ctx)
	if err != nil {
		return domain.InstitutionCounts{}, err
	}

	var counts domain.InstitutionCounts

	instWhere := ` WHERE 1=1`
	var instArgs []any
	clause, instArgs := tenantFilter(tc, "tenant_id", "id", instArgs)
	instWhere += clause
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'suspended'),
			COUNT(*) FILTER (WHERE status = 'disabled')
		FROM institutions`+instWhere, instArgs...,
	).Scan(&counts.Total, &counts.Active, &counts.Suspended, &counts.Disabled)
	if err != nil {
		return domain.InstitutionCounts{}, err
	}

	addrWhere := ` WHERE 1=1`
	var addrArgs []any
	clause, addrArgs = tenantFilter(tc, "tenant_id", "institution_id", addrArgs)
	addrWhere += clause
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active)
		FROM member_addresses`+addrWhere, addrArgs...,
	).Scan(&counts.Addresses, &counts.ActiveAddresses)
	if err != nil {
		return domain.InstitutionCounts{}, err
	}
	return counts, nil
}
