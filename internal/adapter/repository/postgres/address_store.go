package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/lib/pq"

	"github.com/user/listing-sentinel/internal/domain"
)

// AddressStore implements domain.AddressStore on PostgreSQL.
type AddressStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAddressStore creates a new PostgreSQL address store.
func NewAddressStore(db *sql.DB, logger *slog.Logger) *AddressStore {
	return &AddressStore{db: db, logger: logger.With("component", "address_store")}
}

const addressColumns = `id, tenant_id, institution_id, line1, line2, city,
	state_or_province, postal_code, country_code, latitude, longitude,
	is_active, tags, last_matched_at, last_matched_listing_id, created_at, updated_at`

func scanAddress(row interface{ Scan(...any) error }) (*domain.MemberAddress, error) {
	var (
		addr     domain.MemberAddress
		lat, lon sql.NullFloat64
		tags     pq.StringArray
	)
	err := row.Scan(
		&addr.ID, &addr.TenantID, &addr.InstitutionID,
		&addr.Address.Line1, &addr.Address.Line2, &addr.Address.City,
		&addr.Address.StateOrProvince, &addr.Address.PostalCode, &addr.Address.CountryCode,
		&lat, &lon, &addr.IsActive, &tags,
		&addr.LastMatchedAt, &addr.LastMatchedListingID,
		&addr.CreatedAt, &addr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid && lon.Valid {
		addr.Address.Coordinate = &domain.Coordinate{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	addr.Tags = tags
	return &addr, nil
}

func addressArgs(a *domain.MemberAddress) []any {
	var lat, lon sql.NullFloat64
	if c := a.Address.Coordinate; c != nil {
		lat = sql.NullFloat64{Float64: c.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: c.Longitude, Valid: true}
	}
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	return []any{
		a.ID, a.TenantID, a.InstitutionID,
		a.Address.Line1, a.Address.Line2, a.Address.City,
		a.Address.StateOrProvince, a.Address.PostalCode, a.Address.CountryCode,
		lat, lon, a.IsActive, pq.Array(tags),
		a.LastMatchedAt, a.LastMatchedListingID, a.CreatedAt, a.UpdatedAt,
	}
}

func (s *AddressStore) Create(ctx context.Context, address *domain.MemberAddress) error {
	tc, err := requireTenant(ctx)
	if err != nil {
		return err
	}
	if err := tc.AuthorizeWrite(address.TenantID, address.InstitutionID); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO member_addresses (`+addressColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		addressArgs(address)...,
	)
	return err
}

func (s *AddressStore) Get(ctx context.Context, id string) (*domain.MemberAddress, error) {
	tc, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + addressColumns + ` FROM member_addresses WHERE id = $1`
	args := []any{id}
	clause, args := tenantFilter(tc, "tenant_id", "institution_id", args)
	query += clause

	addr, err := scanAddress(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return addr, err
}

func (s *AddressStore) Update(ctx context.Context, address *domain.MemberAddress) error {
	tc, err := requireTenant(ctx)
	if err != nil {
		return err
	}
	if err := tc.AuthorizeWrite(address.TenantID, address.InstitutionID); err != nil {
		return err
	}
	var lat, lon sql.NullFloat64
	if c := address.Address.Coordinate; c != nil {
		lat = sql.NullFloat64{Float64: c.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: c.Longitude, Valid: true}
	}
	tags := address.Tags
	if tags == nil {
		tags = []string{}
	}
	// tenant_id and institution_id are immutable by contract.
	res, err := s.db.ExecContext(ctx, `
		UPDATE member_addresses
		SET line1 = $2, line2 = $3, city = $4, state_or_province = $5,
			postal_code = $6, country_code = $7, latitude = $8, longitude = $9,
			is_active = $10, tags = $11, last_matched_at = $12,
			last_matched_listing_id = $13, updated_at = $14
		WHERE id = $1 AND lower(tenant_id) = lower($15)`,
		address.ID, address.Address.Line1, address.Address.Line2, address.Address.City,
		address.Address.StateOrProvince, address.Address.PostalCode, address.Address.CountryCode,
		lat, lon, address.IsActive, pq.Array(tags), address.LastMatchedAt,
		address.LastMatchedListingID, address.UpdatedAt, address.TenantID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AddressStore) Delete(ctx context.Context, id string) error {
	tc, err := requireTenant(ctx)
	if err != nil {
		return err
	}
	query := `DELETE FROM member_addresses WHERE id = $1`
	args := []any{id}
	clause, args := tenantFilter(tc, "tenant_id", "institution_id", args)
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

func (s *AddressStore) ListByState(ctx context.Context, stateOrProvince string) ([]*domain.MemberAddress, error) {
	tc, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + addressColumns + ` FROM member_addresses WHERE lower(state_or_province) = lower($1)`
	args := []any{stateOrProvince}
	clause, args := tenantFilter(tc, "tenant_id", "institution_id", args)
	query += clause + ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.MemberAddress
	for rows.Next() {
		addr, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, rows.Err()
}

func (s *AddressStore) GetByIDs(ctx context.Context, ids []string) ([]*domain.MemberAddress, error) {
	tc, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + addressColumns + ` FROM member_addresses WHERE id = ANY($1)`
	args := []any{pq.Array(ids)}
	clause, args := tenantFilter(tc, "tenant_id", "institution_id", args)
	query += clause

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.MemberAddress
	for rows.Next() {
		addr, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, rows.Err()
}

func (s *AddressStore) DistinctActiveStates(ctx context.Context, institutionID string) ([]string, error) {
	tc, err := requireTenant(ctx)
	if err != nil {
		return nil, err
	}
	query := `SELECT DISTINCT upper(state_or_province) FROM member_addresses
		WHERE institution_id = $1 AND is_active`
	args := []any{institutionID}
	clause, args := tenantFilter(tc, "tenant_id", "", args)
	query += clause + ` ORDER BY 1`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var state string
		if err := rows.Scan(&state); err != nil {
			return nil, err
		}
		out = append(out, state)
	}
	return out, rows.Err()
}

// UpsertBulk stages the batch in a temp table via the COPY protocol, then
// merges into member_addresses. Idempotent on id.
func (s *AddressStore) UpsertBulk(ctx context.Context, institutionID string, addresses []*domain.MemberAddress) error {
	tc, err := requireTenant(ctx)
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return nil
	}
	for _, addr := range addresses {
		if addr.InstitutionID != institutionID {
			return domain.Validationf("address %s does not belong to institution %s", addr.ID, institutionID)
		}
		if err := tc.AuthorizeWrite(addr.TenantID, addr.InstitutionID); err != nil {
			return err
		}
	}

	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback() // Rollback is a no-op once Commit() succeeds

	const tempTable = "member_addresses_import"
	_, err = txn.ExecContext(ctx,
		`CREATE TEMP TABLE `+tempTable+` (LIKE member_addresses INCLUDING DEFAULTS) ON COMMIT DROP`)
	if err != nil {
		return err
	}

	stmt, err := txn.PrepareContext(ctx, pq.CopyIn(tempTable,
		"id", "tenant_id", "institution_id", "line1", "line2", "city",
		"state_or_province", "postal_code", "country_code", "latitude", "longitude",
		"is_active", "tags", "last_matched_at", "last_matched_listing_id",
		"created_at", "updated_at"))
	if err != nil {
		return err
	}
	for _, addr := range addresses {
		if _, err := stmt.ExecContext(ctx, addressArgs(addr)...); err != nil {
			_ = stmt.Close()
			return err
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return err
	}
	if err := stmt.Close(); err != nil {
		return err
	}

	_, err = txn.ExecContext(ctx, `
		INSERT INTO member_addresses
		SELECT * FROM `+tempTable+`
		ON CONFLICT (id) DO UPDATE SET
			line1 = EXCLUDED.line1,
			line2 = EXCLUDED.line2,
			city = EXCLUDED.city,
			state_or_province = EXCLUDED.state_or_province,
			postal_code = EXCLUDED.postal_code,
			country_code = EXCLUDED.country_code,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			is_active = EXCLUDED.is_active,
			tags = EXCLUDED.tags,
			last_matched_at = EXCLUDED.last_matched_at,
			last_matched_listing_id = EXCLUDED.last_matched_listing_id,
			updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return err
	}

	return txn.Commit()
}
