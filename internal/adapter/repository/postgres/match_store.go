package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/user/listing-sentinel/internal/domain"
)

// MatchStore implements domain.MatchStore on PostgreSQL.
type MatchStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewMatchStore creates a new PostgreSQL match store.
func NewMatchStore(db *sql.DB, logger *slog.Logger) *MatchStore {
	return &MatchStore{db: db, logger: logger.With("component", "match_store")}
}

const matchColumns = `id, listing_id, listing_address, monthly_rent, listing_url,
	severity, matched_address_ids, matched_tenant_ids, matched_institution_ids,
	detected_at, region, metadata`

func (s *MatchStore) Create(ctx context.Context, match *domain.ListingMatch) error {
	if _, err := requireTenant(ctx); err != nil {
		return err
	}
	metadata, err := json.Marshal(match.Metadata)
	if err != nil {
		return err
	}
	tenantIDs := match.MatchedTenantIDs
	if tenantIDs == nil {
		tenantIDs = []string{}
	}
	institutionIDs := match.MatchedInstitutionIDs
	if institutionIDs == nil {
		institutionIDs = []string{}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO listing_matches (`+matchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		match.ID, match.ListingID, match.ListingAddress, match.MonthlyRent, match.ListingURL,
		match.Severity, pq.Array(match.MatchedAddressIDs), pq.Array(tenantIDs), pq.Array(institutionIDs),
		match.DetectedAt, match.Region, metadata,
	)
	return err
}

// matchTenantFilter restricts non-admin reads to matches carrying the
// context's tenant in their tenancy metadata.
func matchTenantFilter(tc domain.TenantContext, args []any) (string, []any) {
	if tc.IsPlatformAdmin {
		return "", args
	}
	args = append(args, tc.TenantID)
	clause := ` AND EXISTS (
		SELECT 1 FROM unnest(matched_tenant_ids) AS t
		WHERE lower(t) = lower($` + itoa(len(args)) + `))`
	return clause, args
}

func (s *MatchStore) ListRecent(ctx context.Context, institutionID string, page, size int) ([]*domain.ListingMatch, int, error) {
	tc, err := requireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := ` WHERE 1=1`
	var args []any
	clause, args := matchTenantFilter(tc, args)
	where += clause
	if institutionID != "" {
		args = append(args, institutionID)
		where += ` AND EXISTS (
			SELECT 1 FROM unnest(matched_institution_ids) AS i
			WHERE lower(i) = lower($` + itoa(len(args)) + `))`
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listing_matches`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageWindow(page, size)
	query := `SELECT ` + matchColumns + ` FROM listing_matches` + where +
		` ORDER BY detected_at DESC LIMIT ` + itoa(limit) + ` OFFSET ` + itoa(offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*domain.ListingMatch
	for rows.Next() {
		var (
			match                              domain.ListingMatch
			addressIDs, tenantIDs, institutIDs pq.StringArray
			metadata                           []byte
		)
		err := rows.Scan(
			&match.ID, &match.ListingID, &match.ListingAddress, &match.MonthlyRent, &match.ListingURL,
			&match.Severity, &addressIDs, &tenantIDs, &institutIDs,
			&match.DetectedAt, &match.Region, &metadata,
		)
		if err != nil {
			return nil, 0, err
		}
		match.MatchedAddressIDs = addressIDs
		match.MatchedTenantIDs = tenantIDs
		match.MatchedInstitutionIDs = institutIDs
		if err := json.Unmarshal(metadata, &match.Metadata); err != nil {
			return nil, 0, err
		}
		out = append(out, &match)
	}
	return out, total, rows.Err()
}

// PurgeOlderThan removes matches detected before the cutoff and returns the
// number removed. Platform-admin only retention sweep in practice; the
// tenant filter still applies for non-admin callers.
func (s *MatchStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tc, err := requireTenant(ctx)
	if err != nil {
		return 0, err
	}
	query := `DELETE FROM listing_matches WHERE detected_at < $1`
	args := []any{cutoff}
	clause, args := matchTenantFilter(tc, args)
	query += clause

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
