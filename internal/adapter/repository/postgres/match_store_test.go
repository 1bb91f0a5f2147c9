package postgres

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/listing-sentinel/internal/domain"
)

func testMatch(t *testing.T) *domain.ListingMatch {
	t.Helper()
	match, err := domain.NewListingMatch(domain.RentCastListing{
		ListingID:   "listing-1",
		Address:     domain.PostalAddress{Line1: "9 Elm St", City: "Sacramento", StateOrProvince: "CA", PostalCode: "95814"},
		MonthlyRent: 2600,
	}, []string{"addr-1"}, time.Now().UTC())
	require.NoError(t, err)
	return match
}

func TestMatchStoreCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewMatchStore(db, testLogger())

	match := testMatch(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO listing_matches`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Create(adminCtx(), match))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchStoreListRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewMatchStore(db, testLogger())

	columns := []string{
		"id", "listing_id", "listing_address", "monthly_rent", "listing_url",
		"severity", "matched_address_ids", "matched_tenant_ids", "matched_institution_ids",
		"detected_at", "region", "metadata",
	}
	detectedAt := time.Now().UTC()

	t.Run("Non-Admin Filter And Totals", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM listing_matches WHERE 1=1 AND EXISTS`).
			WithArgs("tenant-a").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(`FROM listing_matches WHERE 1=1 AND EXISTS`).
			WithArgs("tenant-a").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				"match-1", "listing-1", "9 Elm St, Sacramento, CA, 95814", 2600.0, "",
				"warning", "{addr-1}", "{tenant-a}", "{inst-1}",
				detectedAt, "", []byte(`{}`),
			))

		got, total, err := store.ListRecent(tenantCtx("tenant-a", ""), "", 1, 20)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, got, 1)
		assert.Equal(t, domain.SeverityWarning, got[0].Severity)
		assert.Equal(t, []string{"tenant-a"}, got[0].MatchedTenantIDs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Institution Filter Adds Predicate", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM listing_matches`).
			WithArgs("tenant-a", "inst-1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(`FROM listing_matches`).
			WithArgs("tenant-a", "inst-1").
			WillReturnRows(sqlmock.NewRows(columns))

		_, total, err := store.ListRecent(tenantCtx("tenant-a", ""), "inst-1", 1, 20)
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMatchStorePurgeOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewMatchStore(db, testLogger())

	cutoff := time.Now().UTC().Add(-90 * 24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM listing_matches WHERE detected_at < $1`)).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	purged, err := store.PurgeOlderThan(adminCtx(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 3, purged)
	assert.NoError(t, mock.ExpectationsWereMet())
}
