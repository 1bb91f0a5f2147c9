package usecase

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/user/listing-sentinel/internal/adapter/metrics"
	"github.com/user/listing-sentinel/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *metrics.ScanMetrics {
	return metrics.NewScanMetrics(prometheus.NewRegistry())
}

func mustAddress(t *testing.T, tenantID, institutionID, state, postalCode string, coord *domain.Coordinate) *domain.MemberAddress {
	t.Helper()
	addr, err := domain.NewMemberAddress(tenantID, institutionID, domain.PostalAddress{
		Line1:           "1 Main St",
		City:            "Sacramento",
		StateOrProvince: state,
		PostalCode:      postalCode,
		Coordinate:      coord,
	})
	if err != nil {
		t.Fatalf("address construction failed: %v", err)
	}
	return addr
}

func mustMatch(t *testing.T, listingID string, rent float64, addressIDs []string) *domain.ListingMatch {
	t.Helper()
	match, err := domain.NewListingMatch(domain.RentCastListing{
		ListingID:   listingID,
		Address:     domain.PostalAddress{Line1: "9 Elm St", City: "Sacramento", StateOrProvince: "CA", PostalCode: "95814"},
		MonthlyRent: rent,
	}, addressIDs, time.Now().UTC())
	if err != nil {
		t.Fatalf("match construction failed: %v", err)
	}
	return match
}
