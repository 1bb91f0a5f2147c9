package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/user/listing-sentinel/internal/domain"
	"github.com/user/listing-sentinel/internal/domain/mocks"
)

func TestFindMatches(t *testing.T) {
	scopeA := domain.TenantInstitutionScope{TenantID: "tenant-a", InstitutionID: "inst-1"}

	listing := domain.RentCastListing{
		ListingID:   "listing-1",
		Address:     domain.PostalAddress{Line1: "9 Elm St", City: "Sacramento", StateOrProvince: "CA", PostalCode: "95814"},
		MonthlyRent: 2600,
	}

	t.Run("Postal Code Equality", func(t *testing.T) {
		addr := mustAddress(t, "tenant-a", "inst-1", "CA", "95814", nil)
		addresses := &mocks.MockAddressStore{Addresses: []*domain.MemberAddress{addr}}
		source := &mocks.MockListingsSource{Listings: []domain.RentCastListing{listing}}
		engine := NewMatchEngine(addresses, &mocks.MockMatchStore{}, source, &mocks.MockAlertPublisher{}, testLogger(), testMetrics())

		found, err := engine.FindMatches(context.Background(), "CA", []domain.TenantInstitutionScope{scopeA})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(found) != 1 {
			t.Fatalf("expected one match, got %d", len(found))
		}
		if found[0].Severity != domain.SeverityWarning {
			t.Errorf("expected warning severity for $2600 rent, got %q", found[0].Severity)
		}
		if len(found[0].MatchedAddressIDs) != 1 || found[0].MatchedAddressIDs[0] != addr.ID {
			t.Errorf("expected matched address %q, got %v", addr.ID, found[0].MatchedAddressIDs)
		}
	})

	t.Run("Coordinate Proximity", func(t *testing.T) {
		near := domain.RentCastListing{
			ListingID:   "listing-2",
			Address:     domain.PostalAddress{Line1: "9 Elm St", City: "Sacramento", StateOrProvince: "CA", PostalCode: "95811", Coordinate: &domain.Coordinate{Latitude: 38.5900, Longitude: -121.4944}},
			MonthlyRent: 1200,
		}
		addr := mustAddress(t, "tenant-a", "inst-1", "CA", "95814", &domain.Coordinate{Latitude: 38.5816, Longitude: -121.4944})
		addresses := &mocks.MockAddressStore{Addresses: []*domain.MemberAddress{addr}}
		source := &mocks.MockListingsSource{Listings: []domain.RentCastListing{near}}
		engine := NewMatchEngine(addresses, &mocks.MockMatchStore{}, source, &mocks.MockAlertPublisher{}, testLogger(), testMetrics())

		found, err := engine.FindMatches(context.Background(), "CA", []domain.TenantInstitutionScope{scopeA})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(found) != 1 {
			t.Fatalf("expected a proximity match within 2km, got %d matches", len(found))
		}
	})

	t.Run("State Mismatch Blocks Postal Equality", func(t *testing.T) {
		foreign := listing
		foreign.Address.StateOrProvince = "NV"
		// The address store returns the address regardless; the engine's own
		// rule must reject the cross-state pair.
		addr := mustAddress(t, "tenant-a", "inst-1", "CA", "95814", nil)
		addresses := &mocks.MockAddressStore{Addresses: []*domain.MemberAddress{addr}}
		source := &mocks.MockListingsSource{Listings: []domain.RentCastListing{foreign}}
		engine := NewMatchEngine(addresses, &mocks.MockMatchStore{}, source, &mocks.MockAlertPublisher{}, testLogger(), testMetrics())

		found, err := engine.FindMatches(context.Background(), "CA", []domain.TenantInstitutionScope{scopeA})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(found) != 0 {
			t.Fatalf("expected no match across states, got %d", len(found))
		}
	})

	t.Run("Inactive Addresses Are Skipped", func(t *testing.T) {
		addr := mustAddress(t, "tenant-a", "inst-1", "CA", "95814", nil)
		addr.Deactivate()
		addresses := &mocks.MockAddressStore{Addresses: []*domain.MemberAddress{addr}}
		source := &mocks.MockListingsSource{Listings: []domain.RentCastListing{listing}}
		engine := NewMatchEngine(addresses, &mocks.MockMatchStore{}, source, &mocks.MockAlertPublisher{}, testLogger(), testMetrics())

		found, err := engine.FindMatches(context.Background(), "CA", []domain.TenantInstitutionScope{scopeA})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(found) != 0 {
			t.Fatalf("expected no match against a deactivated address, got %d", len(found))
		}
	})

	t.Run("One Match Per Listing Per Scope", func(t *testing.T) {
		first := mustAddress(t, "tenant-a", "inst-1", "CA", "95814", nil)
		second := mustAddress(t, "tenant-a", "inst-1", "CA", "95814", nil)
		addresses := &mocks.MockAddressStore{Addresses: []*domain.MemberAddress{first, second}}
		source := &mocks.MockListingsSource{Listings: []domain.RentCastListing{listing}}
		engine := NewMatchEngine(addresses, &mocks.MockMatchStore{}, source, &mocks.MockAlertPublisher{}, testLogger(), testMetrics())

		found, err := engine.FindMatches(context.Background(), "CA", []domain.TenantInstitutionScope{scopeA})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(found) != 1 {
			t.Fatalf("expected both addresses aggregated into one match, got %d matches", len(found))
		}
		if len(found[0].MatchedAddressIDs) != 2 {
			t.Errorf("expected two matched address ids, got %v", found[0].MatchedAddressIDs)
		}
	})

	t.Run("Listings Fetched Once For Multiple Scopes", func(t *testing.T) {
		scopeB := domain.TenantInstitutionScope{TenantID: "tenant-b", InstitutionID: "inst-2"}
		a := mustAddress(t, "tenant-a", "inst-1", "CA", "95814", nil)
		b := mustAddress(t, "tenant-b", "inst-2", "CA", "95814", nil)
		addresses := &mocks.MockAddressStore{Addresses: []*domain.MemberAddress{a, b}}
		source := &mocks.MockListingsSource{Listings: []domain.RentCastListing{listing}}
		engine := NewMatchEngine(addresses, &mocks.MockMatchStore{}, source, &mocks.MockAlertPublisher{}, testLogger(), testMetrics())

		found, err := engine.FindMatches(context.Background(), "CA", []domain.TenantInstitutionScope{scopeA, scopeB})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(source.Calls) != 1 {
			t.Errorf("expected a single listings fetch, got %d", len(source.Calls))
		}
		if len(found) != 2 {
			t.Fatalf("expected one match per scope, got %d", len(found))
		}
	})

	t.Run("Upstream Failure", func(t *testing.T) {
		source := &mocks.MockListingsSource{Err: errors.New("rate limited")}
		engine := NewMatchEngine(&mocks.MockAddressStore{}, &mocks.MockMatchStore{}, source, &mocks.MockAlertPublisher{}, testLogger(), testMetrics())

		_, err := engine.FindMatches(context.Background(), "CA", []domain.TenantInstitutionScope{scopeA})
		if !errors.Is(err, domain.ErrUpstream) {
			t.Fatalf("expected ErrUpstream, got %v", err)
		}
	})
}

func TestPublishMatches(t *testing.T) {
	t.Run("Empty Batch Is A No-Op", func(t *testing.T) {
		publisher := &mocks.MockAlertPublisher{}
		engine := NewMatchEngine(&mocks.MockAddressStore{}, &mocks.MockMatchStore{}, &mocks.MockListingsSource{}, publisher, testLogger(), testMetrics())

		if err := engine.PublishMatches(context.Background(), nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if publisher.PublishCalls() != 0 {
			t.Error("publisher must not be invoked for an empty batch")
		}
	})

	t.Run("Tenancy Resolution And Address Mutation", func(t *testing.T) {
		addr := mustAddress(t, "tenant-a", "inst-1", "CA", "95814", nil)
		addresses := &mocks.MockAddressStore{Addresses: []*domain.MemberAddress{addr}}
		matchStore := &mocks.MockMatchStore{}
		publisher := &mocks.MockAlertPublisher{}
		engine := NewMatchEngine(addresses, matchStore, &mocks.MockListingsSource{}, publisher, testLogger(), testMetrics())

		match := mustMatch(t, "listing-1", 2600, []string{addr.ID})
		if err := engine.PublishMatches(context.Background(), []*domain.ListingMatch{match}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(match.MatchedTenantIDs) != 1 || match.MatchedTenantIDs[0] != "tenant-a" {
			t.Errorf("expected tenancy metadata resolved, got %v", match.MatchedTenantIDs)
		}
		if addr.LastMatchedListingID != "listing-1" || addr.LastMatchedAt == nil {
			t.Error("expected address stamped with the matching listing")
		}
		if len(addresses.UpsertedBulks["inst-1"]) != 1 {
			t.Errorf("expected one upserted address for inst-1, got %v", addresses.UpsertedBulks)
		}
		if len(matchStore.Created) != 1 {
			t.Fatalf("expected one persisted match, got %d", len(matchStore.Created))
		}
		if publisher.PublishCalls() != 1 {
			t.Errorf("expected one publish call, got %d", publisher.PublishCalls())
		}
	})

	t.Run("Publisher Failure Propagates Without Rollback", func(t *testing.T) {
		addr := mustAddress(t, "tenant-a", "inst-1", "CA", "95814", nil)
		addresses := &mocks.MockAddressStore{Addresses: []*domain.MemberAddress{addr}}
		matchStore := &mocks.MockMatchStore{}
		publisher := &mocks.MockAlertPublisher{Err: errors.New("stream unavailable")}
		engine := NewMatchEngine(addresses, matchStore, &mocks.MockListingsSource{}, publisher, testLogger(), testMetrics())

		match := mustMatch(t, "listing-1", 2600, []string{addr.ID})
		err := engine.PublishMatches(context.Background(), []*domain.ListingMatch{match})
		if !errors.Is(err, domain.ErrUpstream) {
			t.Fatalf("expected ErrUpstream, got %v", err)
		}
		if len(matchStore.Created) != 1 {
			t.Error("persisted matches must survive a publish failure")
		}
	})

	t.Run("Per-Match Persistence Failure Is Skipped", func(t *testing.T) {
		addr := mustAddress(t, "tenant-a", "inst-1", "CA", "95814", nil)
		addresses := &mocks.MockAddressStore{Addresses: []*domain.MemberAddress{addr}}
		matchStore := &mocks.MockMatchStore{CreateErrs: map[string]error{"listing-1": errors.New("constraint violation")}}
		publisher := &mocks.MockAlertPublisher{}
		engine := NewMatchEngine(addresses, matchStore, &mocks.MockListingsSource{}, publisher, testLogger(), testMetrics())

		batch := []*domain.ListingMatch{
			mustMatch(t, "listing-1", 2600, []string{addr.ID}),
			mustMatch(t, "listing-2", 1000, []string{addr.ID}),
		}
		if err := engine.PublishMatches(context.Background(), batch); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(matchStore.Created) != 1 || matchStore.Created[0].ListingID != "listing-2" {
			t.Errorf("expected only the healthy match persisted, got %v", matchStore.Created)
		}
		if publisher.PublishCalls() != 1 {
			t.Error("publish must still run after a skipped match")
		}
	})

	t.Run("Unresolvable Addresses Leave Tenancy Empty", func(t *testing.T) {
		addresses := &mocks.MockAddressStore{} // no addresses resolvable
		matchStore := &mocks.MockMatchStore{}
		publisher := &mocks.MockAlertPublisher{}
		engine := NewMatchEngine(addresses, matchStore, &mocks.MockListingsSource{}, publisher, testLogger(), testMetrics())

		match := mustMatch(t, "listing-1", 2600, []string{"gone-address"})
		if err := engine.PublishMatches(context.Background(), []*domain.ListingMatch{match}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(match.MatchedTenantIDs) != 0 {
			t.Errorf("expected empty tenancy metadata, got %v", match.MatchedTenantIDs)
		}
		if len(matchStore.Created) != 1 {
			t.Error("the match must still be persisted for later investigation")
		}
	})

	t.Run("Institution Upsert Failure Does Not Abort", func(t *testing.T) {
		addr := mustAddress(t, "tenant-a", "inst-1", "CA", "95814", nil)
		addresses := &mocks.MockAddressStore{
			Addresses:  []*domain.MemberAddress{addr},
			UpsertErrs: map[string]error{"inst-1": errors.New("deadlock")},
		}
		publisher := &mocks.MockAlertPublisher{}
		engine := NewMatchEngine(addresses, &mocks.MockMatchStore{}, &mocks.MockListingsSource{}, publisher, testLogger(), testMetrics())

		match := mustMatch(t, "listing-1", 2600, []string{addr.ID})
		if err := engine.PublishMatches(context.Background(), []*domain.ListingMatch{match}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if publisher.PublishCalls() != 1 {
			t.Error("publish must still run after an address upsert failure")
		}
	})
}
