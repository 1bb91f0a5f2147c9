package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/umahmood/haversine"

	"github.com/user/listing-sentinel/internal/adapter/metrics"
	"github.com/user/listing-sentinel/internal/domain"
)

// proximityThresholdKm is the great-circle distance within which a listing
// and an address are considered the same location when postal codes differ.
const proximityThresholdKm = 2.0

// MatchEngine correlates external listings against tenant-scoped member
// addresses and publishes the results.
type MatchEngine struct {
	addresses domain.AddressStore
	matches   domain.MatchStore
	listings  domain.ListingsSource
	publisher domain.AlertPublisher
	logger    *slog.Logger
	metrics   *metrics.ScanMetrics
}

// NewMatchEngine creates a new MatchEngine.
func NewMatchEngine(
	addresses domain.AddressStore,
	matches domain.MatchStore,
	listings domain.ListingsSource,
	publisher domain.AlertPublisher,
	logger *slog.Logger,
	m *metrics.ScanMetrics,
) *MatchEngine {
	return &MatchEngine{
		addresses: addresses,
		matches:   matches,
		listings:  listings,
		publisher: publisher,
		logger:    logger.With("component", "match_engine"),
		metrics:   m,
	}
}

// FindMatches fetches current listings for a state once and correlates them
// against the active addresses of each scope. One match is produced per
// listing per scope, aggregating every address id the listing matched within
// that scope; matches are never merged across scopes.
func (e *MatchEngine) FindMatches(ctx context.Context, stateOrProvince string, scopes []domain.TenantInstitutionScope) ([]*domain.ListingMatch, error) {
	listings, err := e.listings.GetListings(ctx, stateOrProvince)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching listings for %s: %v", domain.ErrUpstream, stateOrProvince, err)
	}
	e.metrics.ListingsFetched.Add(float64(len(listings)))

	detectedAt := time.Now().UTC()
	var found []*domain.ListingMatch

	for _, scope := range scopes {
		scopeCtx := domain.WithTenant(ctx, domain.TenantContext{
			TenantID:      scope.TenantID,
			InstitutionID: scope.InstitutionID,
		})

		addresses, err := e.addresses.ListByState(scopeCtx, stateOrProvince)
		if err != nil {
			return nil, fmt.Errorf("loading addresses for scope %s/%s: %w", scope.TenantID, scope.InstitutionID, err)
		}
		if len(addresses) == 0 {
			continue
		}

		for _, listing := range listings {
			var matchedIDs []string
			for _, addr := range addresses {
				if !addr.IsActive {
					continue
				}
				if listingMatchesAddress(listing, addr) {
					matchedIDs = append(matchedIDs, addr.ID)
				}
			}
			if len(matchedIDs) == 0 {
				continue
			}
			match, err := domain.NewListingMatch(listing, matchedIDs, detectedAt)
			if err != nil {
				e.logger.Warn("skipping invalid listing",
					"listing_id", listing.ListingID, "error", err)
				continue
			}
			found = append(found, match)
		}
	}

	e.metrics.MatchesDetected.Add(float64(len(found)))
	return found, nil
}

// listingMatchesAddress applies the two matching rules. State/province must
// match exactly (case-insensitive) as a precondition for both: a match is
// then declared on postal-code equality or on coordinate proximity within
// proximityThresholdKm.
func listingMatchesAddress(listing domain.RentCastListing, addr *domain.MemberAddress) bool {
	if !strings.EqualFold(listing.Address.StateOrProvince, addr.Address.StateOrProvince) {
		return false
	}
	if listing.Address.PostalCode != "" &&
		strings.EqualFold(listing.Address.PostalCode, addr.Address.PostalCode) {
		return true
	}
	if listing.Address.Coordinate != nil && addr.Address.Coordinate != nil {
		_, km := haversine.Distance(
			haversine.Coord{Lat: listing.Address.Coordinate.Latitude, Lon: listing.Address.Coordinate.Longitude},
			haversine.Coord{Lat: addr.Address.Coordinate.Latitude, Lon: addr.Address.Coordinate.Longitude},
		)
		return km <= proximityThresholdKm
	}
	return false
}

// PublishMatches resolves tenancy metadata, persists matches and mutated
// addresses, and delivers the batch to the alert publisher. Persistence is
// partial-failure tolerant: a single match or institution batch failure is
// logged and skipped. A publisher failure propagates as the overall failure,
// because an undelivered alert is the primary externally observable failure
// mode; persistence already performed is not rolled back.
func (e *MatchEngine) PublishMatches(ctx context.Context, matches []*domain.ListingMatch) error {
	if len(matches) == 0 {
		return nil
	}

	resolved := e.resolveAddresses(ctx, matches)

	mutated := make(map[string][]*domain.MemberAddress) // keyed by institution id
	for _, match := range matches {
		var tenantIDs, institutionIDs []string
		var matchedAddrs []*domain.MemberAddress
		for _, id := range match.MatchedAddressIDs {
			addr, ok := resolved[id]
			if !ok {
				continue
			}
			matchedAddrs = append(matchedAddrs, addr)
			tenantIDs = append(tenantIDs, addr.TenantID)
			institutionIDs = append(institutionIDs, addr.InstitutionID)
		}

		if len(matchedAddrs) == 0 {
			// Persist the match anyway; tenancy metadata stays empty.
			e.logger.Warn("match references addresses that could not be resolved",
				"match_id", match.ID,
				"listing_id", match.ListingID,
				"address_ids", strings.Join(match.MatchedAddressIDs, ","),
			)
		} else {
			match.SetTenancyDetails(tenantIDs, institutionIDs)
			for _, addr := range matchedAddrs {
				addr.RecordMatch(match.ListingID, match.DetectedAt)
				mutated[addr.InstitutionID] = append(mutated[addr.InstitutionID], addr)
			}
		}

		if err := e.matches.Create(ctx, match); err != nil {
			e.logger.Error("failed to persist listing match, skipping",
				"match_id", match.ID, "listing_id", match.ListingID, "error", err)
			continue
		}
	}

	for institutionID, addrs := range mutated {
		if err := e.addresses.UpsertBulk(ctx, institutionID, addrs); err != nil {
			e.logger.Error("failed to upsert matched addresses for institution",
				"institution_id", institutionID, "count", len(addrs), "error", err)
		}
	}

	if err := e.publisher.Publish(ctx, matches); err != nil {
		e.metrics.PublishFailures.Inc()
		return fmt.Errorf("%w: publishing %d matches: %v", domain.ErrUpstream, len(matches), err)
	}
	e.metrics.MatchesPublished.Add(float64(len(matches)))
	return nil
}

// resolveAddresses bulk-looks-up every matched address id. A lookup failure
// is a data-integrity condition, not a batch abort: it is logged and the
// affected matches carry no tenancy metadata.
func (e *MatchEngine) resolveAddresses(ctx context.Context, matches []*domain.ListingMatch) map[string]*domain.MemberAddress {
	idSet := make(map[string]bool)
	var ids []string
	for _, match := range matches {
		for _, id := range match.MatchedAddressIDs {
			if !idSet[id] {
				idSet[id] = true
				ids = append(ids, id)
			}
		}
	}

	resolved := make(map[string]*domain.MemberAddress, len(ids))
	addrs, err := e.addresses.GetByIDs(ctx, ids)
	if err != nil {
		e.logger.Error("bulk address resolution failed, matches will carry no tenancy metadata",
			"address_count", len(ids), "error", err)
		return resolved
	}
	for _, addr := range addrs {
		resolved[addr.ID] = addr
	}
	return resolved
}
