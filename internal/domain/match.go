package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MatchSeverity is the alert priority tier derived from listing rent.
type MatchSeverity string

const (
	SeverityInformational MatchSeverity = "informational"
	SeverityWarning       MatchSeverity = "warning"
	SeverityCritical      MatchSeverity = "critical"
)

// Rent thresholds for severity assignment, evaluated top-down.
const (
	criticalRentThreshold = 5000
	warningRentThreshold  = 2500
)

// SeverityForRent maps a monthly rent to an alert severity.
func SeverityForRent(monthlyRent float64) MatchSeverity {
	switch {
	case monthlyRent >= criticalRentThreshold:
		return SeverityCritical
	case monthlyRent >= warningRentThreshold:
		return SeverityWarning
	default:
		return SeverityInformational
	}
}

// ListingMatch is a detected correlation between one external listing and
// one or more member addresses within a single tenant/institution scope.
// MatchedTenantIDs and MatchedInstitutionIDs start empty and are populated
// later by SetTenancyDetails.
type ListingMatch struct {
	ID                    string
	ListingID             string
	ListingAddress        string
	MonthlyRent           float64
	ListingURL            string
	Severity              MatchSeverity
	MatchedAddressIDs     []string
	MatchedTenantIDs      []string
	MatchedInstitutionIDs []string
	DetectedAt            time.Time
	Region                string
	Metadata              map[string]string
}

// NewListingMatch validates and constructs a match for a listing and the
// non-empty set of address ids it matched.
func NewListingMatch(listing RentCastListing, matchedAddressIDs []string, detectedAt time.Time) (*ListingMatch, error) {
	if strings.TrimSpace(listing.ListingID) == "" {
		return nil, Validationf("listing id is required")
	}
	if listing.MonthlyRent <= 0 {
		return nil, Validationf("monthly rent must be positive, got %.2f", listing.MonthlyRent)
	}
	if len(matchedAddressIDs) == 0 {
		return nil, Validationf("a listing match requires at least one matched address")
	}
	metadata := make(map[string]string, len(listing.Contact))
	for k, v := range listing.Contact {
		metadata[k] = v
	}
	return &ListingMatch{
		ID:                uuid.NewString(),
		ListingID:         listing.ListingID,
		ListingAddress:    listing.Address.String(),
		MonthlyRent:       listing.MonthlyRent,
		ListingURL:        listing.ListingURL,
		Severity:          SeverityForRent(listing.MonthlyRent),
		MatchedAddressIDs: matchedAddressIDs,
		DetectedAt:        detectedAt.UTC(),
		Region:            listing.Region,
		Metadata:          metadata,
	}, nil
}

// SetTenancyDetails replaces both tenancy sets atomically. Ids are
// deduplicated case-insensitively and stored sorted.
func (m *ListingMatch) SetTenancyDetails(tenantIDs, institutionIDs []string) {
	m.MatchedTenantIDs = dedupeFold(tenantIDs)
	m.MatchedInstitutionIDs = dedupeFold(institutionIDs)
}

func dedupeFold(ids []string) []string {
	seen := make(map[string]string, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		seen[strings.ToLower(id)] = id
	}
	out := make([]string, 0, len(seen))
	for _, id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
