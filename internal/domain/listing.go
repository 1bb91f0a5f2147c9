package domain

import (
	"strings"
	"time"
)

// RentCastListing is a current rental listing as returned by the external
// listings source. It is not owned by this system and is fetched fresh on
// every scan.
type RentCastListing struct {
	ListingID   string
	Address     PostalAddress
	MonthlyRent float64
	ListingURL  string
	ListedAt    time.Time
	Region      string
	// Contact carries agent/office contact details keyed by field name
	// (agentName, agentPhone, ...). Subject to redaction at the source.
	Contact map[string]string
}

// String renders the address on a single line for display and persistence.
func (a PostalAddress) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Line1, a.Line2, a.City, a.StateOrProvince, a.PostalCode} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
