package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/listing-sentinel/internal/domain"
)

// StdoutPublisher prints matches to standard output. Development use only.
type StdoutPublisher struct{}

// NewStdoutPublisher creates a new StdoutPublisher.
func NewStdoutPublisher() *StdoutPublisher {
	return &StdoutPublisher{}
}

// Publish prints each match.
func (p *StdoutPublisher) Publish(ctx context.Context, matches []*domain.ListingMatch) error {
	for _, m := range matches {
		fmt.Printf(
			"--- LISTING MATCH ---\nListing: %s\nAddress: %s\nRent: $%.2f/mo\nSeverity: %s\nTenants: %s\n---------------------\n",
			m.ListingID,
			m.ListingAddress,
			m.MonthlyRent,
			m.Severity,
			strings.Join(m.MatchedTenantIDs, ", "),
		)
	}
	return nil
}
