// Package notifier implements the alert publisher fan-out: a Redis Stream
// message-bus leg, a direct webhook leg, and a stdout leg for development.
package notifier

import (
	"context"
	"errors"

	"github.com/user/listing-sentinel/internal/domain"
)

// Composite fans a publish out to every configured leg. All legs are
// attempted; the joined error of any failed legs propagates, because an
// undelivered alert is the primary externally observable failure mode.
type Composite struct {
	publishers []domain.AlertPublisher
}

// NewComposite creates a fan-out publisher over the given legs.
func NewComposite(publishers ...domain.AlertPublisher) *Composite {
	return &Composite{publishers: publishers}
}

// Publish delivers the matches to every leg.
func (c *Composite) Publish(ctx context.Context, matches []*domain.ListingMatch) error {
	var errs []error
	for _, p := range c.publishers {
		if err := p.Publish(ctx, matches); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
