// Package listings implements the external listings source contract against
// the RentCast API.
package listings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/user/listing-sentinel/internal/adapter/pii"
	"github.com/user/listing-sentinel/internal/domain"
)

// ClientConfig carries the upstream call policy. Retries and delays live
// here, supplied by configuration, not hand-rolled loops at call sites.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RetryCount     int
	RetryWait      time.Duration
	RequestsPerSec float64
}

// RentCastClient fetches current rental listings for a state. Contact
// details are scrubbed by the redactor before listings leave the adapter;
// a nil redactor disables scrubbing.
type RentCastClient struct {
	http     *resty.Client
	limiter  *rate.Limiter
	redactor *pii.Redactor
	logger   *slog.Logger
}

// NewRentCastClient creates a configured RentCast client.
func NewRentCastClient(cfg ClientConfig, redactor *pii.Redactor, logger *slog.Logger) *RentCastClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetHeader("Accept", "application/json").
		SetHeader("X-Api-Key", cfg.APIKey)

	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}
	return &RentCastClient{
		http:     client,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		redactor: redactor,
		logger:   logger.With("component", "rentcast_client"),
	}
}

// contactPayload is the wire shape of RentCast agent/office contact blocks.
type contactPayload struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// listingPayload is the wire shape of one RentCast listing.
type listingPayload struct {
	ID            string    `json:"id"`
	AddressLine1  string    `json:"addressLine1"`
	AddressLine2  string    `json:"addressLine2"`
	City          string    `json:"city"`
	State         string    `json:"state"`
	ZipCode       string    `json:"zipCode"`
	County        string    `json:"county"`
	Latitude      *float64  `json:"latitude"`
	Longitude     *float64  `json:"longitude"`
	Price         float64   `json:"price"`
	ListedDate    time.Time `json:"listedDate"`
	FormattedAddr string    `json:"formattedAddress"`
	URL           string    `json:"url"`

	ListingAgent  *contactPayload `json:"listingAgent"`
	ListingOffice *contactPayload `json:"listingOffice"`
}

func contactDetails(p listingPayload) map[string]string {
	contact := make(map[string]string)
	add := func(key, value string) {
		if value != "" {
			contact[key] = value
		}
	}
	if a := p.ListingAgent; a != nil {
		add("agentName", a.Name)
		add("agentPhone", a.Phone)
		add("agentEmail", a.Email)
	}
	if o := p.ListingOffice; o != nil {
		add("officeName", o.Name)
		add("officePhone", o.Phone)
		add("officeEmail", o.Email)
	}
	if len(contact) == 0 {
		return nil
	}
	return contact
}

// GetListings fetches the current listings for a state. Idempotent and
// read-only; rate-limited client-side.
func (c *RentCastClient) GetListings(ctx context.Context, stateOrProvince string) ([]domain.RentCastListing, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var payload []listingPayload
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("state", stateOrProvince).
		SetQueryParam("status", "Active").
		SetResult(&payload).
		Get("/listings/rental/long-term")
	if err != nil {
		return nil, fmt.Errorf("%w: rentcast request: %v", domain.ErrUpstream, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: rentcast returned status %d", domain.ErrUpstream, resp.StatusCode())
	}

	out := make([]domain.RentCastListing, 0, len(payload))
	for _, p := range payload {
		listing := domain.RentCastListing{
			ListingID: p.ID,
			Address: domain.PostalAddress{
				Line1:           p.AddressLine1,
				Line2:           p.AddressLine2,
				City:            p.City,
				StateOrProvince: p.State,
				PostalCode:      p.ZipCode,
			},
			MonthlyRent: p.Price,
			ListingURL:  p.URL,
			ListedAt:    p.ListedDate,
			Region:      p.County,
			Contact:     contactDetails(p),
		}
		if p.Latitude != nil && p.Longitude != nil {
			listing.Address.Coordinate = &domain.Coordinate{Latitude: *p.Latitude, Longitude: *p.Longitude}
		}
		out = append(out, listing)
	}

	if c.redactor != nil {
		c.redactor.Redact(out)
	}

	c.logger.Info("fetched listings", "state", stateOrProvince, "count", len(out))
	return out, nil
}
