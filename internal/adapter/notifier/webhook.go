package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/user/listing-sentinel/internal/domain"
)

// WebhookPublisher POSTs the full match batch to a configured endpoint.
// The payload carries tenant and institution ids as explicit fields so the
// receiver can route without parsing match internals.
type WebhookPublisher struct {
	http   *resty.Client
	url    string
	logger *slog.Logger
}

// NewWebhookPublisher creates a webhook publisher.
func NewWebhookPublisher(url string, timeout time.Duration, retryCount int, logger *slog.Logger) *WebhookPublisher {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetHeader("Content-Type", "application/json")
	return &WebhookPublisher{
		http:   client,
		url:    url,
		logger: logger.With("component", "webhook_publisher"),
	}
}

type webhookMatch struct {
	MatchID        string   `json:"matchId"`
	ListingID      string   `json:"listingId"`
	ListingAddress string   `json:"listingAddress"`
	MonthlyRent    float64  `json:"monthlyRent"`
	ListingURL     string   `json:"listingUrl"`
	Severity       string   `json:"severity"`
	AddressIDs     []string `json:"addressIds"`
	TenantIDs      []string `json:"tenantIds"`
	InstitutionIDs []string `json:"institutionIds"`
	DetectedAtUTC  string   `json:"detectedAtUtc"`
	Region         string   `json:"region,omitempty"`
}

type webhookPayload struct {
	SentAtUTC string         `json:"sentAtUtc"`
	Matches   []webhookMatch `json:"matches"`
}

// Publish delivers the batch in one request. Non-2xx responses are failures.
func (p *WebhookPublisher) Publish(ctx context.Context, matches []*domain.ListingMatch) error {
	payload := webhookPayload{
		SentAtUTC: time.Now().UTC().Format(time.RFC3339),
		Matches:   make([]webhookMatch, 0, len(matches)),
	}
	for _, m := range matches {
		payload.Matches = append(payload.Matches, webhookMatch{
			MatchID:        m.ID,
			ListingID:      m.ListingID,
			ListingAddress: m.ListingAddress,
			MonthlyRent:    m.MonthlyRent,
			ListingURL:     m.ListingURL,
			Severity:       string(m.Severity),
			AddressIDs:     m.MatchedAddressIDs,
			TenantIDs:      m.MatchedTenantIDs,
			InstitutionIDs: m.MatchedInstitutionIDs,
			DetectedAtUTC:  m.DetectedAt.Format(time.RFC3339),
			Region:         m.Region,
		})
	}

	resp, err := p.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("webhook delivery: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	p.logger.Info("delivered matches to webhook", "url", p.url, "count", len(matches))
	return nil
}
