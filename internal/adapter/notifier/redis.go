package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/listing-sentinel/internal/domain"
)

// DefaultStreamKey is the Redis Stream alerts are appended to.
const DefaultStreamKey = "listing_matches"

// RedisPublisher appends one stream entry per match so downstream consumers
// can process and acknowledge alerts independently.
type RedisPublisher struct {
	client    *redis.Client
	streamKey string
	logger    *slog.Logger
}

// NewRedisPublisher creates a Redis Stream publisher. An empty streamKey
// uses DefaultStreamKey.
func NewRedisPublisher(client *redis.Client, streamKey string, logger *slog.Logger) *RedisPublisher {
	if streamKey == "" {
		streamKey = DefaultStreamKey
	}
	return &RedisPublisher{
		client:    client,
		streamKey: streamKey,
		logger:    logger.With("component", "redis_publisher"),
	}
}

// streamEntry is the wire shape of one published match.
type streamEntry struct {
	MatchID        string   `json:"match_id"`
	ListingID      string   `json:"listing_id"`
	ListingAddress string   `json:"listing_address"`
	MonthlyRent    float64  `json:"monthly_rent"`
	ListingURL     string   `json:"listing_url"`
	Severity       string   `json:"severity"`
	AddressIDs     []string `json:"address_ids"`
	TenantIDs      []string `json:"tenant_ids"`
	InstitutionIDs []string `json:"institution_ids"`
	DetectedAt     string   `json:"detected_at"`
	Region         string   `json:"region,omitempty"`
}

// Publish appends every match to the stream. The first append failure aborts
// and propagates; the engine treats publisher failure as the scan's failure.
func (p *RedisPublisher) Publish(ctx context.Context, matches []*domain.ListingMatch) error {
	for _, match := range matches {
		entry := streamEntry{
			MatchID:        match.ID,
			ListingID:      match.ListingID,
			ListingAddress: match.ListingAddress,
			MonthlyRent:    match.MonthlyRent,
			ListingURL:     match.ListingURL,
			Severity:       string(match.Severity),
			AddressIDs:     match.MatchedAddressIDs,
			TenantIDs:      match.MatchedTenantIDs,
			InstitutionIDs: match.MatchedInstitutionIDs,
			DetectedAt:     match.DetectedAt.Format(time.RFC3339),
			Region:         match.Region,
		}
		payload, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshaling match %s: %w", match.ID, err)
		}
		err = p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: p.streamKey,
			Values: map[string]any{
				"match":      payload,
				"severity":   string(match.Severity),
				"tenant_ids": strings.Join(match.MatchedTenantIDs, ","),
			},
		}).Err()
		if err != nil {
			return fmt.Errorf("appending match %s to stream %s: %w", match.ID, p.streamKey, err)
		}
	}
	p.logger.Info("published matches to stream", "stream", p.streamKey, "count", len(matches))
	return nil
}
