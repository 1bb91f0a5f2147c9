package domain

import (
	"context"
	"time"
)

// The store interfaces below are capability contracts with swappable
// backends (PostgreSQL, in-memory) behind the same semantics. Every
// implementation consults the ambient tenant context per the isolation
// contract: platform-admin bypasses filtering, non-admin reads are
// restricted to the context's tenant (and institution, when present),
// writes reject payloads whose ownership disagrees with the context, and
// a missing context fails every operation.

// InstitutionStore persists institutions.
type InstitutionStore interface {
	Create(ctx context.Context, institution *Institution) error
	Get(ctx context.Context, id string) (*Institution, error)
	Update(ctx context.Context, institution *Institution) error
	Delete(ctx context.Context, id string) error

	// List pages through institutions visible to the ambient context and
	// reports the total count under the same filter.
	List(ctx context.Context, page, size int) ([]*Institution, int, error)

	// GetCounts aggregates institution and address counts for the ambient scope.
	GetCounts(ctx context.Context) (InstitutionCounts, error)
}

// AddressStore persists member addresses independently of their owning
// institution for query efficiency.
type AddressStore interface {
	Create(ctx context.Context, address *MemberAddress) error
	Get(ctx context.Context, id string) (*MemberAddress, error)
	Update(ctx context.Context, address *MemberAddress) error
	Delete(ctx context.Context, id string) error

	// ListByState returns addresses in a state or province, filtered to the
	// ambient scope.
	ListByState(ctx context.Context, stateOrProvince string) ([]*MemberAddress, error)

	// GetByIDs bulk-resolves address ids; unknown ids are silently absent
	// from the result.
	GetByIDs(ctx context.Context, ids []string) ([]*MemberAddress, error)

	// DistinctActiveStates lists the distinct states present among an
	// institution's active addresses.
	DistinctActiveStates(ctx context.Context, institutionID string) ([]string, error)

	// UpsertBulk writes a batch of addresses belonging to one institution.
	UpsertBulk(ctx context.Context, institutionID string, addresses []*MemberAddress) error
}

// ScanJobStore persists scan job state machine instances.
type ScanJobStore interface {
	Create(ctx context.Context, job *ScanJob) error
	Update(ctx context.Context, job *ScanJob) error
	Get(ctx context.Context, id string) (*ScanJob, error)
	GetLatest(ctx context.Context) (*ScanJob, error)
	ListRecent(ctx context.Context, page, size int) ([]*ScanJob, int, error)
}

// MatchStore persists detected listing matches.
type MatchStore interface {
	Create(ctx context.Context, match *ListingMatch) error
	ListRecent(ctx context.Context, institutionID string, page, size int) ([]*ListingMatch, int, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// ScheduleStore persists the single cron schedule definition. Get falls back
// to the built-in default when no definition exists yet.
type ScheduleStore interface {
	Get(ctx context.Context) (*CronScheduleDefinition, error)
	Upsert(ctx context.Context, definition *CronScheduleDefinition) error
}

// ListingsSource is the external read-only listings API.
type ListingsSource interface {
	GetListings(ctx context.Context, stateOrProvince string) ([]RentCastListing, error)
}

// AlertPublisher fans detected matches out to downstream sinks.
type AlertPublisher interface {
	Publish(ctx context.Context, matches []*ListingMatch) error
}

// AuditSink records audit events. Fire-and-forget observability; it never
// gates correctness.
type AuditSink interface {
	TrackEvent(ctx context.Context, name string, properties map[string]string)
}
