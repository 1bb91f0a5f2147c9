package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/user/listing-sentinel/internal/domain"
)

// MockInstitutionStore is a mock implementation of domain.InstitutionStore.
type MockInstitutionStore struct {
	mu           sync.Mutex
	Institutions []*domain.Institution
	Counts       domain.InstitutionCounts
	CreateErr    error
	GetErr       error
	UpdateErr    error
	ListErr      error
	CountsErr    error
	ListCalls    int
}

func (m *MockInstitutionStore) Create(ctx context.Context, institution *domain.Institution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.Institutions = append(m.Institutions, institution)
	return nil
}

func (m *MockInstitutionStore) Get(ctx context.Context, id string) (*domain.Institution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	for _, inst := range m.Institutions {
		if inst.ID == id {
			return inst, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockInstitutionStore) Update(ctx context.Context, institution *domain.Institution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.UpdateErr
}

func (m *MockInstitutionStore) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *MockInstitutionStore) List(ctx context.Context, page, size int) ([]*domain.Institution, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if m.ListErr != nil {
		return nil, 0, m.ListErr
	}
	start := (page - 1) * size
	if start >= len(m.Institutions) {
		return nil, len(m.Institutions), nil
	}
	end := start + size
	if end > len(m.Institutions) {
		end = len(m.Institutions)
	}
	return m.Institutions[start:end], len(m.Institutions), nil
}

func (m *MockInstitutionStore) GetCounts(ctx context.Context) (domain.InstitutionCounts, error) {
	if m.CountsErr != nil {
		return domain.InstitutionCounts{}, m.CountsErr
	}
	return m.Counts, nil
}

// MockAddressStore is a mock implementation of domain.AddressStore.
type MockAddressStore struct {
	mu             sync.Mutex
	Addresses      []*domain.MemberAddress
	ListErr        error
	GetByIDsErr    error
	StatesErr      error
	UpsertErrs     map[string]error // keyed by institution id
	UpsertedBulks  map[string][]*domain.MemberAddress
	ListStateCalls []string
}

func (m *MockAddressStore) Create(ctx context.Context, address *domain.MemberAddress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Addresses = append(m.Addresses, address)
	return nil
}

func (m *MockAddressStore) Get(ctx context.Context, id string) (*domain.MemberAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.Addresses {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockAddressStore) Update(ctx context.Context, address *domain.MemberAddress) error {
	return nil
}

func (m *MockAddressStore) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *MockAddressStore) ListByState(ctx context.Context, stateOrProvince string) ([]*domain.MemberAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListStateCalls = append(m.ListStateCalls, stateOrProvince)
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var out []*domain.MemberAddress
	for _, a := range m.Addresses {
		if !strings.EqualFold(a.Address.StateOrProvince, stateOrProvince) {
			continue
		}
		if !tc.CanRead(a.TenantID, a.InstitutionID) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *MockAddressStore) GetByIDs(ctx context.Context, ids []string) ([]*domain.MemberAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetByIDsErr != nil {
		return nil, m.GetByIDsErr
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*domain.MemberAddress
	for _, a := range m.Addresses {
		if want[a.ID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MockAddressStore) DistinctActiveStates(ctx context.Context, institutionID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StatesErr != nil {
		return nil, m.StatesErr
	}
	seen := map[string]bool{}
	var out []string
	for _, a := range m.Addresses {
		if a.InstitutionID != institutionID || !a.IsActive {
			continue
		}
		state := strings.ToUpper(a.Address.StateOrProvince)
		if !seen[state] {
			seen[state] = true
			out = append(out, state)
		}
	}
	return out, nil
}

func (m *MockAddressStore) UpsertBulk(ctx context.Context, institutionID string, addresses []*domain.MemberAddress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.UpsertErrs[institutionID]; err != nil {
		return err
	}
	if m.UpsertedBulks == nil {
		m.UpsertedBulks = map[string][]*domain.MemberAddress{}
	}
	m.UpsertedBulks[institutionID] = append(m.UpsertedBulks[institutionID], addresses...)
	return nil
}

// MockScanJobStore is a mock implementation of domain.ScanJobStore.
type MockScanJobStore struct {
	mu        sync.Mutex
	Jobs      []*domain.ScanJob
	Updates   []domain.ScanJobStatus
	CreateErr error
	UpdateErr error
	GetErr    error
}

func (m *MockScanJobStore) Create(ctx context.Context, job *domain.ScanJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.Jobs = append(m.Jobs, job)
	return nil
}

func (m *MockScanJobStore) Update(ctx context.Context, job *domain.ScanJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.Updates = append(m.Updates, job.Status)
	return nil
}

func (m *MockScanJobStore) Get(ctx context.Context, id string) (*domain.ScanJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	for _, j := range m.Jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockScanJobStore) GetLatest(ctx context.Context) (*domain.ScanJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Jobs) == 0 {
		return nil, domain.ErrNotFound
	}
	return m.Jobs[len(m.Jobs)-1], nil
}

func (m *MockScanJobStore) ListRecent(ctx context.Context, page, size int) ([]*domain.ScanJob, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Jobs, len(m.Jobs), nil
}

// MockMatchStore is a mock implementation of domain.MatchStore.
type MockMatchStore struct {
	mu         sync.Mutex
	Created    []*domain.ListingMatch
	CreateErrs map[string]error // keyed by listing id
	PurgeCount int
}

func (m *MockMatchStore) Create(ctx context.Context, match *domain.ListingMatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.CreateErrs[match.ListingID]; err != nil {
		return err
	}
	m.Created = append(m.Created, match)
	return nil
}

func (m *MockMatchStore) ListRecent(ctx context.Context, institutionID string, page, size int) ([]*domain.ListingMatch, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Created, len(m.Created), nil
}

func (m *MockMatchStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return m.PurgeCount, nil
}

// MockScheduleStore is a mock implementation of domain.ScheduleStore.
type MockScheduleStore struct {
	mu        sync.Mutex
	Schedule  *domain.CronScheduleDefinition
	GetErr    error
	UpsertErr error
	Upserts   []*domain.CronScheduleDefinition
}

func (m *MockScheduleStore) Get(ctx context.Context) (*domain.CronScheduleDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if m.Schedule == nil {
		return domain.DefaultCronSchedule(), nil
	}
	return m.Schedule, nil
}

func (m *MockScheduleStore) Upsert(ctx context.Context, definition *domain.CronScheduleDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.Schedule = definition
	m.Upserts = append(m.Upserts, definition)
	return nil
}

// MockListingsSource is a mock implementation of domain.ListingsSource.
type MockListingsSource struct {
	mu       sync.Mutex
	Listings []domain.RentCastListing
	Err      error
	Calls    []string
}

func (m *MockListingsSource) GetListings(ctx context.Context, stateOrProvince string) ([]domain.RentCastListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, stateOrProvince)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Listings, nil
}

// MockAlertPublisher is a mock implementation of domain.AlertPublisher.
type MockAlertPublisher struct {
	mu        sync.Mutex
	Published [][]*domain.ListingMatch
	Err       error
}

func (m *MockAlertPublisher) Publish(ctx context.Context, matches []*domain.ListingMatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Published = append(m.Published, matches)
	return nil
}

// PublishCalls returns how many times Publish was invoked.
func (m *MockAlertPublisher) PublishCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Published)
}

// AuditEvent is one recorded audit event.
type AuditEvent struct {
	Name       string
	Properties map[string]string
}

// MockAuditSink records audit events for assertions.
type MockAuditSink struct {
	mu     sync.Mutex
	Events []AuditEvent
}

func (m *MockAuditSink) TrackEvent(ctx context.Context, name string, properties map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, AuditEvent{Name: name, Properties: properties})
}

// EventNames returns the recorded event names in order.
func (m *MockAuditSink) EventNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		names = append(names, e.Name)
	}
	return names
}
