// Package memory provides in-memory store backends behind the same
// tenant-isolation contract as the PostgreSQL backends. Used for tests and
// local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/listing-sentinel/internal/domain"
)

// Store holds every in-memory collection behind one mutex.
type Store struct {
	mu           sync.RWMutex
	institutions map[string]*domain.Institution
	addresses    map[string]*domain.MemberAddress
	jobs         map[string]*domain.ScanJob
	jobOrder     []string
	matches      map[string]*domain.ListingMatch
	schedule     *domain.CronScheduleDefinition
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		institutions: make(map[string]*domain.Institution),
		addresses:    make(map[string]*domain.MemberAddress),
		jobs:         make(map[string]*domain.ScanJob),
		matches:      make(map[string]*domain.ListingMatch),
	}
}

// Institutions returns the InstitutionStore view.
func (s *Store) Institutions() domain.InstitutionStore { return &institutionStore{s} }

// Addresses returns the AddressStore view.
func (s *Store) Addresses() domain.AddressStore { return &addressStore{s} }

// ScanJobs returns the ScanJobStore view.
func (s *Store) ScanJobs() domain.ScanJobStore { return &scanJobStore{s} }

// Matches returns the MatchStore view.
func (s *Store) Matches() domain.MatchStore { return &matchStore{s} }

// Schedules returns the ScheduleStore view.
func (s *Store) Schedules() domain.ScheduleStore { return &scheduleStore{s} }

type institutionStore struct{ s *Store }

func (r *institutionStore) Create(ctx context.Context, institution *domain.Institution) error {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return err
	}
	if err := tc.AuthorizeWrite(institution.TenantID, institution.ID); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.institutions[institution.ID] = institution
	return nil
}

func (r *institutionStore) Get(ctx context.Context, id string) (*domain.Institution, error) {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inst, ok := r.s.institutions[id]
	if !ok || !tc.CanRead(inst.TenantID, inst.ID) {
		return nil, domain.ErrNotFound
	}
	return inst, nil
}

func (r *institutionStore) Update(ctx context.Context, institution *domain.Institution) error {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return err
	}
	if err := tc.AuthorizeWrite(institution.TenantID, institution.ID); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.institutions[institution.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.institutions[institution.ID] = institution
	return nil
}

func (r *institutionStore) Delete(ctx context.Context, id string) error {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inst, ok := r.s.institutions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if err := tc.AuthorizeWrite(inst.TenantID, inst.ID); err != nil {
		return err
	}
	delete(r.s.institutions, id)
	return nil
}

func (r *institutionStore) List(ctx context.Context, page, size int) ([]*domain.Institution, int, error) {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return nil, 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var visible []*domain.Institution
	for _, inst := range r.s.institutions {
		if tc.CanRead(inst.TenantID, inst.ID) {
			visible = append(visible, inst)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].ID < visible[j].ID })

	total := len(visible)
	start := (page - 1) * size
	if start >= total {
		return nil, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return visible[start:end], total, nil
}

func (r *institutionStore) GetCounts(ctx context.Context) (domain.InstitutionCounts, error) {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return domain.InstitutionCounts{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var counts domain.InstitutionCounts
	for _, inst := range r.s.institutions {
		if !tc.CanRead(inst.TenantID, inst.ID) {
			continue
		}
		counts.Total++
		switch inst.Status {
		case domain.InstitutionActive:
			counts.Active++
		case domain.InstitutionSuspended:
			counts.Suspended++
		case domain.InstitutionDisabled:
			counts.Disabled++
		}
	}
	for _, addr := range r.s.addresses {
		if !tc.CanRead(addr.TenantID, addr.InstitutionID) {
			continue
		}
		counts.Addresses++
		if addr.IsActive {
			counts.ActiveAddresses++
		}
	}
	return counts, nil
}

type addressStore struct{ s *Store }

func (r *addressStore) Create(ctx context.Context, address *domain.MemberAddress) error {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return err
	}
	if err := tc.AuthorizeWrite(address.TenantID, address.InstitutionID); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.addresses[address.ID] = address
	return nil
}

func (r *addressStore) Get(ctx context.Context, id string) (*domain.MemberAddress, error) {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	addr, ok := r.s.addresses[id]
	if !ok || !tc.CanRead(addr.TenantID, addr.InstitutionID) {
		return nil, domain.ErrNotFound
	}
	return addr, nil
}

func (r *addressStore) Update(ctx context.Context, address *domain.MemberAddress) error {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return err
	}
	if err := tc.AuthorizeWrite(address.TenantID, address.InstitutionID); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.addresses[address.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.addresses[address.ID] = address
	return nil
}

func (r *addressStore) Delete(ctx context.Context, id string) error {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	addr, ok := r.s.addresses[id]
	if !ok {
		return domain.ErrNotFound
	}
	if err := tc.AuthorizeWrite(addr.TenantID, addr.InstitutionID); err != nil {
		return err
	}
	delete(r.s.addresses, id)
	return nil
}

func (r *addressStore) ListByState(ctx context.Context, stateOrProvince string) ([]*domain.MemberAddress, error) {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.MemberAddress
	for _, addr := range r.s.addresses {
		if !strings.EqualFold(addr.Address.StateOrProvince, stateOrProvince) {
			continue
		}
		if !tc.CanRead(addr.TenantID, addr.InstitutionID) {
			continue
		}
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *addressStore) GetByIDs(ctx context.Context, ids []string) ([]*domain.MemberAddress, error) {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.MemberAddress
	for _, id := range ids {
		addr, ok := r.s.addresses[id]
		if !ok || !tc.CanRead(addr.TenantID, addr.InstitutionID) {
			continue
		}
		out = append(out, addr)
	}
	return out, nil
}

func (r *addressStore) DistinctActiveStates(ctx context.Context, institutionID string) ([]string, error) {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, addr := range r.s.addresses {
		if addr.InstitutionID != institutionID || !addr.IsActive {
			continue
		}
		if !tc.CanRead(addr.TenantID, addr.InstitutionID) {
			continue
		}
		state := strings.ToUpper(addr.Address.StateOrProvince)
		if !seen[state] {
			seen[state] = true
			out = append(out, state)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *addressStore) UpsertBulk(ctx context.Context, institutionID string, addresses []*domain.MemberAddress) error {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return err
	}
	for _, addr := range addresses {
		if addr.InstitutionID != institutionID {
			return domain.Validationf("address %s does not belong to institution %s", addr.ID, institutionID)
		}
		if err := tc.AuthorizeWrite(addr.TenantID, addr.InstitutionID); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, addr := range addresses {
		r.s.addresses[addr.ID] = addr
	}
	return nil
}

type scanJobStore struct{ s *Store }

// jobVisible applies the isolation contract to scan jobs: a job is visible
// to a non-admin context when any of its cohorts belongs to the tenant.
func jobVisible(tc domain.TenantContext, job *domain.ScanJob) bool {
	if tc.IsPlatformAdmin {
		return true
	}
	for _, c := range job.Cohorts {
		if tc.CanRead(c.TenantID, c.InstitutionID) {
			return true
		}
	}
	return false
}

func (r *scanJobStore) Create(ctx context.Context, job *domain.ScanJob) error {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return err
	}
	for _, c := range job.Cohorts {
		if err := tc.AuthorizeWrite(c.TenantID, c.InstitutionID); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.jobs[job.ID] = job
	r.s.jobOrder = append(r.s.jobOrder, job.ID)
	return nil
}

func (r *scanJobStore) Update(ctx context.Context, job *domain.ScanJob) error {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return err
	}
	for _, c := range job.Cohorts {
		if err := tc.AuthorizeWrite(c.TenantID, c.InstitutionID); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	// Last writer wins; upsert semantics.
	if _, ok := r.s.jobs[job.ID]; !ok {
		r.s.jobOrder = append(r.s.jobOrder, job.ID)
	}
	r.s.jobs[job.ID] = job
	return nil
}

func (r *scanJobStore) Get(ctx context.Context, id string) (*domain.ScanJob, error) {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	job, ok := r.s.jobs[id]
	if !ok || !jobVisible(tc, job) {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (r *scanJobStore) GetLatest(ctx context.Context) (*domain.ScanJob, error) {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for i := len(r.s.jobOrder) - 1; i >= 0; i-- {
		job := r.s.jobs[r.s.jobOrder[i]]
		if jobVisible(tc, job) {
			return job, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *scanJobStore) ListRecent(ctx context.Context, page, size int) ([]*domain.ScanJob, int, error) {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return nil, 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var visible []*domain.ScanJob
	for i := len(r.s.jobOrder) - 1; i >= 0; i-- {
		job := r.s.jobs[r.s.jobOrder[i]]
		if jobVisible(tc, job) {
			visible = append(visible, job)
		}
	}
	total := len(visible)
	start := (page - 1) * size
	if start >= total {
		return nil, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return visible[start:end], total, nil
}

type matchStore struct{ s *Store }

// matchVisible applies the isolation contract to matches via their tenancy
// metadata.
func matchVisible(tc domain.TenantContext, match *domain.ListingMatch) bool {
	if tc.IsPlatformAdmin {
		return true
	}
	for _, id := range match.MatchedTenantIDs {
		if strings.EqualFold(id, tc.TenantID) {
			return true
		}
	}
	return false
}

func (r *matchStore) Create(ctx context.Context, match *domain.ListingMatch) error {
	if _, err := domain.TenantFromContext(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.matches[match.ID] = match
	return nil
}

func (r *matchStore) ListRecent(ctx context.Context, institutionID string, page, size int) ([]*domain.ListingMatch, int, error) {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return nil, 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var visible []*domain.ListingMatch
	for _, m := range r.s.matches {
		if !matchVisible(tc, m) {
			continue
		}
		if institutionID != "" {
			found := false
			for _, id := range m.MatchedInstitutionIDs {
				if strings.EqualFold(id, institutionID) {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		visible = append(visible, m)
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].DetectedAt.After(visible[j].DetectedAt) })

	total := len(visible)
	start := (page - 1) * size
	if start >= total {
		return nil, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return visible[start:end], total, nil
}

func (r *matchStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tc, err := domain.TenantFromContext(ctx)
	if err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	purged := 0
	for id, m := range r.s.matches {
		if !matchVisible(tc, m) {
			continue
		}
		if m.DetectedAt.Before(cutoff) {
			delete(r.s.matches, id)
			purged++
		}
	}
	return purged, nil
}

type scheduleStore struct{ s *Store }

func (r *scheduleStore) Get(ctx context.Context) (*domain.CronScheduleDefinition, error) {
	if _, err := domain.TenantFromContext(ctx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.schedule == nil {
		return domain.DefaultCronSchedule(), nil
	}
	return r.s.schedule, nil
}

func (r *scheduleStore) Upsert(ctx context.Context, definition *domain.CronScheduleDefinition) error {
	if _, err := domain.TenantFromContext(ctx); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.schedule = definition
	return nil
}
