package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// InstitutionStatus is the lifecycle state of an institution.
type InstitutionStatus string

const (
	InstitutionActive    InstitutionStatus = "active"
	InstitutionSuspended InstitutionStatus = "suspended"
	InstitutionDisabled  InstitutionStatus = "disabled"
)

// Institution is a tenant-owned organization whose member addresses are
// matched against listings. TenantID is immutable after creation; all
// mutation goes through the methods below.
type Institution struct {
	ID                  string
	TenantID            string
	Name                string
	TimeZoneID          string
	Status              InstitutionStatus
	PrimaryContactEmail string
	Addresses           []*MemberAddress
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewInstitution validates and constructs an institution.
func NewInstitution(tenantID, name, timeZoneID string) (*Institution, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, Validationf("tenant id is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, Validationf("institution name is required")
	}
	if _, err := time.LoadLocation(timeZoneID); err != nil {
		return nil, Validationf("time zone %q is not resolvable", timeZoneID)
	}
	now := time.Now().UTC()
	return &Institution{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Name:       name,
		TimeZoneID: timeZoneID,
		Status:     InstitutionActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// AddAddress attaches a member address to the institution. The address must
// already be owned by this institution and its id must be unique within it.
func (i *Institution) AddAddress(a *MemberAddress) error {
	if a == nil {
		return Validationf("address is required")
	}
	if !strings.EqualFold(a.InstitutionID, i.ID) {
		return Validationf("address belongs to institution %q, not %q", a.InstitutionID, i.ID)
	}
	if !strings.EqualFold(a.TenantID, i.TenantID) {
		return Validationf("address tenant %q does not match institution tenant %q", a.TenantID, i.TenantID)
	}
	for _, existing := range i.Addresses {
		if strings.EqualFold(existing.ID, a.ID) {
			return Validationf("address id %q already exists in institution", a.ID)
		}
	}
	i.Addresses = append(i.Addresses, a)
	i.UpdatedAt = time.Now().UTC()
	return nil
}

// RemoveAddress detaches an address by id.
func (i *Institution) RemoveAddress(addressID string) error {
	for idx, a := range i.Addresses {
		if strings.EqualFold(a.ID, addressID) {
			i.Addresses = append(i.Addresses[:idx], i.Addresses[idx+1:]...)
			i.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

// UpdateDetails changes the mutable descriptive fields. TenantID never changes.
func (i *Institution) UpdateDetails(name, timeZoneID, primaryContactEmail string) error {
	if strings.TrimSpace(name) == "" {
		return Validationf("institution name is required")
	}
	if _, err := time.LoadLocation(timeZoneID); err != nil {
		return Validationf("time zone %q is not resolvable", timeZoneID)
	}
	i.Name = name
	i.TimeZoneID = timeZoneID
	i.PrimaryContactEmail = primaryContactEmail
	i.UpdatedAt = time.Now().UTC()
	return nil
}

// Suspend marks the institution suspended.
func (i *Institution) Suspend() {
	i.Status = InstitutionSuspended
	i.UpdatedAt = time.Now().UTC()
}

// Disable marks the institution disabled.
func (i *Institution) Disable() {
	i.Status = InstitutionDisabled
	i.UpdatedAt = time.Now().UTC()
}

// InstitutionCounts is the aggregate view used by scan status reporting.
type InstitutionCounts struct {
	Total           int
	Active          int
	Suspended       int
	Disabled        int
	Addresses       int
	ActiveAddresses int
}
