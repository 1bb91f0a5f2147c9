package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// PostalAddress is the civic address of a member or a listing.
type PostalAddress struct {
	Line1           string
	Line2           string
	City            string
	StateOrProvince string
	PostalCode      string
	CountryCode     string
	Coordinate      *Coordinate
}

// MemberAddress is an address registered by an institution on behalf of a
// member. It is owned by an Institution but stored independently so that
// state-level queries do not load whole aggregates. TenantID and
// InstitutionID are immutable; everything else mutates only through the
// methods below.
type MemberAddress struct {
	ID                   string
	TenantID             string
	InstitutionID        string
	Address              PostalAddress
	IsActive             bool
	Tags                 []string
	LastMatchedAt        *time.Time
	LastMatchedListingID string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewMemberAddress validates and constructs an active member address.
func NewMemberAddress(tenantID, institutionID string, address PostalAddress) (*MemberAddress, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, Validationf("tenant id is required")
	}
	if strings.TrimSpace(institutionID) == "" {
		return nil, Validationf("institution id is required")
	}
	if err := validatePostalAddress(address); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &MemberAddress{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		InstitutionID: institutionID,
		Address:       address,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func validatePostalAddress(a PostalAddress) error {
	if strings.TrimSpace(a.Line1) == "" {
		return Validationf("address line1 is required")
	}
	if strings.TrimSpace(a.City) == "" {
		return Validationf("address city is required")
	}
	if strings.TrimSpace(a.StateOrProvince) == "" {
		return Validationf("address state or province is required")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		return Validationf("address postal code is required")
	}
	return nil
}

// Activate marks the address eligible for matching.
func (m *MemberAddress) Activate() {
	m.IsActive = true
	m.UpdatedAt = time.Now().UTC()
}

// Deactivate excludes the address from matching and cohort discovery.
func (m *MemberAddress) Deactivate() {
	m.IsActive = false
	m.UpdatedAt = time.Now().UTC()
}

// UpdateAddress replaces the civic address after validation.
func (m *MemberAddress) UpdateAddress(address PostalAddress) error {
	if err := validatePostalAddress(address); err != nil {
		return err
	}
	m.Address = address
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// RecordMatch stamps the address with the most recent listing that matched it.
func (m *MemberAddress) RecordMatch(listingID string, detectedAt time.Time) {
	at := detectedAt.UTC()
	m.LastMatchedAt = &at
	m.LastMatchedListingID = listingID
	m.UpdatedAt = time.Now().UTC()
}

// ReplaceTags swaps the tag set atomically. Tags are deduplicated
// case-insensitively and stored sorted.
func (m *MemberAddress) ReplaceTags(tags []string) {
	seen := make(map[string]string, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		seen[strings.ToLower(t)] = t
	}
	replaced := make([]string, 0, len(seen))
	for _, t := range seen {
		replaced = append(replaced, t)
	}
	sort.Strings(replaced)
	m.Tags = replaced
	m.UpdatedAt = time.Now().UTC()
}
