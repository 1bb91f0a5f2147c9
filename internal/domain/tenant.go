package domain

import (
	"context"
	"strings"
)

// TenantContext declares which tenant (or platform administrator) an
// operation is authorized to act as. Every store operation consults the
// ambient TenantContext carried on the context.Context; there is no
// implicit public access level.
type TenantContext struct {
	TenantID        string
	InstitutionID   string
	IsPlatformAdmin bool
}

// TenantInstitutionScope addresses exactly one cohort of member addresses.
// It is a value object; two scopes are equal when both ids are equal.
type TenantInstitutionScope struct {
	TenantID      string
	InstitutionID string
}

type tenantContextKey struct{}

// WithTenant returns a child context carrying the given tenant context.
// The scope is carried per-context, never as shared mutable state, so
// concurrent cohort dispatches cannot observe each other's context.
func WithTenant(ctx context.Context, tc TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tc)
}

// TenantFromContext extracts the ambient tenant context.
// Absence of a tenant context is a failure for every store operation.
func TenantFromContext(ctx context.Context) (TenantContext, error) {
	tc, ok := ctx.Value(tenantContextKey{}).(TenantContext)
	if !ok {
		return TenantContext{}, ErrTenantContextMissing
	}
	return tc, nil
}

// CanRead reports whether this context may read data owned by the given
// tenant/institution pair. Platform administrators bypass tenant filtering.
func (tc TenantContext) CanRead(tenantID, institutionID string) bool {
	if tc.IsPlatformAdmin {
		return true
	}
	if !strings.EqualFold(tc.TenantID, tenantID) {
		return false
	}
	if tc.InstitutionID != "" && !strings.EqualFold(tc.InstitutionID, institutionID) {
		return false
	}
	return true
}

// AuthorizeWrite rejects payloads whose ownership disagrees with the
// context. Writes never silently re-scope a payload to the caller's tenant.
func (tc TenantContext) AuthorizeWrite(tenantID, institutionID string) error {
	if tc.IsPlatformAdmin {
		return nil
	}
	if !strings.EqualFold(tc.TenantID, tenantID) {
		return ErrNotAuthorized
	}
	if tc.InstitutionID != "" && institutionID != "" && !strings.EqualFold(tc.InstitutionID, institutionID) {
		return ErrNotAuthorized
	}
	return nil
}
