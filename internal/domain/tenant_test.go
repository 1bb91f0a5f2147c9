package domain

import (
	"context"
	"errors"
	"testing"
)

func TestTenantFromContext(t *testing.T) {
	t.Run("Missing Context Is A Failure", func(t *testing.T) {
		_, err := TenantFromContext(context.Background())
		if !errors.Is(err, ErrTenantContextMissing) {
			t.Fatalf("expected ErrTenantContextMissing, got %v", err)
		}
	})

	t.Run("Round Trip", func(t *testing.T) {
		tc := TenantContext{TenantID: "tenant-a", InstitutionID: "inst-1"}
		got, err := TenantFromContext(WithTenant(context.Background(), tc))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != tc {
			t.Errorf("expected %+v, got %+v", tc, got)
		}
	})

	t.Run("Derived Contexts Do Not Leak", func(t *testing.T) {
		base := context.Background()
		a := WithTenant(base, TenantContext{TenantID: "tenant-a"})
		b := WithTenant(base, TenantContext{TenantID: "tenant-b"})

		gotA, _ := TenantFromContext(a)
		gotB, _ := TenantFromContext(b)
		if gotA.TenantID != "tenant-a" || gotB.TenantID != "tenant-b" {
			t.Errorf("contexts leaked: %q %q", gotA.TenantID, gotB.TenantID)
		}
		if _, err := TenantFromContext(base); err == nil {
			t.Error("base context must remain without tenant context")
		}
	})
}

func TestTenantContextCanRead(t *testing.T) {
	admin := TenantContext{IsPlatformAdmin: true}
	if !admin.CanRead("any-tenant", "any-institution") {
		t.Error("platform admin must bypass tenant filtering")
	}

	scoped := TenantContext{TenantID: "Tenant-A", InstitutionID: "Inst-1"}
	if !scoped.CanRead("tenant-a", "inst-1") {
		t.Error("case-insensitive same-scope read must pass")
	}
	if scoped.CanRead("tenant-b", "inst-1") {
		t.Error("cross-tenant read must fail")
	}
	if scoped.CanRead("tenant-a", "inst-2") {
		t.Error("cross-institution read must fail when the context pins an institution")
	}

	tenantOnly := TenantContext{TenantID: "tenant-a"}
	if !tenantOnly.CanRead("tenant-a", "inst-2") {
		t.Error("tenant-wide context must read any institution of the tenant")
	}
}

func TestTenantContextAuthorizeWrite(t *testing.T) {
	scoped := TenantContext{TenantID: "tenant-a", InstitutionID: "inst-1"}

	if err := scoped.AuthorizeWrite("tenant-a", "inst-1"); err != nil {
		t.Errorf("same-scope write rejected: %v", err)
	}
	if err := scoped.AuthorizeWrite("tenant-b", "inst-1"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected authorization failure, got %v", err)
	}
	if err := scoped.AuthorizeWrite("tenant-a", "inst-2"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected authorization failure, got %v", err)
	}
}
