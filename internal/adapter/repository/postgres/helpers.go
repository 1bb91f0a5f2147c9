// Package postgres implements the tenant-isolated store contracts on
// PostgreSQL. Every query consults the ambient tenant context: platform
// admins see the unfiltered universe, non-admin contexts are restricted to
// their tenant (and institution, when present), and a missing context fails
// the operation.
package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/user/listing-sentinel/internal/domain"
)

// tenantFilter appends tenant/institution predicates for a non-admin
// context. columns name the tenant and institution columns of the queried
// table; the returned clause starts with " AND" or is empty.
func tenantFilter(tc domain.TenantContext, tenantColumn, institutionColumn string, args []any) (string, []any) {
	if tc.IsPlatformAdmin {
		return "", args
	}
	clause := fmt.Sprintf(" AND lower(%s) = lower($%d)", tenantColumn, len(args)+1)
	args = append(args, tc.TenantID)
	if tc.InstitutionID != "" && institutionColumn != "" {
		clause += fmt.Sprintf(" AND lower(%s) = lower($%d)", institutionColumn, len(args)+1)
		args = append(args, tc.InstitutionID)
	}
	return clause, args
}

// requireTenant extracts the ambient tenant context, failing the operation
// when absent.
func requireTenant(ctx context.Context) (domain.TenantContext, error) {
	return domain.TenantFromContext(ctx)
}

// pageWindow normalizes 1-based page/size into a LIMIT/OFFSET pair.
func pageWindow(page, size int) (limit, offset int) {
	if size < 1 {
		size = 20
	}
	if page < 1 {
		page = 1
	}
	return size, (page - 1) * size
}

func itoa(n int) string { return strconv.Itoa(n) }
