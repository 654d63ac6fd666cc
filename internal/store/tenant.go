// Copyright (c) 2024 Scout Analytics, Inc. All rights reserved.

package store

import "fmt"

// TenantContext binds a store operation to a single tenant. Every read and
// write on the asset store takes one explicitly; there is no ambient or
// global current tenant. The zero value is unbound and rejected by the store.
type TenantContext struct {
	tenantID string
}

// NewTenantContext returns a context bound to the given tenant id.
func NewTenantContext(tenantID string) (TenantContext, error) {
	if tenantID == "" {
		return TenantContext{}, fmt.Errorf("tenant id is required")
	}
	return TenantContext{tenantID: tenantID}, nil
}

// TenantID returns the bound tenant id, empty when unbound.
func (t TenantContext) TenantID() string {
	return t.tenantID
}

func (t TenantContext) check() error {
	if t.tenantID == "" {
		return fmt.Errorf("store operation requires a bound tenant context")
	}
	return nil
}
