// Package testutil provides shared helpers for handler and integration
// tests: tenant-scoped contexts and requests, and deterministic clocks.
package testutil

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	id "studbook/pkg/domain"
	"studbook/pkg/requestcontext"
)

// TenantContext returns a context scoped to a fresh random tenant.
func TenantContext() (context.Context, id.TenantID) {
	tenantID := id.TenantID(uuid.New())
	return requestcontext.WithTenantID(context.Background(), tenantID), tenantID
}

// WithTenant scopes a request to the given tenant, simulating what the
// tenantctx middleware does for authenticated requests.
func WithTenant(req *http.Request, tenantID id.TenantID) *http.Request {
	return req.WithContext(requestcontext.WithTenantID(req.Context(), tenantID))
}

// WithFrozenTime pins requestcontext.Now to a fixed instant so timestamps
// written by services are assertable.
func WithFrozenTime(ctx context.Context, at time.Time) context.Context {
	return requestcontext.WithTime(ctx, at)
}
