// Package store provides focused, single-concern data access stores for the
// opsledger persistence core.
//
// Each store owns one domain (entities, audit chain, sync queue) and embeds
// shared helpers (Registry, logger) via the Base struct. Stores never import
// each other — the one cross-store operation, the atomic mutation commit,
// lives in MutationStore and works through transaction-scoped helpers.
package store

import (
	"context"
	"time"
)

const defaultQueryTimeout = 30 * time.Second

// Base contains shared dependencies for all stores.
// Embed this in each store struct.
type Base struct {
	Registry *Registry
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// handle returns the tenant's database handle, opening it on first use.
func (b *Base) handle(ctx context.Context, tenantID string) (*Handle, error) {
	return b.Registry.Open(ctx, tenantID)
}
