// Package domain defines the canonical interfaces shared across consumer
// surfaces (REST handlers, the client SDK, typed collection wrappers).
// Consumers should depend on these rather than re-declaring equivalents.
package domain

import (
	"context"
	"time"

	"github.com/opsledger/opsledger/internal/models"
)

// Transport is the external delivery contract. Deliver returns nil on
// acknowledgement, a *models.RejectError on rejection, and a
// *models.ConflictError when the remote version diverged. Any other error is
// treated as transient.
type Transport interface {
	Deliver(ctx context.Context, item models.SyncQueueItem) error
}

// Mutator is the single local write entry point.
type Mutator interface {
	Mutate(ctx context.Context, tenantID string, req models.MutationRequest) (*models.MutationResult, error)
}

// EntityService defines read and sync-acknowledgement operations on the
// tenant document store.
type EntityService interface {
	Get(ctx context.Context, tenantID, collection, id string) (*models.Entity, error)
	GetAll(ctx context.Context, tenantID, collection string) ([]models.Entity, error)
	MarkSynced(ctx context.Context, tenantID, collection, id string, now time.Time) error
}

// ChainService defines audit chain query and maintenance operations.
type ChainService interface {
	Verify(ctx context.Context, tenantID string) (*models.ChainReport, error)
	Query(ctx context.Context, tenantID string, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error)
	Expire(ctx context.Context, tenantID string, now time.Time) (int, error)
	SetLegalHold(ctx context.Context, tenantID, entryID string, hold bool) error
}

// SyncService defines queue inspection and manual intervention operations.
type SyncService interface {
	Status(ctx context.Context, tenantID string) (*models.SyncStatusReport, error)
	ListFailed(ctx context.Context, tenantID string) ([]models.FailedOperation, error)
	RetryFailed(ctx context.Context, tenantID, failedID string) (*models.SyncQueueItem, error)
	ClearFailed(ctx context.Context, tenantID, failedID string) error
	Conflicts(ctx context.Context, tenantID string) ([]models.SyncQueueItem, error)
	Resolve(ctx context.Context, tenantID, itemID string, resolution models.ConflictResolution) error
}

// Notifier is the observer surface over committed mutations.
type Notifier interface {
	Subscribe(tenantID, collection string, fn func(models.ChangeEvent)) (unsubscribe func())
}
