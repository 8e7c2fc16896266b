package api_test

import (
	"context"
	"time"

	"github.com/opsledger/opsledger/internal/models"
)

// mockMutator implements domain.Mutator for testing.
type mockMutator struct {
	mutateFn func(ctx context.Context, tenantID string, req models.MutationRequest) (*models.MutationResult, error)
}

func (m *mockMutator) Mutate(ctx context.Context, tenantID string, req models.MutationRequest) (*models.MutationResult, error) {
	return m.mutateFn(ctx, tenantID, req)
}

// mockEntityService implements domain.EntityService for testing.
type mockEntityService struct {
	getFn    func(ctx context.Context, tenantID, collection, id string) (*models.Entity, error)
	getAllFn func(ctx context.Context, tenantID, collection string) ([]models.Entity, error)
}

func (m *mockEntityService) Get(ctx context.Context, tenantID, collection, id string) (*models.Entity, error) {
	return m.getFn(ctx, tenantID, collection, id)
}

func (m *mockEntityService) GetAll(ctx context.Context, tenantID, collection string) ([]models.Entity, error) {
	return m.getAllFn(ctx, tenantID, collection)
}

func (m *mockEntityService) MarkSynced(context.Context, string, string, string, time.Time) error {
	return nil
}

// mockChainService implements domain.ChainService for testing.
type mockChainService struct {
	verifyFn func(ctx context.Context, tenantID string) (*models.ChainReport, error)
	queryFn  func(ctx context.Context, tenantID string, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error)
	expireFn func(ctx context.Context, tenantID string, now time.Time) (int, error)
	holdFn   func(ctx context.Context, tenantID, entryID string, hold bool) error
}

func (m *mockChainService) Verify(ctx context.Context, tenantID string) (*models.ChainReport, error) {
	return m.verifyFn(ctx, tenantID)
}

func (m *mockChainService) Query(ctx context.Context, tenantID string, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error) {
	return m.queryFn(ctx, tenantID, opts)
}

func (m *mockChainService) Expire(ctx context.Context, tenantID string, now time.Time) (int, error) {
	return m.expireFn(ctx, tenantID, now)
}

func (m *mockChainService) SetLegalHold(ctx context.Context, tenantID, entryID string, hold bool) error {
	return m.holdFn(ctx, tenantID, entryID, hold)
}

// mockSyncService implements domain.SyncService for testing.
type mockSyncService struct {
	statusFn      func(ctx context.Context, tenantID string) (*models.SyncStatusReport, error)
	listFailedFn  func(ctx context.Context, tenantID string) ([]models.FailedOperation, error)
	retryFailedFn func(ctx context.Context, tenantID, failedID string) (*models.SyncQueueItem, error)
	clearFailedFn func(ctx context.Context, tenantID, failedID string) error
	conflictsFn   func(ctx context.Context, tenantID string) ([]models.SyncQueueItem, error)
	resolveFn     func(ctx context.Context, tenantID, itemID string, resolution models.ConflictResolution) error
}

func (m *mockSyncService) Status(ctx context.Context, tenantID string) (*models.SyncStatusReport, error) {
	return m.statusFn(ctx, tenantID)
}

func (m *mockSyncService) ListFailed(ctx context.Context, tenantID string) ([]models.FailedOperation, error) {
	return m.listFailedFn(ctx, tenantID)
}

func (m *mockSyncService) RetryFailed(ctx context.Context, tenantID, failedID string) (*models.SyncQueueItem, error) {
	return m.retryFailedFn(ctx, tenantID, failedID)
}

func (m *mockSyncService) ClearFailed(ctx context.Context, tenantID, failedID string) error {
	return m.clearFailedFn(ctx, tenantID, failedID)
}

func (m *mockSyncService) Conflicts(ctx context.Context, tenantID string) ([]models.SyncQueueItem, error) {
	return m.conflictsFn(ctx, tenantID)
}

func (m *mockSyncService) Resolve(ctx context.Context, tenantID, itemID string, resolution models.ConflictResolution) error {
	return m.resolveFn(ctx, tenantID, itemID, resolution)
}

// mockSyncControl implements api.SyncControl for testing.
type mockSyncControl struct {
	kicks  int
	online *bool
}

func (m *mockSyncControl) Kick() { m.kicks++ }

func (m *mockSyncControl) SetOnline(online bool) { m.online = &online }
