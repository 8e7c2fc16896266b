package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opsledger/opsledger/internal/models"
)

// MutationStore commits the three records of a mutation — entity, audit
// entry, queue item — in one transaction. Either all of them land or none:
// an entity written without its audit entry is exactly the divergence the
// chain exists to prevent.
type MutationStore struct {
	Base
}

// NewMutationStore creates a MutationStore.
func NewMutationStore(base Base) *MutationStore {
	return &MutationStore{Base: base}
}

// ApplyInput is a validated mutation. An empty Action means create vs
// update is settled inside the transaction; delete is always declared.
type ApplyInput struct {
	Collection  string
	EntityID    string
	Action      models.Action
	Fields      json.RawMessage
	UserID      string
	Description string
	Tags        []string
	Metadata    models.AuditMetadata
	Priority    int
	LocalOnly   bool
	Now         time.Time
}

// Apply runs the atomic commit. The tenant's write mutex is held for the
// whole transaction, which also serializes the audit sequence computation.
func (s *MutationStore) Apply(ctx context.Context, tenantID string, in ApplyInput) (*models.MutationResult, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	h, err := s.handle(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	tx, err := h.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning mutation transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort rollback on early return.

	action := in.Action
	if action == "" {
		// Settling the inferred action here, under the write lock and
		// inside the transaction, keeps the audit action honest when
		// concurrent callers touch the same entity.
		exists, err := existsTx(ctx, tx, in.Collection, in.EntityID)
		if err != nil {
			return nil, err
		}
		action = models.ActionCreate
		if exists {
			action = models.ActionUpdate
		}
	}

	result := &models.MutationResult{}

	switch action {
	case models.ActionDelete:
		if err := deleteTx(ctx, tx, in.Collection, in.EntityID); err != nil {
			return nil, err
		}
	default:
		entity, _, err := putTx(ctx, tx, tenantID, in.Collection, in.EntityID, in.Fields, in.Now)
		if err != nil {
			return nil, err
		}
		result.Entity = entity
	}

	entry := &models.AuditEntry{
		TenantID:    tenantID,
		EntityType:  in.Collection,
		EntityID:    in.EntityID,
		Action:      action,
		Timestamp:   in.Now,
		UserID:      in.UserID,
		Description: in.Description,
		Tags:        in.Tags,
		Metadata:    in.Metadata,
	}
	if err := appendTx(ctx, tx, entry); err != nil {
		return nil, err
	}
	result.AuditEntry = entry

	if !in.LocalOnly {
		item := &models.SyncQueueItem{
			TenantID:  tenantID,
			StoreName: in.Collection,
			EntityID:  in.EntityID,
			Action:    action,
			Payload:   in.Fields,
			Timestamp: in.Now,
			Priority:  in.Priority,
		}
		if err := enqueueTx(ctx, tx, item); err != nil {
			return nil, err
		}
		result.QueueItem = item
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing mutation: %w", err)
	}

	return result, nil
}
