package models

import (
	"encoding/json"
	"time"
)

// SyncStatus describes an entity's relationship to the remote system.
type SyncStatus string

const (
	// SyncStatusDirty marks an entity with local changes not yet delivered.
	SyncStatusDirty SyncStatus = "dirty"
	// SyncStatusSynced marks an entity acknowledged by the remote system.
	SyncStatusSynced SyncStatus = "synced"
)

// Entity is a document stored in a named collection, partitioned by tenant.
// Fields holds the caller's document body; the remaining columns are stamped
// by the store.
type Entity struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenant_id"`
	Collection      string          `json:"collection"`
	Fields          json.RawMessage `json:"fields"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	SyncStatus      SyncStatus      `json:"sync_status"`
	SyncedAt        *time.Time      `json:"synced_at,omitempty"`
	HasLocalChanges bool            `json:"has_local_changes"`
}

// FieldMap decodes the entity body into a map. Returns an empty map for an
// entity with no fields.
func (e *Entity) FieldMap() (map[string]any, error) {
	fields := map[string]any{}
	if len(e.Fields) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(e.Fields, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Action is the mutation intent recorded in the audit chain and sync queue.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Valid reports whether a is one of the known mutation actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// MutationRequest is the orchestrator's single entry point payload.
// Action is optional: when empty, create vs update is inferred from whether
// the record already exists. Delete must always be explicit.
type MutationRequest struct {
	Collection  string          `json:"collection"`
	EntityID    string          `json:"entity_id"`
	Action      Action          `json:"action,omitempty"`
	Fields      json.RawMessage `json:"fields,omitempty"`
	UserID      string          `json:"user_id,omitempty"`
	Description string          `json:"description,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Priority    int             `json:"priority,omitempty"`
	// LocalOnly skips the sync queue for mutations that never leave the
	// device (e.g. UI preferences).
	LocalOnly bool `json:"local_only,omitempty"`
}

// MutationResult reports the records committed by a successful mutation.
type MutationResult struct {
	Entity     *Entity        `json:"entity,omitempty"`
	AuditEntry *AuditEntry    `json:"audit_entry"`
	QueueItem  *SyncQueueItem `json:"queue_item,omitempty"`
}

// ChangeEvent is delivered to subscribers after a mutation has durably
// committed.
type ChangeEvent struct {
	TenantID   string    `json:"-"`
	Collection string    `json:"collection"`
	EntityID   string    `json:"entity_id"`
	Action     Action    `json:"action"`
	Timestamp  time.Time `json:"timestamp"`
}
