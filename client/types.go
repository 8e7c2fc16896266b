package client

import (
	"encoding/json"
	"time"
)

// Entity is a stored document in one collection.
type Entity struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenant_id"`
	Collection      string          `json:"collection"`
	Fields          json.RawMessage `json:"fields"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	SyncStatus      string          `json:"sync_status"`
	SyncedAt        *time.Time      `json:"synced_at,omitempty"`
	HasLocalChanges bool            `json:"has_local_changes"`
}

// AuditMetadata carries the compliance classification of an audit entry.
type AuditMetadata struct {
	Classification      string   `json:"classification"`
	RetentionPeriodDays int      `json:"retention_period_days"`
	ComplianceFlags     []string `json:"compliance_flags,omitempty"`
	LegalHold           bool     `json:"legal_hold,omitempty"`
}

// AuditEntry is one link of a tenant's hash chain.
type AuditEntry struct {
	ID             string        `json:"id"`
	EntityType     string        `json:"entity_type"`
	EntityID       string        `json:"entity_id"`
	Action         string        `json:"action"`
	Timestamp      time.Time     `json:"timestamp"`
	UserID         string        `json:"user_id,omitempty"`
	Description    string        `json:"description,omitempty"`
	Tags           []string      `json:"tags,omitempty"`
	SequenceNumber int64         `json:"sequence_number"`
	PreviousHash   string        `json:"previous_hash"`
	Hash           string        `json:"hash"`
	Metadata       AuditMetadata `json:"metadata"`
}

// ChainMismatch describes one verification failure.
type ChainMismatch struct {
	Index          int    `json:"index"`
	SequenceNumber int64  `json:"sequence_number"`
	EntryID        string `json:"entry_id"`
	Reason         string `json:"reason"`
}

// ChainReport is the result of a full chain verification.
type ChainReport struct {
	Valid         bool            `json:"valid"`
	EntryCount    int             `json:"entry_count"`
	BrokenAtIndex int             `json:"broken_at_index"`
	Errors        []ChainMismatch `json:"errors,omitempty"`
}

// SyncQueueItem is one pending outbound operation.
type SyncQueueItem struct {
	ID        string          `json:"id"`
	StoreName string          `json:"store_name"`
	EntityID  string          `json:"entity_id"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Attempts  int             `json:"attempts"`
	Status    string          `json:"status"`
	Priority  int             `json:"priority"`
	LastError string          `json:"last_error,omitempty"`
}

// FailedOperation is a dead-lettered queue item.
type FailedOperation struct {
	ID        string          `json:"id"`
	StoreName string          `json:"store_name"`
	EntityID  string          `json:"entity_id"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Attempts  int             `json:"attempts"`
	Reason    string          `json:"reason"`
	FailedAt  time.Time       `json:"failed_at"`
}

// SyncStatusReport is the current queue and delivery state for a tenant.
type SyncStatusReport struct {
	State         string     `json:"state"`
	Online        bool       `json:"online"`
	QueueDepth    int        `json:"queue_depth"`
	FailedCount   int        `json:"failed_count"`
	ConflictCount int        `json:"conflict_count"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
}

// MutationResult is the outcome of one write: the entity state after the
// write, its audit entry, and the queued sync operation (nil for local-only
// writes and deletes of the entity field).
type MutationResult struct {
	Entity     *Entity        `json:"entity,omitempty"`
	AuditEntry *AuditEntry    `json:"audit_entry"`
	QueueItem  *SyncQueueItem `json:"queue_item,omitempty"`
}

// MutateOptions are the optional parts of a write request.
type MutateOptions struct {
	Action      string   `json:"action,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Priority    int      `json:"priority,omitempty"`
	LocalOnly   bool     `json:"local_only,omitempty"`
}

// AuditQueryOptions filters an audit query.
type AuditQueryOptions struct {
	EntityType string
	EntityID   string
	Action     string
	Since      *time.Time
	Limit      int
	Offset     int
}

// HealthResponse is the liveness check payload.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Tenants       int     `json:"tenants"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Resolution values accepted by SyncService.Resolve.
const (
	ResolutionAcceptLocal  = "accept-local"
	ResolutionAcceptRemote = "accept-remote"
)
