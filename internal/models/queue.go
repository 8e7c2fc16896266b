package models

import (
	"encoding/json"
	"time"
)

// QueueStatus is the delivery state of a sync queue item.
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusInProgress QueueStatus = "in_progress"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
	QueueStatusConflict   QueueStatus = "conflict"
)

// legalTransitions enumerates the allowed queue status transitions.
// failed→pending happens only through explicit manual retry, which issues a
// fresh item rather than flipping the dead-lettered one.
var legalTransitions = map[QueueStatus][]QueueStatus{
	QueueStatusPending:    {QueueStatusInProgress},
	QueueStatusInProgress: {QueueStatusCompleted, QueueStatusFailed, QueueStatusConflict, QueueStatusPending},
	QueueStatusConflict:   {QueueStatusPending},
}

// CanTransition reports whether moving from s to next is legal.
func (s QueueStatus) CanTransition(next QueueStatus) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SyncQueueItem is one durable outbox entry awaiting delivery to the remote
// system.
type SyncQueueItem struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"-"`
	StoreName string          `json:"store_name"`
	EntityID  string          `json:"entity_id"`
	Action    Action          `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Attempts  int             `json:"attempts"`
	Status    QueueStatus     `json:"status"`
	Priority  int             `json:"priority"`
	LastError string          `json:"last_error,omitempty"`
}

// FailedOperation is a dead-lettered queue item retained for manual
// intervention after retry exhaustion or a permanent rejection.
type FailedOperation struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"-"`
	StoreName string          `json:"store_name"`
	EntityID  string          `json:"entity_id"`
	Action    Action          `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Attempts  int             `json:"attempts"`
	Reason    string          `json:"reason"`
	FailedAt  time.Time       `json:"failed_at"`
}

// ConflictResolution is the explicit decision applied to a conflicted item.
// Merge policies beyond accept-local/accept-remote plug in at the service
// layer; the queue only knows the two terminal outcomes.
type ConflictResolution string

const (
	// ResolutionAcceptLocal re-enqueues the local payload for delivery.
	ResolutionAcceptLocal ConflictResolution = "accept-local"
	// ResolutionAcceptRemote drops the local item and marks the entity
	// synced as-is.
	ResolutionAcceptRemote ConflictResolution = "accept-remote"
)

// SyncState is the coarse status of the background delivery loop. Exactly
// one delivery pass runs at a time; the state flag guards re-entry.
type SyncState string

const (
	SyncStateIdle    SyncState = "idle"
	SyncStateSyncing SyncState = "syncing"
	SyncStateFailed  SyncState = "failed"
	SyncStateSuccess SyncState = "success"
)

// SyncStatusReport is the consumer-surface snapshot of queue health.
type SyncStatusReport struct {
	State         SyncState  `json:"state"`
	Online        bool       `json:"online"`
	QueueDepth    int        `json:"queue_depth"`
	FailedCount   int        `json:"failed_count"`
	ConflictCount int        `json:"conflict_count"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
}
