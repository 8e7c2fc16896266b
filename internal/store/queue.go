package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opsledger/opsledger/internal/models"
)

// QueueStore provides data access for the durable sync outbox and its dead
// letters.
type QueueStore struct {
	Base
}

// NewQueueStore creates a QueueStore.
func NewQueueStore(base Base) *QueueStore {
	return &QueueStore{Base: base}
}

const queueColumns = "id, tenant_id, store_name, entity_id, action, payload, timestamp, attempts, status, priority, last_error"

// enqueueTx persists a new pending item inside a mutation transaction,
// filling in its ID.
func enqueueTx(ctx context.Context, tx *sql.Tx, item *models.SyncQueueItem) error {
	item.ID = uuid.NewString()
	item.Status = models.QueueStatusPending
	item.Attempts = 0

	var payload any
	if len(item.Payload) > 0 {
		payload = string(item.Payload)
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO sync_queue (id, tenant_id, store_name, entity_id, action, payload, timestamp, attempts, status, priority, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, '')`,
		item.ID, item.TenantID, item.StoreName, item.EntityID, item.Action,
		payload, formatTime(item.Timestamp), item.Status, item.Priority,
	)
	if err != nil {
		return fmt.Errorf("enqueueing sync item: %w", err)
	}

	return nil
}

// Get returns a single queue item, or models.ErrQueueItemNotFound.
func (s *QueueStore) Get(ctx context.Context, tenantID, itemID string) (*models.SyncQueueItem, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	h, err := s.handle(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	rows, err := h.DB().QueryContext(ctx,
		"SELECT "+queueColumns+" FROM sync_queue WHERE id = ?", itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying queue item: %w", err)
	}
	defer rows.Close()

	items, err := scanQueueRows(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, models.ErrQueueItemNotFound
	}

	return &items[0], nil
}

// Pending returns deliverable items in priority-then-FIFO order.
func (s *QueueStore) Pending(ctx context.Context, tenantID string) ([]models.SyncQueueItem, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	h, err := s.handle(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	rows, err := h.DB().QueryContext(ctx,
		"SELECT "+queueColumns+" FROM sync_queue WHERE status = ? ORDER BY priority DESC, timestamp",
		models.QueueStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("querying pending items: %w", err)
	}
	defer rows.Close()

	return scanQueueRows(rows)
}

// Transition moves an item between queue states, enforcing the legal
// transition table. lastError is recorded alongside failure-class moves.
func (s *QueueStore) Transition(ctx context.Context, tenantID, itemID string, to models.QueueStatus, lastError string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	h, err := s.handle(ctx, tenantID)
	if err != nil {
		return err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	var from models.QueueStatus

	err = h.DB().QueryRowContext(ctx,
		"SELECT status FROM sync_queue WHERE id = ?", itemID,
	).Scan(&from)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrQueueItemNotFound
	}
	if err != nil {
		return fmt.Errorf("reading queue item status: %w", err)
	}

	if !from.CanTransition(to) {
		return models.ErrIllegalTransition(from, to)
	}

	_, err = h.DB().ExecContext(ctx,
		"UPDATE sync_queue SET status = ?, last_error = ? WHERE id = ?",
		to, lastError, itemID,
	)
	if err != nil {
		return fmt.Errorf("updating queue item status: %w", err)
	}

	return nil
}

// Complete removes a delivered item from the queue.
func (s *QueueStore) Complete(ctx context.Context, tenantID, itemID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	h, err := s.handle(ctx, tenantID)
	if err != nil {
		return err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	_, err = h.DB().ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", itemID)
	if err != nil {
		return fmt.Errorf("removing delivered item: %w", err)
	}

	return nil
}

// RecordAttempt increments an item's attempt counter and returns the new
// count, resetting the item to pending for the next pass.
func (s *QueueStore) RecordAttempt(ctx context.Context, tenantID, itemID, lastError string) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	h, err := s.handle(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	_, err = h.DB().ExecContext(ctx,
		"UPDATE sync_queue SET attempts = attempts + 1, status = ?, last_error = ? WHERE id = ?",
		models.QueueStatusPending, lastError, itemID,
	)
	if err != nil {
		return 0, fmt.Errorf("recording delivery attempt: %w", err)
	}

	var attempts int

	err = h.DB().QueryRowContext(ctx,
		"SELECT attempts FROM sync_queue WHERE id = ?", itemID,
	).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("reading attempt count: %w", err)
	}

	return attempts, nil
}

// MoveToFailed dead-letters an item: the queue row is replaced by a
// FailedOperation retaining the failure reason, atomically.
func (s *QueueStore) MoveToFailed(ctx context.Context, tenantID, itemID, reason string, now time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	h, err := s.handle(ctx, tenantID)
	if err != nil {
		return err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	tx, err := h.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning dead-letter transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort rollback on early return.

	res, err := tx.ExecContext(ctx,
		`INSERT INTO failed_operations (id, tenant_id, store_name, entity_id, action, payload, timestamp, attempts, reason, failed_at)
		 SELECT id, tenant_id, store_name, entity_id, action, payload, timestamp, attempts, ?, ?
		 FROM sync_queue WHERE id = ?`,
		reason, formatTime(now), itemID,
	)
	if err != nil {
		return fmt.Errorf("dead-lettering item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking dead-letter result: %w", err)
	}
	if affected == 0 {
		return models.ErrQueueItemNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", itemID); err != nil {
		return fmt.Errorf("removing dead-lettered item: %w", err)
	}

	return tx.Commit()
}

// RetryFailed moves a dead-lettered operation back to the queue as a fresh
// pending item with attempts reset to zero. Returns the new item.
func (s *QueueStore) RetryFailed(ctx context.Context, tenantID, failedID string, now time.Time) (*models.SyncQueueItem, error) {
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
		return nil, fmt.Errorf("beginning retry transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort rollback on early return.

	// failed_operations has no priority column; re-enqueued items go back at
	// default priority.
	var (
		item    models.SyncQueueItem
		payload sql.NullString
	)

	err = tx.QueryRowContext(ctx,
		"SELECT store_name, entity_id, action, payload FROM failed_operations WHERE id = ?",
		failedID,
	).Scan(&item.StoreName, &item.EntityID, &item.Action, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrFailedOpNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading failed operation: %w", err)
	}

	item.ID = uuid.NewString()
	item.TenantID = tenantID
	item.Status = models.QueueStatusPending
	item.Timestamp = now
	if payload.Valid {
		item.Payload = []byte(payload.String)
	}

	var payloadArg any
	if payload.Valid {
		payloadArg = payload.String
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sync_queue (id, tenant_id, store_name, entity_id, action, payload, timestamp, attempts, status, priority, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, 0, '')`,
		item.ID, tenantID, item.StoreName, item.EntityID, item.Action, payloadArg,
		formatTime(now), models.QueueStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("re-enqueueing failed operation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM failed_operations WHERE id = ?", failedID); err != nil {
		return nil, fmt.Errorf("removing failed operation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &item, nil
}

// ListFailed returns all dead-lettered operations, newest first.
func (s *QueueStore) ListFailed(ctx context.Context, tenantID string) ([]models.FailedOperation, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	h, err := s.handle(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	rows, err := h.DB().QueryContext(ctx,
		"SELECT id, tenant_id, store_name, entity_id, action, payload, timestamp, attempts, reason, failed_at FROM failed_operations ORDER BY failed_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("querying failed operations: %w", err)
	}
	defer rows.Close()

	var ops []models.FailedOperation
	for rows.Next() {
		var (
			op          models.FailedOperation
			payload     sql.NullString
			tsRaw       string
			failedAtRaw string
		)
		if err := rows.Scan(&op.ID, &op.TenantID, &op.StoreName, &op.EntityID, &op.Action, &payload, &tsRaw, &op.Attempts, &op.Reason, &failedAtRaw); err != nil {
			return nil, fmt.Errorf("scanning failed operation: %w", err)
		}
		if payload.Valid {
			op.Payload = []byte(payload.String)
		}
		if op.Timestamp, err = parseTime(tsRaw); err != nil {
			return nil, fmt.Errorf("parsing failed operation timestamp: %w", err)
		}
		if op.FailedAt, err = parseTime(failedAtRaw); err != nil {
			return nil, fmt.Errorf("parsing failed_at: %w", err)
		}
		ops = append(ops, op)
	}

	return ops, rows.Err()
}

// ClearFailed deletes a dead-lettered operation permanently.
func (s *QueueStore) ClearFailed(ctx context.Context, tenantID, failedID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	h, err := s.handle(ctx, tenantID)
	if err != nil {
		return err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	res, err := h.DB().ExecContext(ctx, "DELETE FROM failed_operations WHERE id = ?", failedID)
	if err != nil {
		return fmt.Errorf("clearing failed operation: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking clear result: %w", err)
	}
	if affected == 0 {
		return models.ErrFailedOpNotFound
	}

	return nil
}

// Depth returns the number of pending items.
func (s *QueueStore) Depth(ctx context.Context, tenantID string) (int, error) {
	return s.countWhere(ctx, tenantID, "SELECT COUNT(*) FROM sync_queue WHERE status = ?", models.QueueStatusPending)
}

// ConflictCount returns the number of items parked in the conflict state.
func (s *QueueStore) ConflictCount(ctx context.Context, tenantID string) (int, error) {
	return s.countWhere(ctx, tenantID, "SELECT COUNT(*) FROM sync_queue WHERE status = ?", models.QueueStatusConflict)
}

// FailedCount returns the number of dead-lettered operations.
func (s *QueueStore) FailedCount(ctx context.Context, tenantID string) (int, error) {
	return s.countWhere(ctx, tenantID, "SELECT COUNT(*) FROM failed_operations")
}

func (s *QueueStore) countWhere(ctx context.Context, tenantID, query string, args ...any) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	h, err := s.handle(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	var count int
	if err := h.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting queue items: %w", err)
	}

	return count, nil
}

// Conflicts returns the items awaiting explicit conflict resolution.
func (s *QueueStore) Conflicts(ctx context.Context, tenantID string) ([]models.SyncQueueItem, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	h, err := s.handle(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	rows, err := h.DB().QueryContext(ctx,
		"SELECT "+queueColumns+" FROM sync_queue WHERE status = ? ORDER BY timestamp",
		models.QueueStatusConflict,
	)
	if err != nil {
		return nil, fmt.Errorf("querying conflict items: %w", err)
	}
	defer rows.Close()

	return scanQueueRows(rows)
}

func scanQueueRows(rows *sql.Rows) ([]models.SyncQueueItem, error) {
	var items []models.SyncQueueItem

	for rows.Next() {
		var (
			item    models.SyncQueueItem
			payload sql.NullString
			tsRaw   string
		)

		if err := rows.Scan(&item.ID, &item.TenantID, &item.StoreName, &item.EntityID, &item.Action,
			&payload, &tsRaw, &item.Attempts, &item.Status, &item.Priority, &item.LastError,
		); err != nil {
			return nil, fmt.Errorf("scanning queue item: %w", err)
		}

		if payload.Valid {
			item.Payload = []byte(payload.String)
		}

		var err error
		if item.Timestamp, err = parseTime(tsRaw); err != nil {
			return nil, fmt.Errorf("parsing queue timestamp: %w", err)
		}

		items = append(items, item)
	}

	return items, rows.Err()
}
