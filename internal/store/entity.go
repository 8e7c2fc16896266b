package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opsledger/opsledger/internal/models"
)

// EntityStore provides document access for a tenant's named collections.
type EntityStore struct {
	Base
}

// NewEntityStore creates an EntityStore.
func NewEntityStore(base Base) *EntityStore {
	return &EntityStore{Base: base}
}

const entityColumns = "collection, id, tenant_id, fields, created_at, updated_at, sync_status, synced_at, has_local_changes"

// Get returns a single entity, or models.ErrEntityNotFound.
func (s *EntityStore) Get(ctx context.Context, tenantID, collection, id string) (*models.Entity, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	h, err := s.handle(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	row := h.DB().QueryRowContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE collection = ? AND id = ?",
		collection, id,
	)

	entity, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrEntityNotFound
		}

		return nil, fmt.Errorf("querying entity: %w", err)
	}

	return entity, nil
}

// GetAll returns every entity in a collection ordered by id.
func (s *EntityStore) GetAll(ctx context.Context, tenantID, collection string) ([]models.Entity, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	h, err := s.handle(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	rows, err := h.DB().QueryContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE collection = ? ORDER BY id",
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []models.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		entities = append(entities, *entity)
	}

	return entities, rows.Err()
}

// MarkSynced records remote acknowledgement of an entity. Idempotent: a
// second call on an already-synced entity changes nothing.
func (s *EntityStore) MarkSynced(ctx context.Context, tenantID, collection, id string, now time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	h, err := s.handle(ctx, tenantID)
	if err != nil {
		return err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	_, err = h.DB().ExecContext(ctx,
		`UPDATE entities SET sync_status = ?, synced_at = ?, has_local_changes = 0
		 WHERE collection = ? AND id = ? AND has_local_changes = 1`,
		models.SyncStatusSynced, formatTime(now), collection, id,
	)
	if err != nil {
		return fmt.Errorf("marking entity synced: %w", err)
	}

	return nil
}

// putTx inserts or overwrites an entity inside a mutation transaction,
// stamping tenant and timestamps and marking it dirty. Returns the stored
// entity and whether it was newly created.
func putTx(ctx context.Context, tx *sql.Tx, tenantID, collection, id string, fields json.RawMessage, now time.Time) (*models.Entity, bool, error) {
	existing := tx.QueryRowContext(ctx,
		"SELECT created_at FROM entities WHERE collection = ? AND id = ?",
		collection, id,
	)

	createdAt := now
	created := true

	var createdRaw string
	err := existing.Scan(&createdRaw)
	switch {
	case err == nil:
		created = false
		if createdAt, err = parseTime(createdRaw); err != nil {
			return nil, false, fmt.Errorf("parsing created_at: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, false, fmt.Errorf("checking entity existence: %w", err)
	}

	if len(fields) == 0 {
		fields = json.RawMessage("{}")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entities (collection, id, tenant_id, fields, created_at, updated_at, sync_status, synced_at, has_local_changes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, NULL, 1)
		 ON CONFLICT (collection, id) DO UPDATE SET
		   fields = excluded.fields,
		   updated_at = excluded.updated_at,
		   sync_status = excluded.sync_status,
		   synced_at = NULL,
		   has_local_changes = 1`,
		collection, id, tenantID, string(fields), formatTime(createdAt), formatTime(now), models.SyncStatusDirty,
	)
	if err != nil {
		return nil, false, fmt.Errorf("upserting entity: %w", err)
	}

	return &models.Entity{
		ID:              id,
		TenantID:        tenantID,
		Collection:      collection,
		Fields:          fields,
		CreatedAt:       createdAt,
		UpdatedAt:       now,
		SyncStatus:      models.SyncStatusDirty,
		HasLocalChanges: true,
	}, created, nil
}

// deleteTx removes an entity inside a mutation transaction. Fails with
// models.ErrEntityNotFound when the entity is absent.
func deleteTx(ctx context.Context, tx *sql.Tx, collection, id string) error {
	res, err := tx.ExecContext(ctx,
		"DELETE FROM entities WHERE collection = ? AND id = ?",
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return models.ErrEntityNotFound
	}

	return nil
}

// existsTx reports whether an entity exists inside a mutation transaction.
func existsTx(ctx context.Context, tx *sql.Tx, collection, id string) (bool, error) {
	var one int

	err := tx.QueryRowContext(ctx,
		"SELECT 1 FROM entities WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking entity existence: %w", err)
	}

	return true, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*models.Entity, error) {
	var (
		e          models.Entity
		fields     string
		createdRaw string
		updatedRaw string
		syncedRaw  sql.NullString
		hasLocal   int
	)

	if err := row.Scan(&e.Collection, &e.ID, &e.TenantID, &fields, &createdRaw, &updatedRaw, &e.SyncStatus, &syncedRaw, &hasLocal); err != nil {
		return nil, err
	}

	e.Fields = json.RawMessage(fields)
	e.HasLocalChanges = hasLocal != 0

	var err error
	if e.CreatedAt, err = parseTime(createdRaw); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = parseTime(updatedRaw); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if syncedRaw.Valid {
		t, err := parseTime(syncedRaw.String)
		if err != nil {
			return nil, fmt.Errorf("parsing synced_at: %w", err)
		}
		e.SyncedAt = &t
	}

	return &e, nil
}

// Timestamps are stored as RFC3339Nano text; SQLite has no native time type.

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
