package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsledger/opsledger/internal/domain"
	"github.com/opsledger/opsledger/internal/models"
)

// Compile-time check: *PostgresTransport must satisfy domain.Transport.
var _ domain.Transport = (*PostgresTransport)(nil)

// PostgresTransport delivers queue items directly into a central operations
// database — the deployment mode where the dashboard's backend shares a
// Postgres instance with the sync target.
//
// Conflict detection is timestamp-based: an upsert only lands when the
// remote row is not newer than the queued mutation; a newer remote row means
// the versions diverged while this node was offline.
type PostgresTransport struct {
	pool *pgxpool.Pool
}

// NewPostgresTransport connects to the remote database.
func NewPostgresTransport(ctx context.Context, databaseURL string) (*PostgresTransport, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to remote database: %w", err)
	}

	return &PostgresTransport{pool: pool}, nil
}

// Close releases the connection pool.
func (t *PostgresTransport) Close() {
	t.pool.Close()
}

// Deliver applies one queued mutation to the remote store.
func (t *PostgresTransport) Deliver(ctx context.Context, item models.SyncQueueItem) error {
	switch item.Action {
	case models.ActionDelete:
		return t.deliverDelete(ctx, item)
	default:
		return t.deliverUpsert(ctx, item)
	}
}

func (t *PostgresTransport) deliverUpsert(ctx context.Context, item models.SyncQueueItem) error {
	payload := item.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	tag, err := t.pool.Exec(ctx, `
		INSERT INTO synced_entities (tenant_id, collection, id, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, collection, id) DO UPDATE
		SET payload = excluded.payload, updated_at = excluded.updated_at
		WHERE synced_entities.updated_at <= excluded.updated_at`,
		item.TenantID, item.StoreName, item.EntityID, payload, item.Timestamp,
	)
	if err != nil {
		return classifyPgError(err)
	}

	if tag.RowsAffected() == 0 {
		version, vErr := t.remoteVersion(ctx, item)
		if vErr != nil {
			return vErr
		}

		return &models.ConflictError{
			ServerVersion: version,
			Reason:        "remote row is newer than queued mutation",
		}
	}

	return nil
}

func (t *PostgresTransport) deliverDelete(ctx context.Context, item models.SyncQueueItem) error {
	tag, err := t.pool.Exec(ctx, `
		DELETE FROM synced_entities
		WHERE tenant_id = $1 AND collection = $2 AND id = $3 AND updated_at <= $4`,
		item.TenantID, item.StoreName, item.EntityID, item.Timestamp,
	)
	if err != nil {
		return classifyPgError(err)
	}

	if tag.RowsAffected() == 0 {
		// Either already gone (ack) or the remote row is newer (conflict).
		version, vErr := t.remoteVersion(ctx, item)
		if vErr != nil {
			return vErr
		}
		if version == nil {
			return nil
		}

		return &models.ConflictError{
			ServerVersion: version,
			Reason:        "remote row changed after local delete",
		}
	}

	return nil
}

// remoteVersion fetches the diverged remote payload for conflict reporting.
// Returns nil when no remote row exists.
func (t *PostgresTransport) remoteVersion(ctx context.Context, item models.SyncQueueItem) ([]byte, error) {
	var payload []byte

	err := t.pool.QueryRow(ctx, `
		SELECT payload FROM synced_entities
		WHERE tenant_id = $1 AND collection = $2 AND id = $3`,
		item.TenantID, item.StoreName, item.EntityID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, classifyPgError(err)
	}

	return payload, nil
}

// classifyPgError maps Postgres errors onto the delivery classes.
// Integrity and authorization failures will not heal with retries.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 23 (integrity constraint) and 28 (invalid authorization).
		if strings.HasPrefix(pgErr.Code, "23") || strings.HasPrefix(pgErr.Code, "28") {
			return &models.RejectError{Reason: pgErr.Message, Permanent: true}
		}
	}

	return fmt.Errorf("remote database error: %w", err)
}
