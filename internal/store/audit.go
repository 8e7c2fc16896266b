package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opsledger/opsledger/internal/models"
)

// AuditStore provides data access for the hash-linked audit chain.
// Appends only ever happen through appendTx inside a mutation transaction,
// while the tenant's write mutex is held — two appends racing to the same
// sequence number is a correctness violation, not a retryable conflict.
type AuditStore struct {
	Base
}

// NewAuditStore creates an AuditStore.
func NewAuditStore(base Base) *AuditStore {
	return &AuditStore{Base: base}
}

const auditColumns = "id, tenant_id, entity_type, entity_id, action, timestamp, user_id, description, tags, seq, prev_hash, hash, classification, retention_days, compliance_flags, legal_hold"

// appendTx writes the next chain entry inside a mutation transaction. It
// reads the last link, computes sequence number and hashes, and fills in the
// entry's ID, SequenceNumber, PreviousHash and Hash.
func appendTx(ctx context.Context, tx *sql.Tx, entry *models.AuditEntry) error {
	var (
		lastSeq  int64
		lastHash string
	)

	err := tx.QueryRowContext(ctx,
		"SELECT seq, hash FROM audit_log ORDER BY seq DESC LIMIT 1",
	).Scan(&lastSeq, &lastHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading last chain link: %w", err)
	}

	entry.ID = uuid.NewString()
	entry.SequenceNumber = lastSeq + 1
	entry.PreviousHash = lastHash // "" is the genesis sentinel
	entry.Hash = models.ComputeEntryHash(entry)

	// Nil slices marshal to "null"; expiry filters on the literal '[]'.
	tags := marshalList(entry.Tags)
	flags := marshalList(entry.Metadata.ComplianceFlags)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_log (id, tenant_id, entity_type, entity_id, action, timestamp, user_id, description, tags, seq, prev_hash, hash, classification, retention_days, compliance_flags, legal_hold)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.TenantID, entry.EntityType, entry.EntityID, entry.Action,
		formatTime(entry.Timestamp), entry.UserID, entry.Description, tags,
		entry.SequenceNumber, entry.PreviousHash, entry.Hash,
		entry.Metadata.Classification, entry.Metadata.RetentionPeriodDays, flags,
		boolToInt(entry.Metadata.LegalHold),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}

// ListChain returns a tenant's full chain in sequence order, for
// verification.
func (s *AuditStore) ListChain(ctx context.Context, tenantID string) ([]models.AuditEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	h, err := s.handle(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	rows, err := h.DB().QueryContext(ctx,
		"SELECT "+auditColumns+" FROM audit_log ORDER BY seq",
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit chain: %w", err)
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

// buildAuditFilter builds a WHERE clause and args from AuditQueryOpts.
func buildAuditFilter(opts models.AuditQueryOpts) (where string, args []any) {
	var conditions []string

	if opts.EntityType != "" {
		conditions = append(conditions, "entity_type = ?")
		args = append(args, opts.EntityType)
	}
	if opts.EntityID != "" {
		conditions = append(conditions, "entity_id = ?")
		args = append(args, opts.EntityID)
	}
	if opts.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, opts.Action)
	}
	if opts.Since != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, formatTime(*opts.Since))
	}

	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	return where, args
}

// Query returns audit entries matching the given filters, newest first.
// Returns entries, a hasMore flag, and any error.
func (s *AuditStore) Query(ctx context.Context, tenantID string, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	h, err := s.handle(ctx, tenantID)
	if err != nil {
		return nil, false, err
	}

	where, args := buildAuditFilter(opts)

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit+1, opts.Offset)

	rows, err := h.DB().QueryContext(ctx,
		"SELECT "+auditColumns+" FROM audit_log "+where+" ORDER BY seq DESC LIMIT ? OFFSET ?",
		args...,
	)
	if err != nil {
		return nil, false, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	entries, err := scanAuditRows(rows)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	return entries, hasMore, nil
}

// expireBatchSize caps the bound variables per delete statement; SQLite's
// variable limit sits far below a realistic expired backlog.
const expireBatchSize = 500

// Expire deletes entries whose retention window has elapsed. Entries with
// compliance flags or a legal hold are never removed regardless of age.
// Candidates are deleted in fixed-size batches. Returns the number of
// deleted entries.
func (s *AuditStore) Expire(ctx context.Context, tenantID string, now time.Time) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	h, err := s.handle(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	entries, err := s.expiredEntries(ctx, h, now)
	if err != nil {
		return 0, err
	}

	var deleted int
	for start := 0; start < len(entries); start += expireBatchSize {
		end := start + expireBatchSize
		if end > len(entries) {
			end = len(entries)
		}

		n, err := s.expireBatch(ctx, h, entries[start:end])
		if err != nil {
			return deleted, err
		}
		deleted += n
	}

	return deleted, nil
}

func (s *AuditStore) expireBatch(ctx context.Context, h *Handle, ids []string) (int, error) {
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := h.DB().ExecContext(ctx,
		"DELETE FROM audit_log WHERE legal_hold = 0 AND compliance_flags = '[]' AND id IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("expiring audit entries: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking expiry result: %w", err)
	}

	return int(n), nil
}

// expiredEntries selects candidate IDs whose timestamp + retention_days is
// in the past. The cutoff comparison happens in Go because retention varies
// per row and timestamps are stored as text.
func (s *AuditStore) expiredEntries(ctx context.Context, h *Handle, now time.Time) ([]string, error) {
	rows, err := h.DB().QueryContext(ctx,
		"SELECT id, timestamp, retention_days FROM audit_log WHERE legal_hold = 0 AND compliance_flags = '[]'",
	)
	if err != nil {
		return nil, fmt.Errorf("querying expiry candidates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var (
			id            string
			tsRaw         string
			retentionDays int
		)
		if err := rows.Scan(&id, &tsRaw, &retentionDays); err != nil {
			return nil, fmt.Errorf("scanning expiry candidate: %w", err)
		}

		ts, err := parseTime(tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing audit timestamp: %w", err)
		}

		if ts.AddDate(0, 0, retentionDays).Before(now) {
			ids = append(ids, id)
		}
	}

	return ids, rows.Err()
}

func scanAuditRows(rows *sql.Rows) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry

	for rows.Next() {
		var (
			e         models.AuditEntry
			tsRaw     string
			tagsRaw   string
			flagsRaw  string
			legalHold int
		)

		if err := rows.Scan(&e.ID, &e.TenantID, &e.EntityType, &e.EntityID, &e.Action,
			&tsRaw, &e.UserID, &e.Description, &tagsRaw, &e.SequenceNumber,
			&e.PreviousHash, &e.Hash, &e.Metadata.Classification,
			&e.Metadata.RetentionPeriodDays, &flagsRaw, &legalHold,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		var err error
		if e.Timestamp, err = parseTime(tsRaw); err != nil {
			return nil, fmt.Errorf("parsing audit timestamp: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsRaw), &e.Tags); err != nil {
			return nil, fmt.Errorf("decoding audit tags: %w", err)
		}
		if err := json.Unmarshal([]byte(flagsRaw), &e.Metadata.ComplianceFlags); err != nil {
			return nil, fmt.Errorf("decoding compliance flags: %w", err)
		}
		e.Metadata.LegalHold = legalHold != 0

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// SetLegalHold flips the legal hold flag on an entry. The hold itself is not
// part of the hashed payload, so toggling it does not break the chain.
func (s *AuditStore) SetLegalHold(ctx context.Context, tenantID, entryID string, hold bool) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	h, err := s.handle(ctx, tenantID)
	if err != nil {
		return err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	_, err = h.DB().ExecContext(ctx,
		"UPDATE audit_log SET legal_hold = ? WHERE id = ?",
		boolToInt(hold), entryID,
	)
	if err != nil {
		return fmt.Errorf("setting legal hold: %w", err)
	}

	return nil
}

func marshalList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(list) //nolint:errcheck // string slice, cannot fail.
	return string(data)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
