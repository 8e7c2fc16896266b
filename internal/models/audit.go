package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Classification is the compliance sensitivity tier of an audit entry.
// It drives the retention period applied by Expire.
type Classification string

const (
	ClassificationSensitive    Classification = "sensitive"
	ClassificationConfidential Classification = "confidential"
	ClassificationInternal     Classification = "internal"
	ClassificationPublic       Classification = "public"
)

// AuditMetadata holds the compliance attributes attached to an entry at
// append time.
type AuditMetadata struct {
	Classification      Classification `json:"classification"`
	RetentionPeriodDays int            `json:"retention_period_days"`
	ComplianceFlags     []string       `json:"compliance_flags,omitempty"`
	LegalHold           bool           `json:"legal_hold,omitempty"`
}

// ComplianceRelevant reports whether the entry carries any compliance flag.
// Relevant entries are exempt from retention expiry.
func (m AuditMetadata) ComplianceRelevant() bool {
	return len(m.ComplianceFlags) > 0
}

// AuditEntry is one immutable link in a tenant's hash chain. Entries are
// never updated; the only deletion path is retention expiry.
type AuditEntry struct {
	ID             string        `json:"id"`
	TenantID       string        `json:"-"`
	EntityType     string        `json:"entity_type"`
	EntityID       string        `json:"entity_id"`
	Action         Action        `json:"action"`
	Timestamp      time.Time     `json:"timestamp"`
	UserID         string        `json:"user_id,omitempty"`
	Description    string        `json:"description,omitempty"`
	Tags           []string      `json:"tags,omitempty"`
	SequenceNumber int64         `json:"sequence_number"`
	PreviousHash   string        `json:"previous_hash"`
	Hash           string        `json:"hash"`
	Metadata       AuditMetadata `json:"metadata"`
}

// hashPayload is the canonical serialization hashed into an entry's digest.
// All fields are scalars in a fixed order so json.Marshal is deterministic;
// never add a map here.
type hashPayload struct {
	EntityType     string `json:"entity_type"`
	EntityID       string `json:"entity_id"`
	Action         string `json:"action"`
	Timestamp      string `json:"timestamp"`
	TenantID       string `json:"tenant_id"`
	UserID         string `json:"user_id"`
	Description    string `json:"description"`
	PreviousHash   string `json:"previous_hash"`
	SequenceNumber int64  `json:"sequence_number"`
}

// ComputeEntryHash returns the hex SHA-256 digest over the entry's canonical
// serialization. Pure: recomputing on an untampered entry always reproduces
// the stored hash.
func ComputeEntryHash(e *AuditEntry) string {
	payload := hashPayload{
		EntityType:     e.EntityType,
		EntityID:       e.EntityID,
		Action:         string(e.Action),
		Timestamp:      e.Timestamp.UTC().Format(time.RFC3339Nano),
		TenantID:       e.TenantID,
		UserID:         e.UserID,
		Description:    e.Description,
		PreviousHash:   e.PreviousHash,
		SequenceNumber: e.SequenceNumber,
	}

	data, _ := json.Marshal(payload) //nolint:errcheck // fixed scalar fields, cannot fail.
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// ChainMismatch describes one broken link found during verification.
type ChainMismatch struct {
	Index          int    `json:"index"`
	SequenceNumber int64  `json:"sequence_number"`
	EntryID        string `json:"entry_id"`
	Reason         string `json:"reason"`
}

// ChainReport is the result of verifying a tenant's audit chain.
// Verification detects tampering; it never repairs.
type ChainReport struct {
	Valid         bool            `json:"valid"`
	EntryCount    int             `json:"entry_count"`
	BrokenAtIndex int             `json:"broken_at_index"` // -1 when valid
	Errors        []ChainMismatch `json:"errors,omitempty"`
}

// AuditQueryOpts holds filters for querying the audit chain.
type AuditQueryOpts struct {
	EntityType string
	EntityID   string
	Action     string
	Since      *time.Time
	Limit      int
	Offset     int
}
