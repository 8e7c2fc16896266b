package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opsledger/opsledger/internal/domain"
	"github.com/opsledger/opsledger/internal/metrics"
	"github.com/opsledger/opsledger/internal/models"
	"github.com/opsledger/opsledger/internal/store"
)

// Compile-time check: *ChainService must satisfy domain.ChainService.
var _ domain.ChainService = (*ChainService)(nil)

// ChainService verifies and maintains tenants' audit chains. Verification
// is pure detection — a broken chain is reported, never repaired.
type ChainService struct {
	audit *store.AuditStore
	log   *logrus.Logger
}

// NewChainService creates a ChainService.
func NewChainService(audit *store.AuditStore, log *logrus.Logger) *ChainService {
	return &ChainService{audit: audit, log: log}
}

// Verify walks a tenant's chain in sequence order, recomputing every hash
// and checking linkage and sequence gaps.
func (s *ChainService) Verify(ctx context.Context, tenantID string) (*models.ChainReport, error) {
	entries, err := s.audit.ListChain(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	report := VerifyEntries(entries)

	if !report.Valid {
		metrics.ChainVerifyFailures.Inc()
		s.log.WithFields(logrus.Fields{
			"tenant_id":       tenantID,
			"broken_at_index": report.BrokenAtIndex,
			"errors":          len(report.Errors),
		}).Warn("audit chain verification failed")
	}

	return report, nil
}

// VerifyEntries checks an already-loaded chain. Split out as a pure function
// so callers holding entries (tests, exports) can verify without a store.
func VerifyEntries(entries []models.AuditEntry) *models.ChainReport {
	report := &models.ChainReport{
		Valid:         true,
		EntryCount:    len(entries),
		BrokenAtIndex: -1,
	}

	prevHash := "" // genesis sentinel

	for i := range entries {
		e := &entries[i]

		if e.SequenceNumber != int64(i)+1 {
			addMismatch(report, i, e, "sequence gap")
		}
		if e.PreviousHash != prevHash {
			addMismatch(report, i, e, "previous hash does not match prior entry")
		}
		if recomputed := models.ComputeEntryHash(e); recomputed != e.Hash {
			addMismatch(report, i, e, "stored hash does not match recomputed hash")
		}

		prevHash = e.Hash
	}

	return report
}

func addMismatch(r *models.ChainReport, index int, e *models.AuditEntry, reason string) {
	if r.Valid {
		r.Valid = false
		r.BrokenAtIndex = index
	}

	r.Errors = append(r.Errors, models.ChainMismatch{
		Index:          index,
		SequenceNumber: e.SequenceNumber,
		EntryID:        e.ID,
		Reason:         reason,
	})
}

// Query returns audit entries matching the given filters (pass-through).
func (s *ChainService) Query(ctx context.Context, tenantID string, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error) {
	return s.audit.Query(ctx, tenantID, opts)
}

// Expire removes entries past their retention window, honoring compliance
// flags and legal holds (pass-through).
func (s *ChainService) Expire(ctx context.Context, tenantID string, now time.Time) (int, error) {
	deleted, err := s.audit.Expire(ctx, tenantID, now)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		s.log.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"deleted":   deleted,
		}).Info("expired audit entries")
	}

	return deleted, nil
}

// SetLegalHold sets or clears an entry's legal hold flag. Held entries are
// never purged regardless of retention.
func (s *ChainService) SetLegalHold(ctx context.Context, tenantID, entryID string, hold bool) error {
	return s.audit.SetLegalHold(ctx, tenantID, entryID, hold)
}
