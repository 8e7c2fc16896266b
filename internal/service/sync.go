package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opsledger/opsledger/internal/domain"
	"github.com/opsledger/opsledger/internal/metrics"
	"github.com/opsledger/opsledger/internal/models"
	"github.com/opsledger/opsledger/internal/store"
)

// Compile-time check: *Syncer must satisfy domain.SyncService.
var _ domain.SyncService = (*Syncer)(nil)

// Syncer drives delivery of queued mutations through the external transport
// and owns the queue's manual-intervention operations. Exactly one delivery
// pass runs at a time; the inFlight flag guards re-entry.
type Syncer struct {
	queue     *store.QueueStore
	entities  *store.EntityStore
	registry  *store.Registry
	transport domain.Transport
	log       *logrus.Logger

	maxAttempts     int
	deliveryTimeout time.Duration

	// Per-tenant Status snapshots, bounded by statusTTL and invalidated
	// on every queue change this Syncer makes. A zero TTL disables caching.
	statusTTL   time.Duration
	statusMu    sync.Mutex
	statusCache map[string]cachedStatus

	online   atomic.Bool
	inFlight atomic.Bool
	state    atomic.Value // models.SyncState
	lastSync atomic.Pointer[time.Time]
	now      func() time.Time
}

type cachedStatus struct {
	report models.SyncStatusReport
	at     time.Time
}

// NewSyncer creates a Syncer. transport may be nil for a node with no
// configured remote; every pass is then a no-op.
func NewSyncer(queue *store.QueueStore, entities *store.EntityStore, registry *store.Registry, transport domain.Transport, maxAttempts int, deliveryTimeout, statusTTL time.Duration, log *logrus.Logger) *Syncer {
	s := &Syncer{
		queue:           queue,
		entities:        entities,
		registry:        registry,
		transport:       transport,
		log:             log,
		maxAttempts:     maxAttempts,
		deliveryTimeout: deliveryTimeout,
		statusTTL:       statusTTL,
		statusCache:     make(map[string]cachedStatus),
		now:             time.Now,
	}
	s.state.Store(models.SyncStateIdle)

	return s
}

// Online reports the current connectivity flag.
func (s *Syncer) Online() bool { return s.online.Load() }

// SetOnline records the connectivity flag reported by the surrounding
// application. Trigger scheduling on transitions belongs to the worker.
func (s *Syncer) SetOnline(online bool) { s.online.Store(online) }

// State returns the coarse delivery-loop state.
func (s *Syncer) State() models.SyncState {
	return s.state.Load().(models.SyncState)
}

// HasPending reports whether any tenant has pending queue items.
func (s *Syncer) HasPending(ctx context.Context) (bool, error) {
	tenants, err := s.registry.Tenants()
	if err != nil {
		return false, err
	}

	for _, tenantID := range tenants {
		depth, err := s.queue.Depth(ctx, tenantID)
		if err != nil {
			return false, err
		}
		if depth > 0 {
			return true, nil
		}
	}

	return false, nil
}

// RunPass processes all tenants' pending items once, priority-then-FIFO
// within each tenant. A pass already in flight makes this call a no-op —
// the next scheduled pass reconsiders whatever remains.
func (s *Syncer) RunPass(ctx context.Context) error {
	if s.transport == nil {
		return nil
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer s.inFlight.Store(false)

	s.state.Store(models.SyncStateSyncing)

	tenants, err := s.registry.Tenants()
	if err != nil {
		s.state.Store(models.SyncStateFailed)

		return err
	}

	var passErr error
	for _, tenantID := range tenants {
		if ctx.Err() != nil {
			passErr = ctx.Err()
			break
		}
		if err := s.deliverTenant(ctx, tenantID); err != nil {
			passErr = err
		}
	}

	if passErr != nil {
		s.state.Store(models.SyncStateFailed)

		return passErr
	}

	now := s.now().UTC()
	s.lastSync.Store(&now)
	s.state.Store(models.SyncStateSuccess)

	return nil
}

func (s *Syncer) deliverTenant(ctx context.Context, tenantID string) error {
	items, err := s.queue.Pending(ctx, tenantID)
	if err != nil {
		return err
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.deliverItem(ctx, tenantID, item); err != nil {
			return err
		}
	}

	s.invalidateStatus(tenantID)
	s.updateGauges(ctx, tenantID)

	return nil
}

// deliverItem attempts delivery of one item and applies the resulting state
// transition. Only infrastructure errors (storage faults) are returned;
// delivery rejections are absorbed into queue state.
func (s *Syncer) deliverItem(ctx context.Context, tenantID string, item models.SyncQueueItem) error {
	if err := s.queue.Transition(ctx, tenantID, item.ID, models.QueueStatusInProgress, ""); err != nil {
		return err
	}

	deliverCtx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
	err := s.transport.Deliver(deliverCtx, item)
	cancel()

	if err == nil {
		return s.acknowledge(ctx, tenantID, item)
	}

	switch models.ClassifyDeliveryError(err) {
	case models.DeliveryConflict:
		metrics.DeliveriesTotal.WithLabelValues("conflict").Inc()
		s.log.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"item_id":   item.ID,
			"entity_id": item.EntityID,
		}).Warn("delivery conflict, awaiting resolution")

		return s.queue.Transition(ctx, tenantID, item.ID, models.QueueStatusConflict, err.Error())

	case models.DeliveryPermanent:
		metrics.DeliveriesTotal.WithLabelValues("permanent").Inc()
		s.log.WithError(err).WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"item_id":   item.ID,
		}).Warn("delivery rejected permanently, dead-lettering")

		return s.queue.MoveToFailed(ctx, tenantID, item.ID, err.Error(), s.now().UTC())

	default:
		metrics.DeliveriesTotal.WithLabelValues("transient").Inc()

		attempts, recordErr := s.queue.RecordAttempt(ctx, tenantID, item.ID, err.Error())
		if recordErr != nil {
			return recordErr
		}

		if attempts >= s.maxAttempts {
			s.log.WithError(err).WithFields(logrus.Fields{
				"tenant_id": tenantID,
				"item_id":   item.ID,
				"attempts":  attempts,
			}).Warn("retries exhausted, dead-lettering")

			return s.queue.MoveToFailed(ctx, tenantID, item.ID,
				fmt.Sprintf("exhausted %d attempts: %s", attempts, err.Error()), s.now().UTC())
		}

		s.log.WithError(err).WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"item_id":   item.ID,
			"attempts":  attempts,
		}).Debug("transient delivery failure, will retry")

		return nil
	}
}

func (s *Syncer) acknowledge(ctx context.Context, tenantID string, item models.SyncQueueItem) error {
	metrics.DeliveriesTotal.WithLabelValues("ack").Inc()

	if err := s.queue.Complete(ctx, tenantID, item.ID); err != nil {
		return err
	}

	// Deleted entities have no row left to stamp.
	if item.Action != models.ActionDelete {
		if err := s.entities.MarkSynced(ctx, tenantID, item.StoreName, item.EntityID, s.now().UTC()); err != nil {
			return err
		}
	}

	return nil
}

func (s *Syncer) updateGauges(ctx context.Context, tenantID string) {
	if depth, err := s.queue.Depth(ctx, tenantID); err == nil {
		metrics.QueueDepth.Set(float64(depth))
	}
	if failed, err := s.queue.FailedCount(ctx, tenantID); err == nil {
		metrics.FailedOperations.Set(float64(failed))
	}
}

func (s *Syncer) invalidateStatus(tenantID string) {
	s.statusMu.Lock()
	delete(s.statusCache, tenantID)
	s.statusMu.Unlock()
}

// Status assembles the consumer-surface snapshot of queue health. Snapshots
// are cached per tenant for at most statusTTL, so a report may trail queue
// changes made outside this Syncer by up to that long.
func (s *Syncer) Status(ctx context.Context, tenantID string) (*models.SyncStatusReport, error) {
	if s.statusTTL > 0 {
		s.statusMu.Lock()
		cached, ok := s.statusCache[tenantID]
		s.statusMu.Unlock()

		if ok && s.now().Sub(cached.at) < s.statusTTL {
			report := cached.report

			return &report, nil
		}
	}

	depth, err := s.queue.Depth(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	failed, err := s.queue.FailedCount(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	conflicts, err := s.queue.ConflictCount(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	report := models.SyncStatusReport{
		State:         s.State(),
		Online:        s.Online(),
		QueueDepth:    depth,
		FailedCount:   failed,
		ConflictCount: conflicts,
		LastSyncAt:    s.lastSync.Load(),
	}

	if s.statusTTL > 0 {
		s.statusMu.Lock()
		s.statusCache[tenantID] = cachedStatus{report: report, at: s.now()}
		s.statusMu.Unlock()
	}

	return &report, nil
}

// ListFailed returns the dead-lettered operations (pass-through).
func (s *Syncer) ListFailed(ctx context.Context, tenantID string) ([]models.FailedOperation, error) {
	return s.queue.ListFailed(ctx, tenantID)
}

// RetryFailed re-enqueues a dead-lettered operation as a fresh pending item
// with zero attempts.
func (s *Syncer) RetryFailed(ctx context.Context, tenantID, failedID string) (*models.SyncQueueItem, error) {
	item, err := s.queue.RetryFailed(ctx, tenantID, failedID, s.now().UTC())
	if err != nil {
		return nil, err
	}

	s.invalidateStatus(tenantID)
	s.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"failed_id": failedID,
		"item_id":   item.ID,
	}).Info("failed operation re-enqueued")

	return item, nil
}

// ClearFailed drops a dead-lettered operation permanently.
func (s *Syncer) ClearFailed(ctx context.Context, tenantID, failedID string) error {
	if err := s.queue.ClearFailed(ctx, tenantID, failedID); err != nil {
		return err
	}
	s.invalidateStatus(tenantID)

	return nil
}

// Conflicts returns items parked in the conflict state (pass-through).
func (s *Syncer) Conflicts(ctx context.Context, tenantID string) ([]models.SyncQueueItem, error) {
	return s.queue.Conflicts(ctx, tenantID)
}

// Resolve applies an explicit conflict decision. accept-local re-enqueues
// the local payload; accept-remote drops the item and marks the entity
// synced as-is. No automatic merge exists here on purpose.
func (s *Syncer) Resolve(ctx context.Context, tenantID, itemID string, resolution models.ConflictResolution) error {
	switch resolution {
	case models.ResolutionAcceptLocal:
		if err := s.queue.Transition(ctx, tenantID, itemID, models.QueueStatusPending, ""); err != nil {
			return err
		}

	case models.ResolutionAcceptRemote:
		item, err := s.queue.Get(ctx, tenantID, itemID)
		if err != nil {
			return err
		}
		if err := s.queue.Complete(ctx, tenantID, itemID); err != nil {
			return err
		}
		if item.Action != models.ActionDelete {
			if err := s.entities.MarkSynced(ctx, tenantID, item.StoreName, item.EntityID, s.now().UTC()); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("unknown conflict resolution %q", resolution)
	}

	s.invalidateStatus(tenantID)

	return nil
}
