package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opsledger/opsledger/internal/classify"
	"github.com/opsledger/opsledger/internal/domain"
	"github.com/opsledger/opsledger/internal/metrics"
	"github.com/opsledger/opsledger/internal/models"
	"github.com/opsledger/opsledger/internal/store"
)

// Compile-time check: *Orchestrator must satisfy domain.Mutator.
var _ domain.Mutator = (*Orchestrator)(nil)

// SyncKicker wakes the delivery worker after a new enqueue.
type SyncKicker interface {
	Kick()
}

// Orchestrator sequences a mutation: validate, persist entity, append audit
// entry, enqueue for delivery — all atomic — then notify subscribers and
// wake the delivery worker.
type Orchestrator struct {
	mutations *store.MutationStore
	notifier  *Notifier
	kicker    SyncKicker
	retention classify.Retention
	log       *logrus.Logger
	now       func() time.Time
}

// NewOrchestrator creates an Orchestrator. kicker may be nil for local-only
// deployments.
func NewOrchestrator(mutations *store.MutationStore, notifier *Notifier, kicker SyncKicker, retention classify.Retention, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		mutations: mutations,
		notifier:  notifier,
		kicker:    kicker,
		retention: retention,
		log:       log,
		now:       time.Now,
	}
}

// Mutate applies one mutation for a tenant. Caller-declared action wins;
// when the caller sends none, create vs update is inferred from whether the
// record exists. Delete is never inferred.
func (o *Orchestrator) Mutate(ctx context.Context, tenantID string, req models.MutationRequest) (*models.MutationResult, error) {
	if err := validateRequest(tenantID, req); err != nil {
		return nil, err
	}

	fieldNames, err := fieldNamesOf(req.Fields)
	if err != nil {
		return nil, fmt.Errorf("decoding mutation fields: %w", err)
	}

	// An omitted action is settled inside the mutation transaction, where
	// the existence check cannot race a concurrent writer. Classification
	// is unaffected: create and update classify identically, and delete is
	// always declared.
	metadata := classify.Classify(req.Collection, fieldNames, req.Action)
	metadata.RetentionPeriodDays = o.retention.Days(metadata.Classification)

	in := store.ApplyInput{
		Collection:  req.Collection,
		EntityID:    req.EntityID,
		Action:      req.Action,
		Fields:      req.Fields,
		UserID:      req.UserID,
		Description: req.Description,
		Tags:        req.Tags,
		Metadata:    metadata,
		Priority:    req.Priority,
		LocalOnly:   req.LocalOnly,
		Now:         o.now().UTC(),
	}

	result, err := o.mutations.Apply(ctx, tenantID, in)
	if err != nil {
		metrics.MutationFailures.Inc()

		return nil, err
	}

	action := result.AuditEntry.Action
	metrics.MutationsTotal.WithLabelValues(string(action)).Inc()

	o.log.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"collection": req.Collection,
		"entity_id":  req.EntityID,
		"action":     action,
		"seq":        result.AuditEntry.SequenceNumber,
	}).Debug("mutation committed")

	o.notifier.Publish(models.ChangeEvent{
		TenantID:   tenantID,
		Collection: req.Collection,
		EntityID:   req.EntityID,
		Action:     action,
		Timestamp:  in.Now,
	})

	if o.kicker != nil && result.QueueItem != nil {
		o.kicker.Kick()
	}

	return result, nil
}

func validateRequest(tenantID string, req models.MutationRequest) error {
	if tenantID == "" {
		return models.ErrMissingTenantID
	}
	if req.Collection == "" {
		return models.ErrMissingCollection
	}
	if req.EntityID == "" {
		return models.ErrMissingEntityID
	}
	if req.Action != "" && !req.Action.Valid() {
		return models.ErrInvalidAction
	}
	if req.Action != models.ActionDelete && len(req.Fields) == 0 {
		return models.ErrMissingFields
	}

	return nil
}

func fieldNamesOf(fields json.RawMessage) ([]string, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(fields, &m); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}

	return names, nil
}
