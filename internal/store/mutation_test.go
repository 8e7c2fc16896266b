package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/opsledger/opsledger/internal/models"
)

func TestApplyCommitsAllThreeRecords(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	entities := NewEntityStore(base)
	audit := NewAuditStore(base)
	queue := NewQueueStore(base)
	ctx := context.Background()

	result := applyMutation(t, mutations, testTenant, "incidents", "inc-1", `{"title":"x"}`)

	if result.Entity == nil || result.AuditEntry == nil || result.QueueItem == nil {
		t.Fatalf("incomplete result: %+v", result)
	}

	if _, err := entities.Get(ctx, testTenant, "incidents", "inc-1"); err != nil {
		t.Errorf("entity missing: %v", err)
	}

	chain, err := audit.ListChain(ctx, testTenant)
	if err != nil || len(chain) != 1 {
		t.Errorf("audit entry missing: %d, %v", len(chain), err)
	}

	depth, err := queue.Depth(ctx, testTenant)
	if err != nil || depth != 1 {
		t.Errorf("queue item missing: %d, %v", depth, err)
	}
}

func TestApplyDeleteMissingEntityLeavesNoTrace(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	audit := NewAuditStore(base)
	queue := NewQueueStore(base)
	ctx := context.Background()

	_, err := mutations.Apply(ctx, testTenant, ApplyInput{
		Collection: "incidents", EntityID: "missing", Action: models.ActionDelete,
		Now: time.Now().UTC(),
	})
	if !errors.Is(err, models.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}

	// The failed mutation must not have journaled or queued anything.
	chain, err := audit.ListChain(ctx, testTenant)
	if err != nil {
		t.Fatalf("list chain: %v", err)
	}
	if len(chain) != 0 {
		t.Errorf("rolled-back mutation left %d audit entries", len(chain))
	}

	depth, err := queue.Depth(ctx, testTenant)
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if depth != 0 {
		t.Errorf("rolled-back mutation left %d queue items", depth)
	}
}

func TestApplyDelete(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	entities := NewEntityStore(base)
	ctx := context.Background()

	applyMutation(t, mutations, testTenant, "incidents", "inc-1", `{"title":"x"}`)

	result, err := mutations.Apply(ctx, testTenant, ApplyInput{
		Collection: "incidents", EntityID: "inc-1", Action: models.ActionDelete,
		Now: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	if result.Entity != nil {
		t.Error("delete result should carry no entity")
	}
	if result.AuditEntry.Action != models.ActionDelete {
		t.Errorf("audit action: %s", result.AuditEntry.Action)
	}
	if result.QueueItem == nil {
		t.Error("delete should enqueue for sync")
	}

	if _, err := entities.Get(ctx, testTenant, "incidents", "inc-1"); !errors.Is(err, models.ErrEntityNotFound) {
		t.Errorf("entity should be gone: %v", err)
	}
}

func TestApplyLocalOnlySkipsQueue(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	queue := NewQueueStore(base)
	ctx := context.Background()

	result, err := mutations.Apply(ctx, testTenant, ApplyInput{
		Collection: "notes", EntityID: "n1", Action: models.ActionCreate,
		Fields: json.RawMessage(`{"body":"draft"}`), LocalOnly: true,
		Now: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if result.QueueItem != nil {
		t.Error("local-only mutation must not enqueue")
	}
	if result.AuditEntry == nil {
		t.Error("local-only mutation still journals")
	}

	depth, err := queue.Depth(ctx, testTenant)
	if err != nil || depth != 0 {
		t.Errorf("queue depth: %d, %v", depth, err)
	}
}

func TestApplySettlesOmittedAction(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	ctx := context.Background()

	first, err := mutations.Apply(ctx, testTenant, ApplyInput{
		Collection: "incidents", EntityID: "inc-1",
		Fields: json.RawMessage(`{"t":1}`), Now: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if first.AuditEntry.Action != models.ActionCreate {
		t.Errorf("missing entity: got %s, want create", first.AuditEntry.Action)
	}
	if first.QueueItem.Action != models.ActionCreate {
		t.Errorf("queue item action: got %s, want create", first.QueueItem.Action)
	}

	second, err := mutations.Apply(ctx, testTenant, ApplyInput{
		Collection: "incidents", EntityID: "inc-1",
		Fields: json.RawMessage(`{"t":2}`), Now: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if second.AuditEntry.Action != models.ActionUpdate {
		t.Errorf("existing entity: got %s, want update", second.AuditEntry.Action)
	}
}
