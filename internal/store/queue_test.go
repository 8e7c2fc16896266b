package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/opsledger/opsledger/internal/models"
)

func TestQueuePendingOrder(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	queue := NewQueueStore(base)
	ctx := context.Background()

	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	put := func(id string, priority int, offset time.Duration) {
		t.Helper()
		if _, err := mutations.Apply(ctx, testTenant, ApplyInput{
			Collection: "incidents", EntityID: id, Action: models.ActionCreate,
			Fields: json.RawMessage(`{"t":1}`), Priority: priority, Now: now.Add(offset),
		}); err != nil {
			t.Fatalf("apply %s: %v", id, err)
		}
	}

	put("low-old", 0, 0)
	put("high-new", 5, 2*time.Minute)
	put("low-new", 0, time.Minute)

	items, err := queue.Pending(ctx, testTenant)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}

	var order []string
	for _, item := range items {
		order = append(order, item.EntityID)
	}

	want := []string{"high-new", "low-old", "low-new"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order: got %v, want %v", order, want)
		}
	}
}

func TestQueueTransitionEnforcesLegality(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	queue := NewQueueStore(base)
	ctx := context.Background()

	result := applyMutation(t, mutations, testTenant, "incidents", "inc-1", `{"t":1}`)
	itemID := result.QueueItem.ID

	// pending -> completed skips in_progress.
	err := queue.Transition(ctx, testTenant, itemID, models.QueueStatusCompleted, "")
	if err == nil {
		t.Fatal("expected illegal transition error")
	}

	if err := queue.Transition(ctx, testTenant, itemID, models.QueueStatusInProgress, ""); err != nil {
		t.Fatalf("pending -> in_progress: %v", err)
	}
	if err := queue.Transition(ctx, testTenant, itemID, models.QueueStatusConflict, "diverged"); err != nil {
		t.Fatalf("in_progress -> conflict: %v", err)
	}

	item, err := queue.Get(ctx, testTenant, itemID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if item.Status != models.QueueStatusConflict || item.LastError != "diverged" {
		t.Errorf("unexpected state: %+v", item)
	}

	if err := queue.Transition(ctx, testTenant, "missing", models.QueueStatusInProgress, ""); !errors.Is(err, models.ErrQueueItemNotFound) {
		t.Errorf("missing item: got %v", err)
	}
}

func TestQueueRecordAttempt(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	queue := NewQueueStore(base)
	ctx := context.Background()

	result := applyMutation(t, mutations, testTenant, "incidents", "inc-1", `{"t":1}`)
	itemID := result.QueueItem.ID

	for want := 1; want <= 3; want++ {
		attempts, err := queue.RecordAttempt(ctx, testTenant, itemID, "timeout")
		if err != nil {
			t.Fatalf("attempt %d: %v", want, err)
		}
		if attempts != want {
			t.Errorf("attempts: got %d, want %d", attempts, want)
		}
	}

	item, err := queue.Get(ctx, testTenant, itemID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if item.Status != models.QueueStatusPending || item.LastError != "timeout" {
		t.Errorf("unexpected state after attempts: %+v", item)
	}
}

func TestQueueDeadLetterAndRetry(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	queue := NewQueueStore(base)
	ctx := context.Background()
	now := time.Now().UTC()

	result := applyMutation(t, mutations, testTenant, "incidents", "inc-1", `{"t":1}`)
	itemID := result.QueueItem.ID

	if err := queue.MoveToFailed(ctx, testTenant, itemID, "rejected by remote", now); err != nil {
		t.Fatalf("move to failed: %v", err)
	}

	// The queue row is gone.
	if _, err := queue.Get(ctx, testTenant, itemID); !errors.Is(err, models.ErrQueueItemNotFound) {
		t.Errorf("queue row should be gone: %v", err)
	}

	failed, err := queue.ListFailed(ctx, testTenant)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Reason != "rejected by remote" {
		t.Fatalf("unexpected dead letters: %+v", failed)
	}

	// Retry issues a fresh item with zero attempts.
	item, err := queue.RetryFailed(ctx, testTenant, failed[0].ID, now)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if item.ID == itemID {
		t.Error("retry should issue a fresh item ID")
	}
	if item.Attempts != 0 || item.Status != models.QueueStatusPending {
		t.Errorf("retried item: %+v", item)
	}

	// Dead letter is consumed.
	failed, err = queue.ListFailed(ctx, testTenant)
	if err != nil {
		t.Fatalf("second list failed: %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("dead letter should be consumed, got %+v", failed)
	}

	if _, err := queue.RetryFailed(ctx, testTenant, "missing", now); !errors.Is(err, models.ErrFailedOpNotFound) {
		t.Errorf("missing dead letter: got %v", err)
	}
}

func TestQueueClearFailed(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	queue := NewQueueStore(base)
	ctx := context.Background()

	result := applyMutation(t, mutations, testTenant, "incidents", "inc-1", `{"t":1}`)
	if err := queue.MoveToFailed(ctx, testTenant, result.QueueItem.ID, "bad", time.Now().UTC()); err != nil {
		t.Fatalf("move to failed: %v", err)
	}

	failed, _ := queue.ListFailed(ctx, testTenant)
	if err := queue.ClearFailed(ctx, testTenant, failed[0].ID); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if err := queue.ClearFailed(ctx, testTenant, failed[0].ID); !errors.Is(err, models.ErrFailedOpNotFound) {
		t.Errorf("second clear: got %v", err)
	}
}

func TestQueueCounts(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	queue := NewQueueStore(base)
	ctx := context.Background()

	r1 := applyMutation(t, mutations, testTenant, "incidents", "inc-1", `{"t":1}`)
	r2 := applyMutation(t, mutations, testTenant, "incidents", "inc-2", `{"t":2}`)
	applyMutation(t, mutations, testTenant, "incidents", "inc-3", `{"t":3}`)

	if err := queue.Transition(ctx, testTenant, r1.QueueItem.ID, models.QueueStatusInProgress, ""); err != nil {
		t.Fatal(err)
	}
	if err := queue.Transition(ctx, testTenant, r1.QueueItem.ID, models.QueueStatusConflict, "diverged"); err != nil {
		t.Fatal(err)
	}
	if err := queue.MoveToFailed(ctx, testTenant, r2.QueueItem.ID, "bad", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	depth, err := queue.Depth(ctx, testTenant)
	if err != nil || depth != 1 {
		t.Errorf("depth: %d, %v", depth, err)
	}
	conflicts, err := queue.ConflictCount(ctx, testTenant)
	if err != nil || conflicts != 1 {
		t.Errorf("conflicts: %d, %v", conflicts, err)
	}
	failedCount, err := queue.FailedCount(ctx, testTenant)
	if err != nil || failedCount != 1 {
		t.Errorf("failed: %d, %v", failedCount, err)
	}
}
