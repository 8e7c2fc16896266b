package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/opsledger/opsledger/internal/models"
)

func TestEntityGetNotFound(t *testing.T) {
	base := newTestBase(t)
	entities := NewEntityStore(base)

	_, err := entities.Get(context.Background(), testTenant, "incidents", "missing")
	if !errors.Is(err, models.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestEntityCreateAndGet(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	entities := NewEntityStore(base)

	applyMutation(t, mutations, testTenant, "incidents", "inc-1", `{"title":"disk full","severity":2}`)

	got, err := entities.Get(context.Background(), testTenant, "incidents", "inc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.ID != "inc-1" || got.Collection != "incidents" || got.TenantID != testTenant {
		t.Errorf("unexpected identity: %+v", got)
	}
	if got.SyncStatus != models.SyncStatusDirty {
		t.Errorf("new entity should be dirty, got %s", got.SyncStatus)
	}
	if !got.HasLocalChanges {
		t.Error("new entity should have local changes")
	}
	if got.SyncedAt != nil {
		t.Error("new entity should have no synced_at")
	}

	var fields map[string]any
	if err := json.Unmarshal(got.Fields, &fields); err != nil {
		t.Fatalf("unmarshal fields: %v", err)
	}
	if fields["title"] != "disk full" {
		t.Errorf("fields not preserved: %v", fields)
	}
}

func TestEntityUpdatePreservesCreatedAt(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	entities := NewEntityStore(base)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	updated := created.Add(48 * time.Hour)

	if _, err := mutations.Apply(context.Background(), testTenant, ApplyInput{
		Collection: "incidents", EntityID: "inc-1", Action: models.ActionCreate,
		Fields: json.RawMessage(`{"title":"v1"}`), Now: created,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := mutations.Apply(context.Background(), testTenant, ApplyInput{
		Collection: "incidents", EntityID: "inc-1", Action: models.ActionUpdate,
		Fields: json.RawMessage(`{"title":"v2"}`), Now: updated,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := entities.Get(context.Background(), testTenant, "incidents", "inc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at changed: got %s, want %s", got.CreatedAt, created)
	}
	if !got.UpdatedAt.Equal(updated) {
		t.Errorf("updated_at: got %s, want %s", got.UpdatedAt, updated)
	}
}

func TestEntityGetAllOrdersByID(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	entities := NewEntityStore(base)

	for _, id := range []string{"inc-3", "inc-1", "inc-2"} {
		applyMutation(t, mutations, testTenant, "incidents", id, `{"title":"x"}`)
	}
	applyMutation(t, mutations, testTenant, "problems", "prb-1", `{"title":"y"}`)

	list, err := entities.GetAll(context.Background(), testTenant, "incidents")
	if err != nil {
		t.Fatalf("get all: %v", err)
	}

	if len(list) != 3 {
		t.Fatalf("expected 3 entities, got %d", len(list))
	}
	for i, want := range []string{"inc-1", "inc-2", "inc-3"} {
		if list[i].ID != want {
			t.Errorf("position %d: got %s, want %s", i, list[i].ID, want)
		}
	}
}

func TestEntityMarkSynced(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	entities := NewEntityStore(base)

	applyMutation(t, mutations, testTenant, "incidents", "inc-1", `{"title":"x"}`)

	syncTime := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	if err := entities.MarkSynced(context.Background(), testTenant, "incidents", "inc-1", syncTime); err != nil {
		t.Fatalf("mark synced: %v", err)
	}

	got, err := entities.Get(context.Background(), testTenant, "incidents", "inc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SyncStatus != models.SyncStatusSynced {
		t.Errorf("expected synced, got %s", got.SyncStatus)
	}
	if got.HasLocalChanges {
		t.Error("synced entity should have no local changes")
	}
	if got.SyncedAt == nil || !got.SyncedAt.Equal(syncTime) {
		t.Errorf("synced_at: got %v, want %s", got.SyncedAt, syncTime)
	}

	// Idempotent: a second ack must not overwrite synced_at.
	if err := entities.MarkSynced(context.Background(), testTenant, "incidents", "inc-1", syncTime.Add(time.Hour)); err != nil {
		t.Fatalf("second mark synced: %v", err)
	}

	again, err := entities.Get(context.Background(), testTenant, "incidents", "inc-1")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if !again.SyncedAt.Equal(syncTime) {
		t.Errorf("second ack changed synced_at: %v", again.SyncedAt)
	}
}

func TestEntityLocalWriteAfterSyncMarksDirty(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	entities := NewEntityStore(base)

	applyMutation(t, mutations, testTenant, "incidents", "inc-1", `{"title":"v1"}`)
	if err := entities.MarkSynced(context.Background(), testTenant, "incidents", "inc-1", time.Now().UTC()); err != nil {
		t.Fatalf("mark synced: %v", err)
	}

	if _, err := mutations.Apply(context.Background(), testTenant, ApplyInput{
		Collection: "incidents", EntityID: "inc-1", Action: models.ActionUpdate,
		Fields: json.RawMessage(`{"title":"v2"}`), Now: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := entities.Get(context.Background(), testTenant, "incidents", "inc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SyncStatus != models.SyncStatusDirty || !got.HasLocalChanges || got.SyncedAt != nil {
		t.Errorf("local write should reset sync state: %+v", got)
	}
}
