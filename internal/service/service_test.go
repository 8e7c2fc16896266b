package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opsledger/opsledger/internal/models"
	"github.com/opsledger/opsledger/internal/store"
)

const (
	testTenant  = "4b2c6f0a-9d1e-4c3b-8a5f-7e6d5c4b3a21"
	otherTenant = "9f8e7d6c-5b4a-4392-8170-6f5e4d3c2b1a"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

// testStores is the full storage stack over a temp directory.
type testStores struct {
	registry  *store.Registry
	entities  *store.EntityStore
	audit     *store.AuditStore
	queue     *store.QueueStore
	mutations *store.MutationStore
}

func newTestStores(t *testing.T) *testStores {
	t.Helper()

	registry := store.NewRegistry(t.TempDir(), testLogger())
	t.Cleanup(registry.CloseAll)

	base := store.Base{Registry: registry}

	return &testStores{
		registry:  registry,
		entities:  store.NewEntityStore(base),
		audit:     store.NewAuditStore(base),
		queue:     store.NewQueueStore(base),
		mutations: store.NewMutationStore(base),
	}
}

func (ts *testStores) mustApply(t *testing.T, tenantID, collection, id, fields string) *models.MutationResult {
	t.Helper()

	result, err := ts.mutations.Apply(context.Background(), tenantID, store.ApplyInput{
		Collection: collection,
		EntityID:   id,
		Action:     models.ActionCreate,
		Fields:     json.RawMessage(fields),
		Now:        time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("apply mutation: %v", err)
	}

	return result
}

// fakeTransport scripts delivery outcomes per entity ID and records calls.
type fakeTransport struct {
	errs  map[string]error // keyed by entity ID; missing key means ack
	calls []models.SyncQueueItem
}

func (f *fakeTransport) Deliver(_ context.Context, item models.SyncQueueItem) error {
	f.calls = append(f.calls, item)
	return f.errs[item.EntityID]
}

// fakeKicker counts worker wakeups.
type fakeKicker struct{ kicks int }

func (f *fakeKicker) Kick() { f.kicks++ }
