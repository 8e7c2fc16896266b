package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opsledger/opsledger/internal/models"
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

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	r := NewRegistry(t.TempDir(), testLogger())
	t.Cleanup(r.CloseAll)

	return r
}

func newTestBase(t *testing.T) Base {
	t.Helper()

	return Base{Registry: newTestRegistry(t)}
}

// applyMutation commits a create/update through the full mutation path.
func applyMutation(t *testing.T, m *MutationStore, tenantID, collection, id string, fields string) *models.MutationResult {
	t.Helper()

	result, err := m.Apply(context.Background(), tenantID, ApplyInput{
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
