package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/opsledger/opsledger/internal/models"
)

func TestAuditChainAppend(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	audit := NewAuditStore(base)

	for _, id := range []string{"inc-1", "inc-2", "inc-3"} {
		applyMutation(t, mutations, testTenant, "incidents", id, `{"title":"x"}`)
	}

	chain, err := audit.ListChain(context.Background(), testTenant)
	if err != nil {
		t.Fatalf("list chain: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(chain))
	}

	if chain[0].PreviousHash != "" {
		t.Errorf("genesis previous hash should be empty, got %q", chain[0].PreviousHash)
	}

	for i, e := range chain {
		if e.SequenceNumber != int64(i)+1 {
			t.Errorf("entry %d: seq %d, want %d", i, e.SequenceNumber, i+1)
		}
		if got := models.ComputeEntryHash(&e); got != e.Hash {
			t.Errorf("entry %d: stored hash does not recompute", i)
		}
		if i > 0 && e.PreviousHash != chain[i-1].Hash {
			t.Errorf("entry %d: previous hash does not link", i)
		}
	}
}

func TestAuditChainPerTenant(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	audit := NewAuditStore(base)

	applyMutation(t, mutations, testTenant, "incidents", "inc-1", `{"title":"x"}`)
	applyMutation(t, mutations, otherTenant, "incidents", "inc-1", `{"title":"y"}`)

	for _, tenant := range []string{testTenant, otherTenant} {
		chain, err := audit.ListChain(context.Background(), tenant)
		if err != nil {
			t.Fatalf("list chain %s: %v", tenant, err)
		}
		if len(chain) != 1 {
			t.Errorf("tenant %s: expected 1 entry, got %d", tenant, len(chain))
		}
		if chain[0].SequenceNumber != 1 {
			t.Errorf("tenant %s: chains must number independently, got seq %d", tenant, chain[0].SequenceNumber)
		}
	}
}

func TestAuditQueryFilters(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	audit := NewAuditStore(base)
	ctx := context.Background()

	applyMutation(t, mutations, testTenant, "incidents", "inc-1", `{"title":"a"}`)
	applyMutation(t, mutations, testTenant, "problems", "prb-1", `{"title":"b"}`)
	if _, err := mutations.Apply(ctx, testTenant, ApplyInput{
		Collection: "incidents", EntityID: "inc-1", Action: models.ActionUpdate,
		Fields: json.RawMessage(`{"title":"a2"}`), Now: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	entries, hasMore, err := audit.Query(ctx, testTenant, models.AuditQueryOpts{EntityType: "incidents"})
	if err != nil {
		t.Fatalf("query by entity type: %v", err)
	}
	if len(entries) != 2 || hasMore {
		t.Errorf("entity type filter: got %d entries, hasMore=%v", len(entries), hasMore)
	}

	entries, _, err = audit.Query(ctx, testTenant, models.AuditQueryOpts{Action: string(models.ActionUpdate)})
	if err != nil {
		t.Fatalf("query by action: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != models.ActionUpdate {
		t.Errorf("action filter: got %+v", entries)
	}

	// Newest first.
	entries, _, err = audit.Query(ctx, testTenant, models.AuditQueryOpts{})
	if err != nil {
		t.Fatalf("unfiltered query: %v", err)
	}
	if len(entries) != 3 || entries[0].SequenceNumber != 3 {
		t.Errorf("expected newest first, got %+v", entries)
	}
}

func TestAuditQueryPagination(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	audit := NewAuditStore(base)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		applyMutation(t, mutations, testTenant, "incidents", "inc", `{"n":1}`)
	}

	entries, hasMore, err := audit.Query(ctx, testTenant, models.AuditQueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(entries) != 2 || !hasMore {
		t.Errorf("page 1: got %d entries, hasMore=%v", len(entries), hasMore)
	}

	entries, hasMore, err = audit.Query(ctx, testTenant, models.AuditQueryOpts{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("last page: %v", err)
	}
	if len(entries) != 1 || hasMore {
		t.Errorf("last page: got %d entries, hasMore=%v", len(entries), hasMore)
	}
}

func TestAuditExpire(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	audit := NewAuditStore(base)
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -100)

	// Public tier (90 days) written 100 days ago: expired.
	if _, err := mutations.Apply(ctx, testTenant, ApplyInput{
		Collection: "wiki_pages", EntityID: "p1", Action: models.ActionCreate,
		Fields:   json.RawMessage(`{"body":"old"}`),
		Metadata: models.AuditMetadata{Classification: models.ClassificationPublic, RetentionPeriodDays: 90},
		Now:      old,
	}); err != nil {
		t.Fatalf("old public entry: %v", err)
	}

	// Internal tier (365 days) written 100 days ago: kept.
	if _, err := mutations.Apply(ctx, testTenant, ApplyInput{
		Collection: "incidents", EntityID: "inc-1", Action: models.ActionCreate,
		Fields:   json.RawMessage(`{"title":"x"}`),
		Metadata: models.AuditMetadata{Classification: models.ClassificationInternal, RetentionPeriodDays: 365},
		Now:      old,
	}); err != nil {
		t.Fatalf("internal entry: %v", err)
	}

	// Expired age but compliance-flagged: kept.
	if _, err := mutations.Apply(ctx, testTenant, ApplyInput{
		Collection: "contracts", EntityID: "c1", Action: models.ActionCreate,
		Fields: json.RawMessage(`{"title":"y"}`),
		Metadata: models.AuditMetadata{
			Classification: models.ClassificationPublic, RetentionPeriodDays: 90,
			ComplianceFlags: []string{"SOX"},
		},
		Now: old,
	}); err != nil {
		t.Fatalf("flagged entry: %v", err)
	}

	deleted, err := audit.Expire(ctx, testTenant, time.Now().UTC())
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 expired entry, got %d", deleted)
	}

	chain, err := audit.ListChain(ctx, testTenant)
	if err != nil {
		t.Fatalf("list chain: %v", err)
	}
	if len(chain) != 2 {
		t.Errorf("expected 2 surviving entries, got %d", len(chain))
	}
}

func TestAuditExpireLargeBacklog(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	audit := NewAuditStore(base)
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -100)
	backlog := 2*expireBatchSize + 101

	for i := 0; i < backlog; i++ {
		if _, err := mutations.Apply(ctx, testTenant, ApplyInput{
			Collection: "wiki_pages", EntityID: fmt.Sprintf("p%d", i), Action: models.ActionCreate,
			Fields:   json.RawMessage(`{"body":"old"}`),
			Metadata: models.AuditMetadata{Classification: models.ClassificationPublic, RetentionPeriodDays: 90},
			Now:      old,
		}); err != nil {
			t.Fatalf("entry %d: %v", i, err)
		}
	}

	// Flagged entry in the middle of the backlog survives.
	if _, err := mutations.Apply(ctx, testTenant, ApplyInput{
		Collection: "contracts", EntityID: "c1", Action: models.ActionCreate,
		Fields: json.RawMessage(`{"title":"y"}`),
		Metadata: models.AuditMetadata{
			Classification: models.ClassificationPublic, RetentionPeriodDays: 90,
			ComplianceFlags: []string{"SOX"},
		},
		Now: old,
	}); err != nil {
		t.Fatalf("flagged entry: %v", err)
	}

	deleted, err := audit.Expire(ctx, testTenant, time.Now().UTC())
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if deleted != backlog {
		t.Errorf("expected %d expired entries, got %d", backlog, deleted)
	}

	chain, err := audit.ListChain(ctx, testTenant)
	if err != nil {
		t.Fatalf("list chain: %v", err)
	}
	if len(chain) != 1 {
		t.Errorf("expected 1 surviving entry, got %d", len(chain))
	}
}

func TestAuditExpireHonorsLegalHold(t *testing.T) {
	base := newTestBase(t)
	mutations := NewMutationStore(base)
	audit := NewAuditStore(base)
	ctx := context.Background()

	result, err := mutations.Apply(ctx, testTenant, ApplyInput{
		Collection: "wiki_pages", EntityID: "p1", Action: models.ActionCreate,
		Fields:   json.RawMessage(`{"body":"old"}`),
		Metadata: models.AuditMetadata{Classification: models.ClassificationPublic, RetentionPeriodDays: 90},
		Now:      time.Now().UTC().AddDate(0, 0, -100),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := audit.SetLegalHold(ctx, testTenant, result.AuditEntry.ID, true); err != nil {
		t.Fatalf("set hold: %v", err)
	}

	deleted, err := audit.Expire(ctx, testTenant, time.Now().UTC())
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if deleted != 0 {
		t.Errorf("held entry expired: %d", deleted)
	}

	// Releasing the hold makes it expirable again.
	if err := audit.SetLegalHold(ctx, testTenant, result.AuditEntry.ID, false); err != nil {
		t.Fatalf("release hold: %v", err)
	}

	deleted, err = audit.Expire(ctx, testTenant, time.Now().UTC())
	if err != nil {
		t.Fatalf("second expire: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 expired entry after release, got %d", deleted)
	}
}
