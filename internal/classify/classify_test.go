package classify

import (
	"reflect"
	"testing"

	"github.com/opsledger/opsledger/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		store     string
		fields    []string
		action    models.Action
		wantTier  models.Classification
		wantDays  int
		wantFlags []string
	}{
		{
			name:     "sensitive store",
			store:    "customers",
			fields:   []string{"name"},
			action:   models.ActionCreate,
			wantTier: models.ClassificationSensitive,
			wantDays: RetentionSensitiveDays,
		},
		{
			name:      "pii field forces sensitive",
			store:     "incidents",
			fields:    []string{"title", "email"},
			action:    models.ActionUpdate,
			wantTier:  models.ClassificationSensitive,
			wantDays:  RetentionSensitiveDays,
			wantFlags: []string{"GDPR"},
		},
		{
			name:      "confidential store carries SOX",
			store:     "contracts",
			fields:    []string{"title"},
			action:    models.ActionCreate,
			wantTier:  models.ClassificationConfidential,
			wantDays:  RetentionConfidentialDays,
			wantFlags: []string{"SOX"},
		},
		{
			name:     "financial field forces confidential",
			store:    "projects",
			fields:   []string{"budget"},
			action:   models.ActionUpdate,
			wantTier: models.ClassificationConfidential,
			wantDays: RetentionConfidentialDays,
		},
		{
			name:     "operational store",
			store:    "incidents",
			fields:   []string{"title", "severity"},
			action:   models.ActionCreate,
			wantTier: models.ClassificationInternal,
			wantDays: RetentionInternalDays,
		},
		{
			name:     "unknown store is public",
			store:    "wiki_pages",
			fields:   []string{"body"},
			action:   models.ActionUpdate,
			wantTier: models.ClassificationPublic,
			wantDays: RetentionPublicDays,
		},
		{
			name:      "delete on financial store is SOX",
			store:     "invoices",
			action:    models.ActionDelete,
			wantTier:  models.ClassificationPublic,
			wantDays:  RetentionPublicDays,
			wantFlags: []string{"SOX"},
		},
		{
			name:     "update on financial store is not SOX",
			store:    "invoices",
			fields:   []string{"number"},
			action:   models.ActionUpdate,
			wantTier: models.ClassificationPublic,
			wantDays: RetentionPublicDays,
		},
		{
			name:      "case-insensitive store and field",
			store:     "Customers",
			fields:    []string{"Email"},
			action:    models.ActionCreate,
			wantTier:  models.ClassificationSensitive,
			wantDays:  RetentionSensitiveDays,
			wantFlags: []string{"GDPR"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.store, tt.fields, tt.action)
			if got.Classification != tt.wantTier {
				t.Errorf("classification: got %s, want %s", got.Classification, tt.wantTier)
			}
			if got.RetentionPeriodDays != tt.wantDays {
				t.Errorf("retention: got %d, want %d", got.RetentionPeriodDays, tt.wantDays)
			}
			if !reflect.DeepEqual(got.ComplianceFlags, tt.wantFlags) {
				t.Errorf("flags: got %v, want %v", got.ComplianceFlags, tt.wantFlags)
			}
		})
	}
}
