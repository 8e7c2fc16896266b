// Package classify implements the fixed compliance classification table
// applied to every audit entry at append time. Classification is a property
// of what was mutated (store name and field names), never of who mutated it.
package classify

import (
	"strings"

	"github.com/opsledger/opsledger/internal/models"
)

// Store name sets. Membership is exact, case-insensitive.
var (
	sensitiveStores = map[string]bool{
		"users":      true,
		"end_users":  true,
		"customers":  true,
		"audit_logs": true,
	}

	confidentialStores = map[string]bool{
		"contracts":           true,
		"vendors":             true,
		"compliance_controls": true,
		"risks":               true,
	}

	operationalStores = map[string]bool{
		"incidents":        true,
		"problems":         true,
		"changes":          true,
		"service_requests": true,
	}

	// soxStores are in scope for SOX regardless of the mutated fields.
	soxStores = map[string]bool{
		"audit_logs":          true,
		"compliance_controls": true,
		"contracts":           true,
		"vendors":             true,
		"cost_centers":        true,
	}

	// financialStores make deletes SOX-relevant even outside soxStores.
	financialStores = map[string]bool{
		"budgets":      true,
		"cost_centers": true,
		"contracts":    true,
		"invoices":     true,
	}

	piiFields = map[string]bool{
		"email":   true,
		"ssn":     true,
		"phone":   true,
		"address": true,
	}

	financialFields = map[string]bool{
		"budget":  true,
		"cost":    true,
		"revenue": true,
		"salary":  true,
	}
)

// Retention periods in days per classification tier.
const (
	RetentionSensitiveDays    = 2555
	RetentionConfidentialDays = 1825
	RetentionInternalDays     = 365
	RetentionPublicDays       = 90
)

// Retention holds the retention period in days per classification tier.
// Deployments with stricter compliance regimes override the defaults.
type Retention struct {
	SensitiveDays    int
	ConfidentialDays int
	InternalDays     int
	PublicDays       int
}

// DefaultRetention returns the standard retention table.
func DefaultRetention() Retention {
	return Retention{
		SensitiveDays:    RetentionSensitiveDays,
		ConfidentialDays: RetentionConfidentialDays,
		InternalDays:     RetentionInternalDays,
		PublicDays:       RetentionPublicDays,
	}
}

// Days returns the retention period for a classification tier.
func (r Retention) Days(c models.Classification) int {
	switch c {
	case models.ClassificationSensitive:
		return r.SensitiveDays
	case models.ClassificationConfidential:
		return r.ConfidentialDays
	case models.ClassificationInternal:
		return r.InternalDays
	default:
		return r.PublicDays
	}
}

// RetentionDays returns the default retention period for a classification
// tier.
func RetentionDays(c models.Classification) int {
	return DefaultRetention().Days(c)
}

// Classify determines the compliance metadata for a mutation against the
// named store touching the given fields.
func Classify(storeName string, fieldNames []string, action models.Action) models.AuditMetadata {
	store := strings.ToLower(storeName)

	hasPII := hasAny(fieldNames, piiFields)
	hasFinancial := hasAny(fieldNames, financialFields)

	var tier models.Classification
	switch {
	case sensitiveStores[store] || hasPII:
		tier = models.ClassificationSensitive
	case confidentialStores[store] || hasFinancial:
		tier = models.ClassificationConfidential
	case operationalStores[store]:
		tier = models.ClassificationInternal
	default:
		tier = models.ClassificationPublic
	}

	var flags []string
	if hasPII {
		flags = append(flags, "GDPR")
	}
	if soxStores[store] || (action == models.ActionDelete && financialStores[store]) {
		flags = append(flags, "SOX")
	}

	return models.AuditMetadata{
		Classification:      tier,
		RetentionPeriodDays: RetentionDays(tier),
		ComplianceFlags:     flags,
	}
}

func hasAny(fieldNames []string, set map[string]bool) bool {
	for _, name := range fieldNames {
		if set[strings.ToLower(name)] {
			return true
		}
	}
	return false
}
