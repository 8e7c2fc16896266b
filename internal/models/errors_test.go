package models

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyDeliveryError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want DeliveryClass
	}{
		{"conflict", &ConflictError{Reason: "remote newer"}, DeliveryConflict},
		{"wrapped conflict", fmt.Errorf("deliver: %w", &ConflictError{}), DeliveryConflict},
		{"permanent reject", &RejectError{Reason: "bad payload", Permanent: true}, DeliveryPermanent},
		{"transient reject", &RejectError{Reason: "remote busy"}, DeliveryTransient},
		{"wrapped permanent", fmt.Errorf("deliver: %w", &RejectError{Permanent: true}), DeliveryPermanent},
		{"plain error", errors.New("connection refused"), DeliveryTransient},
		{"context deadline", context.DeadlineExceeded, DeliveryTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyDeliveryError(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActionValid(t *testing.T) {
	for _, a := range []Action{ActionCreate, ActionUpdate, ActionDelete} {
		if !a.Valid() {
			t.Errorf("%s should be valid", a)
		}
	}
	for _, a := range []Action{"", "upsert", "DELETE"} {
		if a.Valid() {
			t.Errorf("%q should be invalid", a)
		}
	}
}
