package models

import "testing"

func TestQueueStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to QueueStatus
		want     bool
	}{
		{QueueStatusPending, QueueStatusInProgress, true},
		{QueueStatusPending, QueueStatusCompleted, false},
		{QueueStatusPending, QueueStatusFailed, false},
		{QueueStatusInProgress, QueueStatusCompleted, true},
		{QueueStatusInProgress, QueueStatusFailed, true},
		{QueueStatusInProgress, QueueStatusConflict, true},
		{QueueStatusInProgress, QueueStatusPending, true},
		{QueueStatusConflict, QueueStatusPending, true},
		{QueueStatusConflict, QueueStatusCompleted, false},
		{QueueStatusCompleted, QueueStatusPending, false},
		{QueueStatusFailed, QueueStatusPending, false},
		{QueueStatusFailed, QueueStatusInProgress, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
