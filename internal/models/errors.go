package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for mutation validation.
var (
	ErrMissingCollection = errors.New("collection is required")
	ErrMissingEntityID   = errors.New("entity id is required")
	ErrMissingTenantID   = errors.New("tenant id is required")
	ErrInvalidAction     = errors.New("invalid action")
	ErrMissingFields     = errors.New("fields are required for create and update")
)

// Sentinel errors for lookups.
var (
	ErrEntityNotFound    = errors.New("entity not found")
	ErrQueueItemNotFound = errors.New("queue item not found")
	ErrFailedOpNotFound  = errors.New("failed operation not found")
)

// ErrIllegalTransition returns an error describing a rejected queue status
// transition.
func ErrIllegalTransition(from, to QueueStatus) error {
	return fmt.Errorf("illegal queue transition %s -> %s", from, to)
}

// RejectError is a delivery failure reported by the transport. Permanent
// rejections (auth/validation class) dead-letter immediately; transient ones
// retry up to the configured limit.
type RejectError struct {
	Reason    string
	Permanent bool
}

// Error implements the error interface.
func (e *RejectError) Error() string {
	if e.Permanent {
		return "delivery rejected permanently: " + e.Reason
	}
	return "delivery rejected: " + e.Reason
}

// ConflictError reports that the remote version of an entity diverged from
// the local one. The item parks in the conflict state until explicitly
// resolved.
type ConflictError struct {
	ServerVersion []byte
	Reason        string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return "remote version conflict: " + e.Reason
	}
	return "remote version conflict"
}

// DeliveryClass buckets a delivery error into the retry policy it drives.
type DeliveryClass int

const (
	DeliveryTransient DeliveryClass = iota
	DeliveryPermanent
	DeliveryConflict
)

// ClassifyDeliveryError maps a transport error to its delivery class.
// Anything unrecognized (network faults, timeouts) is treated as transient.
func ClassifyDeliveryError(err error) DeliveryClass {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return DeliveryConflict
	}

	var reject *RejectError
	if errors.As(err, &reject) && reject.Permanent {
		return DeliveryPermanent
	}

	return DeliveryTransient
}
