package engine

import (
	"errors"
	"fmt"
)

// RegistryError represents a rejected registry operation.
//
// An unparseable subscribe string is not a RegistryError: the subscription
// is kept, disabled, and its parse error is recorded on the Subscription.
type RegistryError struct {
	// Code identifies the error category.
	Code RegistryErrorCode

	// Message is a human-readable description.
	Message string

	Destination string
	Action      string
}

// RegistryErrorCode categorizes registry errors.
type RegistryErrorCode string

const (
	// ErrCodeDuplicateSubscription indicates (destination, action) is already registered.
	ErrCodeDuplicateSubscription RegistryErrorCode = "DUPLICATE_SUBSCRIPTION"

	// ErrCodeMissingKey indicates an empty destination or action.
	ErrCodeMissingKey RegistryErrorCode = "MISSING_KEY"

	// ErrCodeNoSink indicates Run was called without a sink.
	ErrCodeNoSink RegistryErrorCode = "NO_SINK"
)

// Error implements the error interface.
func (e *RegistryError) Error() string {
	if e.Destination != "" || e.Action != "" {
		return fmt.Sprintf("%s: %s (destination=%s, action=%s)", e.Code, e.Message, e.Destination, e.Action)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsDuplicateError returns true if the error is a duplicate registration.
// Uses errors.As to handle wrapped errors.
func IsDuplicateError(err error) bool {
	var re *RegistryError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDuplicateSubscription
	}
	return false
}

func newDuplicateError(destination, action string) *RegistryError {
	return &RegistryError{
		Code:        ErrCodeDuplicateSubscription,
		Message:     "subscription already registered",
		Destination: destination,
		Action:      action,
	}
}
