package model

import (
	"errors"
	"fmt"
)

// ErrValidation marks a strategy, rule, or record that violates an
// invariant. Validation failures are rejected before execution and
// never produce a price history entry.
var ErrValidation = errors.New("validation failed")

// ErrConflict marks a second execution attempted for an (itemID, sku)
// key while one is already in flight. The conflicting request is
// rejected, never run concurrently.
var ErrConflict = errors.New("execution already in flight")

// ErrNotFound marks a missing listing, strategy, or rule.
var ErrNotFound = errors.New("not found")

// DetailKind tags an ErrorDetail with its known source.
type DetailKind string

const (
	DetailAPI        DetailKind = "api"
	DetailValidation DetailKind = "validation"
	DetailTimeout    DetailKind = "timeout"
	DetailOpaque     DetailKind = "opaque"
)

// ErrorDetail is a tagged variant carried on error-status history
// records. Known failure sources keep their structure; anything
// unclassified falls back to an opaque raw payload.
type ErrorDetail struct {
	Kind    DetailKind `json:"kind" bson:"kind"`
	Code    string     `json:"code,omitempty" bson:"code,omitempty"`
	Message string     `json:"message,omitempty" bson:"message,omitempty"`
	Raw     string     `json:"raw,omitempty" bson:"raw,omitempty"`
}

// APIDetail builds the detail for a marketplace call failure.
func APIDetail(code, message, raw string) *ErrorDetail {
	return &ErrorDetail{Kind: DetailAPI, Code: code, Message: message, Raw: raw}
}

// TimeoutDetail builds the detail for a timed-out external call.
func TimeoutDetail(message string) *ErrorDetail {
	return &ErrorDetail{Kind: DetailTimeout, Message: message}
}

// ValidationDetail builds the detail for an invariant violation.
func ValidationDetail(message string) *ErrorDetail {
	return &ErrorDetail{Kind: DetailValidation, Message: message}
}

// OpaqueDetail wraps an unclassified payload.
func OpaqueDetail(raw string) *ErrorDetail {
	return &ErrorDetail{Kind: DetailOpaque, Raw: raw}
}

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
