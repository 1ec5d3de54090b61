package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConnectivity marks failures reaching an external collaborator
	// (catalog store, search service, metadata catalog). Retryable.
	ErrConnectivity = errors.New("connectivity failure")
	// ErrValidation marks malformed or missing input, such as a TV-categorized
	// file without season or episode numbers. Not retryable.
	ErrValidation = errors.New("validation failure")
	// ErrData marks a resolved external record that is missing required
	// identifying fields. Not retryable.
	ErrData = errors.New("data failure")
	// ErrNotIdentified marks the normal terminal outcome where no candidate
	// could be matched. Not an error condition for the caller; the pipeline
	// rolls back and reports an empty result.
	ErrNotIdentified = errors.New("media not identified")
	// ErrExternalTool marks a failed invocation of an external binary.
	ErrExternalTool = errors.New("external tool error")
)

// FailureKind is the coarse classification surfaced to status callers.
type FailureKind string

const (
	FailureConnectivity  FailureKind = "connectivity"
	FailureValidation    FailureKind = "validation"
	FailureData          FailureKind = "data"
	FailureNotIdentified FailureKind = "not_identified"
	FailureUnknown       FailureKind = "unknown"
)

// Wrap tags err with the provided marker and component/operation context so
// later classification can rely on errors.Is. A nil marker defaults to
// ErrConnectivity, the retryable bucket.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrConnectivity
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether the scheduling engine should re-attempt the
// failed step. Validation and data failures are permanent; an unidentified
// outcome is terminal by definition. Everything else is assumed transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrData), errors.Is(err, ErrNotIdentified):
		return false
	default:
		return true
	}
}

// Classify maps an error to its failure kind for status reporting.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureUnknown
	case errors.Is(err, ErrNotIdentified):
		return FailureNotIdentified
	case errors.Is(err, ErrValidation):
		return FailureValidation
	case errors.Is(err, ErrData):
		return FailureData
	case errors.Is(err, ErrConnectivity), errors.Is(err, ErrExternalTool):
		return FailureConnectivity
	default:
		return FailureUnknown
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
