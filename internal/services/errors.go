package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers used to classify failures across the pipeline. Stage
// code wraps errors with one of these so boundaries (the runner, the HTTP
// API) can map them to terminal job states and status codes without
// inspecting message text.
var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrProvider      = errors.New("provider error")
	ErrEncoding      = errors.New("encoding error")
	ErrStale         = errors.New("stale manuscript")
	ErrStorage       = errors.New("storage error")
	ErrNotFound      = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrStorage
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
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

// ValidationError aggregates every manuscript problem found in one pass so
// callers can surface the full list instead of the first violation.
type ValidationError struct {
	Messages []string
}

func NewValidationError(messages []string) *ValidationError {
	return &ValidationError{Messages: messages}
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 0 {
		return "validation error"
	}
	return strings.Join(e.Messages, " ")
}

// Is lets errors.Is(err, ErrValidation) match aggregated validation errors.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AsValidation extracts an aggregated validation error from a chain.
func AsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
