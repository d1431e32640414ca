package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports malformed create/update input. Fields maps a
// field name to the rule it violated.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, ", ") + ")"
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func NewFieldError(field, rule string) *ValidationError {
	return &ValidationError{
		Message: "validation failed",
		Fields:  map[string]string{field: rule},
	}
}

// NotFoundError is returned when operating on an unknown id, including
// ids that belong to another tenant.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// DeliveryError describes a failed outbound webhook POST. StatusCode is 0
// for transport errors.
type DeliveryError struct {
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return "delivery failed: " + e.Err.Error()
	}
	return fmt.Sprintf("delivery failed: HTTP %d", e.StatusCode)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// AggregationPartialFailure lists the metric sources that could not be
// read. The snapshot it accompanies is still usable; the affected fields
// are zero.
type AggregationPartialFailure struct {
	Sources map[string]error
}

func (e *AggregationPartialFailure) Error() string {
	names := e.SourceNames()
	return fmt.Sprintf("metrics aggregation degraded: %d source(s) failed: %s", len(names), strings.Join(names, ", "))
}

func (e *AggregationPartialFailure) SourceNames() []string {
	names := make([]string, 0, len(e.Sources))
	for name := range e.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
