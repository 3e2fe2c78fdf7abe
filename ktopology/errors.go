package ktopology

import (
	"errors"
	"fmt"
)

// Sentinel errors for topologies that violate the model.
var (
	ErrDanglingStreamReference = errors.New("dangling stream reference")
	ErrEmptyFieldsGrouping     = errors.New("fields grouping without fields")
	ErrDuplicateComponent      = errors.New("duplicate component")
	ErrInvalidComponentName    = errors.New("invalid component name")
	ErrInvalidComponent        = errors.New("invalid component")
	ErrInvalidParallelism      = errors.New("invalid parallelism hint")
	ErrInvalidGrouping         = errors.New("invalid grouping")
	ErrInvalidComponentObject  = errors.New("invalid component object")
	ErrSchemaMismatch          = errors.New("schema mismatch")
	ErrMissingField            = errors.New("missing required field")
)

// DanglingReferenceError is returned when a component subscribes to a
// component that is not part of the topology.
type DanglingReferenceError struct {
	Component string
	Upstream  StreamID
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("%v: component %q subscribes to %q which does not exist",
		ErrDanglingStreamReference, e.Component, e.Upstream)
}

func (e *DanglingReferenceError) Unwrap() error {
	return ErrDanglingStreamReference
}

// EmptyFieldsError is returned for a fields grouping with no fields.
type EmptyFieldsError struct {
	Component string
	Upstream  StreamID
}

func (e *EmptyFieldsError) Error() string {
	return fmt.Sprintf("%v: component %q input %q", ErrEmptyFieldsGrouping, e.Component, e.Upstream)
}

func (e *EmptyFieldsError) Unwrap() error {
	return ErrEmptyFieldsGrouping
}
