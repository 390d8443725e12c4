package adapter

import (
	"errors"
	"fmt"
)

// Construction failures. They are wrapped in a *ConstructionError.
var (
	ErrNilHost  = errors.New("nil host context")
	ErrNoMethod = errors.New("request method is empty")
	ErrNoOutput = errors.New("host has no output sink")
)

// ErrNilApp is returned by New when no application is given.
var ErrNilApp = errors.New("adapter: nil application")

var errNoChannel = errors.New("adapter: host accepted the upgrade without a channel")

// ErrUpgradeAfterCommit is returned when the pipeline asks for a protocol
// switch after the response has already been committed.
var ErrUpgradeAfterCommit = errors.New("adapter: duplex upgrade requested after the response was committed")

// ConstructionError reports that the environment could not be built.
// The pipeline is never invoked when it is returned.
type ConstructionError struct {
	Err error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("adapter: cannot construct environment: %v", e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// PanicError is a pipeline panic converted to a failure.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("adapter: panic in pipeline: %v", e.Value)
}

// Unwrap returns the panic value if it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
