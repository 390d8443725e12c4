// Package common provides shared types and utilities used across the SBridge framework.
package common

import (
	"context"
	"errors"

	"github.com/Suhaibinator/SBridge/pkg/environ"
)

// AppFunc is a unit of request handling. It reads and mutates the environment
// and reports completion through its return value: nil for success, an error
// for failure, or an error matching ErrCanceled or context.Canceled for
// cancellation.
type AppFunc func(env environ.Env) error

// Middleware is a factory that wraps the rest of the pipeline.
// It receives the continuation and returns the unit to run in its place.
// Middleware can be chained together to create a pipeline of request processing.
type Middleware func(next AppFunc) AppFunc

// ErrCanceled reports that a pipeline completed by cancellation.
var ErrCanceled = errors.New("call canceled")

// Outcome classifies how a pipeline completed.
type Outcome int

const (
	// OutcomeSuccess means the pipeline returned nil.
	OutcomeSuccess Outcome = iota
	// OutcomeFailure means the pipeline returned an error.
	OutcomeFailure
	// OutcomeCanceled means the pipeline returned a cancellation error.
	OutcomeCanceled
)

// String returns the lower-case name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// OutcomeOf classifies the completion value of an AppFunc.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return OutcomeCanceled
	default:
		return OutcomeFailure
	}
}
