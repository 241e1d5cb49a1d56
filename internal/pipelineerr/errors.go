// Package pipelineerr defines the pipeline's error-kind taxonomy.
//
// Stage and orchestrator code never returns bare errors for anything that
// participates in fatal/graceful-degradation decisions; it wraps the
// underlying cause in an *Error carrying one of the Kind constants below, so
// callers can classify failures with errors.As instead of string matching.
package pipelineerr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds named in the error handling design.
type Kind string

const (
	KindConfigMissing      Kind = "config-missing"
	KindCredentialMissing  Kind = "credential-missing"
	KindBudgetExceeded     Kind = "budget-exceeded"
	KindIOError            Kind = "io-error"
	KindTimeout            Kind = "timeout"
	KindSubsystemError     Kind = "subsystem-error"
	KindTransientExternal  Kind = "transient-external"
	KindContainmentViolate Kind = "containment-violation"
	KindAbnormalTerm       Kind = "abnormal-termination"
)

// Error wraps an underlying cause with a Kind and the stage that observed it.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func New(kind Kind, stage string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

func (e *Error) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s[%s]: %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind of err, defaulting to KindSubsystemError when err
// does not wrap a *Error — any unclassified failure is treated as fatal for
// the stage that produced it, per the propagation rules.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindSubsystemError
}

// Graceful reports whether a failure of this kind may be treated as a
// warning-and-continue for a stage marked continue_on_failure, per the
// graceful-degradation rules: containment-violation and config-missing are
// never gracefully degraded.
func Graceful(kind Kind) bool {
	switch kind {
	case KindContainmentViolate, KindConfigMissing:
		return false
	default:
		return true
	}
}
