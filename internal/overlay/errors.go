package overlay

import (
	"errors"
	"fmt"

	"github.com/acetatelabs/acetate/internal/overlay/registry"
)

// Code is a stable machine-readable failure code. Codes identify failure
// classes across releases; messages do not.
type Code string

const (
	// CodeInitFailure covers registration bookkeeping inconsistencies,
	// including creations dropped by the re-entrancy guard.
	CodeInitFailure Code = "init_failure"
	// CodeContentCreate covers factories that failed or returned nothing.
	CodeContentCreate Code = "content_create_failure"
	// CodePositioning covers measurement or placement computation failures.
	CodePositioning Code = "positioning_failure"
	// CodeDragSetup covers handle resolution or controller attachment
	// failures. Never fatal to the instance.
	CodeDragSetup Code = "drag_setup_failure"
	// CodeCleanup covers cleanup callbacks that failed during removal.
	CodeCleanup Code = "cleanup_failure"
	// CodeInvalidTarget covers factory/target kind mismatches.
	CodeInvalidTarget Code = "invalid_target"
	// CodeContainerNotFound covers a missing surface root.
	CodeContainerNotFound Code = "container_not_found"
)

// Error is the engine's typed error. It carries the failure code, the
// creation or removal phase, and the affected instance when known.
type Error struct {
	Code     Code
	Phase    string
	Instance registry.OverlayID
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s in %s", e.Code, e.Phase)
	if e.Instance != "" {
		msg += fmt.Sprintf(" (instance %s)", e.Instance)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, phase string, instance registry.OverlayID, err error) *Error {
	return &Error{Code: code, Phase: phase, Instance: instance, Err: err}
}

// CodeOf extracts the stable code from an error chain, or "" when the
// chain carries no engine error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
