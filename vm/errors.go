package vm

import (
	"fmt"

	"github.com/pkg/errors"
)

// Fatal execution faults, matching spec.md §7's taxonomy. Every one of
// these is raised via panic at the point of detection and turned back into
// an error by the recover in (*Engine).Run, exactly as the teacher's
// getDefaultRecoverFuncForVM does for its register machine.
var (
	errSegmentationFault  = errors.New("segmentation fault")
	errUnknownInstruction = errors.New("instruction not recognized")
	errIllegalOperation   = errors.New("illegal operation")
	errUnsupportedOpcode  = errors.New("unsupported opcode")
	errProgramFinished    = errors.New("ran out of instructions")
	errDivisionByZero     = errors.New("division by zero")
)

// faultError is a fatal execution fault annotated with the bytecode offset
// active when it was raised, matching spec.md §7's "message identifies the
// current bytecode offset" requirement.
type faultError struct {
	cause  error
	offset uint32
}

func (e *faultError) Error() string {
	return fmt.Sprintf("%s at offset %#06x", e.cause, e.offset)
}

func (e *faultError) Unwrap() error { return e.cause }

// failAt panics with a fault positioned at the given code offset. Opcode
// handlers call this instead of returning an error so that the dispatch
// loop's switch stays free of error-plumbing, matching the teacher's
// exec.go style of signalling failure via a field plus panic/recover rather
// than threaded error returns.
func failAt(offset uint32, cause error) {
	panic(&faultError{cause: cause, offset: offset})
}

// wrapLoadError annotates a failure reading a bytecode image, per
// spec.md §7's "Load errors". Load-time failures are reported once to the
// operator rather than retried in a hot loop, so they're worth a captured
// stack trace; this is the one place this interpreter reaches for
// github.com/pkg/errors' Wrap instead of plain fmt.Errorf.
func wrapLoadError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// FailureError is raised by the FAIL opcode (spec.md §4.3), reported as
// "<line>:<col>" with no further wrapping, matching the reference runtime's
// failure() message format exactly.
type FailureError struct {
	Line, Col int32
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("%d:%d", e.Line, e.Col)
}
