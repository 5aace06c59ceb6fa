package build

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a BuildError.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindResolution     ErrorKind = "resolution"
	KindLockContention ErrorKind = "lock-contention"
	KindTool           ErrorKind = "tool"
	KindIO             ErrorKind = "io"
)

const toolHint = "is it installed and do you have sudo privileges?"

// BuildError is returned by every operation of the build environment manager.
type BuildError struct {
	Kind    ErrorKind
	Message string
	// Hint is a short remediation shown to the operator next to Message.
	Hint string
	Err  error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err only means the base was busy; the job can
// be rescheduled as is.
func IsRetryable(err error) bool {
	return KindOf(err) == KindLockContention
}

// KindOf returns the kind of the first BuildError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var buildErr *BuildError
	if errors.As(err, &buildErr) {
		return buildErr.Kind
	}
	return ""
}

func validationError(format string, args ...any) *BuildError {
	return &BuildError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}
