package chunkmend

import (
	"errors"
	"fmt"
	"strings"
)

// CommandError wraps an operational failure (I/O and friends) with the
// context of the operation that hit it.
type CommandError struct {
	message string
	cause   error
}

func (e *CommandError) Error() string {
	var msg strings.Builder
	fmt.Fprint(&msg, e.message)
	if e.cause != nil {
		fmt.Fprint(&msg, ": ", e.cause)
	}
	return msg.String()
}

func (e *CommandError) Unwrap() error {
	return e.cause
}

func newCommandError(message string, cause error) *CommandError {
	return &CommandError{message: message, cause: cause}
}

// ValidationError reports input that must not be processed at all: a
// malformed manifest, a chunk size disagreement between the two passes,
// or an unusable parameter. No partial manifest or patch is produced when
// one occurs.
type ValidationError struct {
	message string
	cause   error
}

func (e *ValidationError) Error() string {
	var msg strings.Builder
	fmt.Fprint(&msg, e.message)
	if e.cause != nil {
		fmt.Fprint(&msg, ": ", e.cause)
	}
	return msg.String()
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}

func newValidationError(message string, cause error) *ValidationError {
	return &ValidationError{message: message, cause: cause}
}

// IsValidation tells apart validation failures from operational ones so
// callers can exit with the right status category.
func IsValidation(err error) bool {
	var validation *ValidationError
	return errors.As(err, &validation)
}
