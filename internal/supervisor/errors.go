package supervisor

import (
	"errors"
	"fmt"
)

// ErrorCode identifies why a supervisor call was rejected.
type ErrorCode string

// Error codes for supervisor operations.
const (
	CodeAlreadyRunning    ErrorCode = "ALREADY_RUNNING"
	CodeNoProcessToKill   ErrorCode = "NO_PROCESS_TO_KILL"
	CodeMissingCredential ErrorCode = "MISSING_CREDENTIAL"
	CodeRelayInitFailed   ErrorCode = "RELAY_INIT_FAILED"
	CodeSpawnFailed       ErrorCode = "SPAWN_FAILED"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrAlreadyRunning    = &Error{Code: CodeAlreadyRunning, Message: "process is already running"}
	ErrNoProcessToKill   = &Error{Code: CodeNoProcessToKill, Message: "no process to kill"}
	ErrMissingCredential = &Error{Code: CodeMissingCredential, Message: "no elevation credential configured"}
	ErrRelayInitFailed   = &Error{Code: CodeRelayInitFailed, Message: "cannot prepare askpass helper"}
	ErrSpawnFailed       = &Error{Code: CodeSpawnFailed, Message: "cannot start process"}
)

// Error is a supervisor error with a code.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func newError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
