package supervisor

import (
	"errors"
	"fmt"

	"github.com/smazurov/toolrunner/internal/metrics"
)

// ErrInvalidTermination means a termination carried both or neither of an
// exit code and a signal, which the OS never reports.
var ErrInvalidTermination = errors.New("termination must carry exactly one of exit code or signal")

// Outcome is the terminal classification of a run.
//
// On success exactly one of ExitCode (always 0) or IntentionallyKilled is
// set. On failure exactly one of ExitCode (> 0) or Signal is set.
type Outcome struct {
	Success             bool   `json:"success" doc:"Whether the outcome is a success variant"`
	ExitCode            *int   `json:"exit_code,omitempty" doc:"Exit code when the process exited"`
	Signal              string `json:"signal,omitempty" example:"SIGKILL" doc:"Signal name when killed externally"`
	IntentionallyKilled bool   `json:"intentionally_killed,omitempty" doc:"Set when terminated by the supervisor's own Kill"`
}

// Exited is the outcome of a process that exited with code.
func Exited(code int) Outcome {
	return Outcome{Success: code == 0, ExitCode: &code}
}

// Signaled is the outcome of a process killed by a signal it was not asked to take.
func Signaled(signal string) Outcome {
	return Outcome{Signal: signal}
}

// Cancelled is the outcome of a process terminated after Kill.
func Cancelled() Outcome {
	return Outcome{Success: true, IntentionallyKilled: true}
}

// Resolve classifies a termination. exitCode is nil when the process died
// by signal; signal is empty when it exited.
func Resolve(exitCode *int, signal string, killedByMe bool) (Outcome, error) {
	if (exitCode == nil) == (signal == "") {
		return Outcome{}, fmt.Errorf("%w (exit code set: %t, signal %q)", ErrInvalidTermination, exitCode != nil, signal)
	}

	if exitCode == nil {
		if killedByMe {
			return Cancelled(), nil
		}
		return Signaled(signal), nil
	}
	return Exited(*exitCode), nil
}

// Validate checks the exactly-one invariant of the union.
func (o Outcome) Validate() error {
	hasCode := o.ExitCode != nil
	if o.Success {
		if o.Signal != "" || hasCode == o.IntentionallyKilled {
			return fmt.Errorf("invalid success outcome %+v", o)
		}
		if hasCode && *o.ExitCode != 0 {
			return fmt.Errorf("success outcome with exit code %d", *o.ExitCode)
		}
		return nil
	}

	if o.IntentionallyKilled || hasCode == (o.Signal != "") {
		return fmt.Errorf("invalid failure outcome %+v", o)
	}
	if hasCode && *o.ExitCode <= 0 {
		return fmt.Errorf("failure outcome with exit code %d", *o.ExitCode)
	}
	return nil
}

// Result returns the metrics label for the outcome.
func (o Outcome) Result() string {
	switch {
	case o.IntentionallyKilled:
		return metrics.ResultCancelled
	case o.Signal != "":
		return metrics.ResultSignal
	case o.Success:
		return metrics.ResultSuccess
	default:
		return metrics.ResultExitCode
	}
}

func (o Outcome) String() string {
	switch {
	case o.IntentionallyKilled:
		return "cancelled"
	case o.Signal != "":
		return "terminated by " + o.Signal
	case o.ExitCode != nil:
		return fmt.Sprintf("exited with code %d", *o.ExitCode)
	default:
		return "unknown"
	}
}

// Err returns nil for success outcomes and a *FailureError otherwise.
func (o Outcome) Err() error {
	if o.Success {
		return nil
	}
	return &FailureError{Outcome: o}
}

// FailureError wraps a failure outcome for callers that propagate errors.
type FailureError struct {
	Outcome Outcome
}

func (e *FailureError) Error() string {
	return "tool " + e.Outcome.String()
}
