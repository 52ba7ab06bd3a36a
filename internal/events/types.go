package events

// Event type constants for kelindar/event.
const (
	TypeRunStarted uint32 = iota + 1
	TypeRunOutput
	TypeRunFinished
	TypeRunKillRequested
	TypeCredentialCleanup
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// RunStartedEvent is published once a child process has been spawned.
type RunStartedEvent struct {
	RunID     string   `json:"run_id" example:"5f0c2d1e-8a43-4c0e-9f3b-2a7d1e6b9c10" doc:"Run identifier"`
	Name      string   `json:"name" example:"onecc import" doc:"Display name of the run"`
	Tool      string   `json:"tool" example:"/usr/share/one/bin/onecc" doc:"Tool path"`
	Args      []string `json:"args" doc:"Tool arguments"`
	Elevated  bool     `json:"elevated" doc:"Whether the tool runs through the elevation helper"`
	PID       int      `json:"pid" example:"4242" doc:"Process ID of the spawned child"`
	Timestamp string   `json:"timestamp" example:"2026-10-14T10:30:00Z" doc:"Start timestamp"`
}

// Type returns the event type identifier for RunStartedEvent.
func (e RunStartedEvent) Type() uint32 { return TypeRunStarted }

// RunOutputEvent carries one line of child output.
type RunOutputEvent struct {
	RunID  string `json:"run_id" doc:"Run identifier"`
	Source string `json:"source" example:"stdout" doc:"Stream the line came from"`
	Line   string `json:"line" doc:"Output line without trailing newline"`
}

// Type returns the event type identifier for RunOutputEvent.
func (e RunOutputEvent) Type() uint32 { return TypeRunOutput }

// RunFinishedEvent is published when a run's outcome is resolved.
type RunFinishedEvent struct {
	RunID               string `json:"run_id" doc:"Run identifier"`
	Success             bool   `json:"success" doc:"Whether the outcome is a success variant"`
	ExitCode            *int   `json:"exit_code,omitempty" doc:"Exit code, when the process exited"`
	Signal              string `json:"signal,omitempty" example:"SIGKILL" doc:"Signal name, when killed externally"`
	IntentionallyKilled bool   `json:"intentionally_killed,omitempty" doc:"Set when the run was cancelled by the supervisor"`
	DurationMs          int64  `json:"duration_ms" doc:"Wall time from spawn to exit"`
	Timestamp           string `json:"timestamp" doc:"Resolution timestamp"`
}

// Type returns the event type identifier for RunFinishedEvent.
func (e RunFinishedEvent) Type() uint32 { return TypeRunFinished }

// RunKillRequestedEvent is published after a termination request was sent or refused.
type RunKillRequestedEvent struct {
	RunID     string `json:"run_id" doc:"Run identifier"`
	Delivered bool   `json:"delivered" doc:"Whether the OS accepted the termination request"`
	Timestamp string `json:"timestamp" doc:"Request timestamp"`
}

// Type returns the event type identifier for RunKillRequestedEvent.
func (e RunKillRequestedEvent) Type() uint32 { return TypeRunKillRequested }

// CredentialCleanupEvent reports the result of removing an askpass script.
type CredentialCleanupEvent struct {
	RunID     string `json:"run_id" doc:"Run identifier"`
	Result    string `json:"result" example:"removed" doc:"removed, not_confirmed or already_absent"`
	Timestamp string `json:"timestamp" doc:"Cleanup timestamp"`
}

// Type returns the event type identifier for CredentialCleanupEvent.
func (e CredentialCleanupEvent) Type() uint32 { return TypeCredentialCleanup }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"supervisor" doc:"Module name"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Additional attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
