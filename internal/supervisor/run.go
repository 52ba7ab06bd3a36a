package supervisor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/toolrunner/internal/relay"
)

// Request describes one tool invocation.
type Request struct {
	Name     string   `json:"name,omitempty" example:"onecc import" doc:"Display name used in logs"`
	Tool     string   `json:"tool" example:"/usr/share/one/bin/onecc" doc:"Executable to run"`
	Args     []string `json:"args,omitempty" doc:"Arguments passed to the tool"`
	Dir      string   `json:"dir,omitempty" doc:"Working directory"`
	Elevated bool     `json:"elevated,omitempty" doc:"Run through the elevation helper"`
}

// DisplayName returns Name, or the tool and its arguments when Name is empty.
func (r Request) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return strings.TrimSpace(r.Tool + " " + strings.Join(r.Args, " "))
}

// Run is the handle for one spawned child.
type Run struct {
	ID        string
	Request   Request
	PID       int
	StartedAt time.Time

	done       chan struct{}
	resolved   sync.Once
	outcome    Outcome
	finishedAt time.Time

	cleanupDone chan struct{}
	cleaned     sync.Once
	cleanup     relay.RemoveResult
}

func newRun(req Request) *Run {
	return &Run{
		ID:          uuid.NewString(),
		Request:     req,
		done:        make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Done is closed once the outcome is known and every output line has been delivered.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Outcome returns the outcome, or false while the run is still going.
func (r *Run) Outcome() (Outcome, bool) {
	select {
	case <-r.done:
		return r.outcome, true
	default:
		return Outcome{}, false
	}
}

// FinishedAt returns when the outcome was resolved, or the zero time.
func (r *Run) FinishedAt() time.Time {
	select {
	case <-r.done:
		return r.finishedAt
	default:
		return time.Time{}
	}
}

// Wait blocks until the outcome is known or ctx is done. Cancelling ctx
// does not stop the run.
func (r *Run) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-r.done:
		return r.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// CleanupDone is closed after the askpass script of an elevated run has
// been removed, or right after Done for plain runs.
func (r *Run) CleanupDone() <-chan struct{} {
	return r.cleanupDone
}

// Cleanup returns the removal result, or false while cleanup is pending.
func (r *Run) Cleanup() (relay.RemoveResult, bool) {
	select {
	case <-r.cleanupDone:
		return r.cleanup, true
	default:
		return relay.RemoveNone, false
	}
}

func (r *Run) resolve(o Outcome) bool {
	first := false
	r.resolved.Do(func() {
		r.outcome = o
		r.finishedAt = time.Now()
		close(r.done)
		first = true
	})
	return first
}

func (r *Run) finishCleanup(result relay.RemoveResult) {
	r.cleaned.Do(func() {
		r.cleanup = result
		close(r.cleanupDone)
	})
}
