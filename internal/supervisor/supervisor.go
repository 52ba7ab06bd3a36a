package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/smazurov/toolrunner/internal/events"
	"github.com/smazurov/toolrunner/internal/logging"
	"github.com/smazurov/toolrunner/internal/metrics"
	"github.com/smazurov/toolrunner/internal/relay"
)

// Defaults applied by New for zero Options fields.
const (
	DefaultElevationHelper     = "sudo"
	DefaultAskpassEnv          = "SUDO_ASKPASS"
	DefaultCleanupDelay        = 100 * time.Millisecond
	DefaultCleanupRetries      = 10
	DefaultEarlyCleanupRetries = 5
	DefaultWaitDelay           = 2 * time.Second
	DefaultKillTimeout         = 5 * time.Second
)

// CredentialSource supplies the secret for an elevated run. It is asked
// once per run, right before the askpass script is written.
type CredentialSource interface {
	ElevationSecret() (secret string, ok bool)
}

// Options configures a Supervisor.
type Options struct {
	Logger      logging.Logger
	Output      OutputHandler
	Events      *events.Bus
	Credentials CredentialSource
	Relay       *relay.Relay

	// ElevationHelper is invoked as "<helper> -A <tool> <args...>".
	ElevationHelper string
	// AskpassEnv is the variable pointing the helper at the script.
	AskpassEnv string

	// CleanupDelay and CleanupRetries control removal of the askpass
	// script after the child has exited.
	CleanupDelay   time.Duration
	CleanupRetries int

	// EarlyCleanupDelay, when positive, removes the script that long after
	// spawn while the child is still running. The helper reads it only
	// once, at startup.
	EarlyCleanupDelay   time.Duration
	EarlyCleanupRetries int

	// WaitDelay bounds how long output is still copied after the child
	// exits, for descendants that keep the pipes open.
	WaitDelay time.Duration

	// KillTimeout is how long Run waits after a graceful Kill before
	// sending SIGKILL.
	KillTimeout time.Duration
}

type child struct {
	cmd        *exec.Cmd
	run        *Run
	killedByMe bool
	exited     bool
}

// Supervisor runs at most one child process at a time.
type Supervisor struct {
	opts   Options
	logger logging.Logger
	output OutputHandler

	mu       sync.Mutex
	starting bool
	child    *child
	last     *Run
	live     int

	pending sync.WaitGroup
}

// New creates a supervisor.
func New(opts Options) *Supervisor {
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("supervisor")
	}
	if opts.Relay == nil {
		opts.Relay = relay.New("", nil)
	}
	if opts.ElevationHelper == "" {
		opts.ElevationHelper = DefaultElevationHelper
	}
	if opts.AskpassEnv == "" {
		opts.AskpassEnv = DefaultAskpassEnv
	}
	if opts.CleanupDelay <= 0 {
		opts.CleanupDelay = DefaultCleanupDelay
	}
	if opts.CleanupRetries <= 0 {
		opts.CleanupRetries = DefaultCleanupRetries
	}
	if opts.EarlyCleanupRetries <= 0 {
		opts.EarlyCleanupRetries = DefaultEarlyCleanupRetries
	}
	if opts.WaitDelay <= 0 {
		opts.WaitDelay = DefaultWaitDelay
	}
	if opts.KillTimeout <= 0 {
		opts.KillTimeout = DefaultKillTimeout
	}

	output := opts.Output
	if output == nil {
		output = loggerOutput{logger: logging.GetLogger("output")}
	}

	return &Supervisor{
		opts:   opts,
		logger: opts.Logger,
		output: output,
	}
}

// IsRunning reports whether a child is alive and has not been asked to stop.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunningLocked()
}

func (s *Supervisor) isRunningLocked() bool {
	return s.child != nil && !s.child.killedByMe && !s.child.exited
}

// Last returns the most recently started run, or nil.
func (s *Supervisor) Last() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Start spawns the tool and returns once the child is running. The
// returned Run reports the outcome; output goes to Options.Output.
func (s *Supervisor) Start(ctx context.Context, req Request) (*Run, error) {
	name := req.DisplayName()

	s.mu.Lock()
	if s.starting || s.isRunningLocked() {
		s.mu.Unlock()
		s.logger.Error("Process is already running", "name", name)
		return nil, s.startFailed(newError(CodeAlreadyRunning, fmt.Sprintf("cannot run %q", name), nil))
	}
	s.starting = true
	s.mu.Unlock()

	run, err := s.spawn(ctx, req)

	s.mu.Lock()
	s.starting = false
	s.mu.Unlock()

	if err != nil {
		return nil, s.startFailed(err)
	}
	return run, nil
}

func (s *Supervisor) startFailed(err *Error) error {
	metrics.StartFailed(string(err.Code))
	return err
}

func (s *Supervisor) spawn(ctx context.Context, req Request) (*Run, *Error) {
	name := req.DisplayName()
	s.logger.Info("Running", "name", name, "elevated", req.Elevated)

	cmd, script, serr := s.command(ctx, req)
	if serr != nil {
		return nil, serr
	}

	run := newRun(req)
	emit := func(source, line string) {
		s.output.HandleLine(source, line)
		s.opts.Events.Publish(events.RunOutputEvent{RunID: run.ID, Source: source, Line: line})
	}
	stdout := newLineWriter("stdout", emit)
	stderr := newLineWriter("stderr", emit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = s.opts.WaitDelay
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		s.logger.Error("Failed to start process", "error", err, "tool", req.Tool)
		if script != nil {
			result := script.Remove(context.Background(), 0, s.opts.CleanupRetries)
			script.Close()
			metrics.CredentialCleanup(result.String())
		}
		return nil, newError(CodeSpawnFailed, fmt.Sprintf("cannot start %q", req.Tool), err)
	}

	run.PID = cmd.Process.Pid
	run.StartedAt = time.Now()
	c := &child{cmd: cmd, run: run}

	s.mu.Lock()
	s.child = c
	s.last = run
	s.live++
	metrics.SetRunning(s.live)
	s.mu.Unlock()

	s.logger.Info("Process started", "run_id", run.ID, "pid", run.PID, "tool", req.Tool)
	metrics.RunStarted(req.Elevated)
	s.opts.Events.Publish(events.RunStartedEvent{
		RunID:     run.ID,
		Name:      name,
		Tool:      req.Tool,
		Args:      req.Args,
		Elevated:  req.Elevated,
		PID:       run.PID,
		Timestamp: run.StartedAt.Format(time.RFC3339),
	})

	var sweep *sweeper
	if script != nil && s.opts.EarlyCleanupDelay > 0 {
		sweep = startSweeper(script, s.opts.EarlyCleanupDelay, s.opts.EarlyCleanupRetries)
	}

	s.pending.Add(1)
	go s.wait(c, script, sweep, stdout, stderr)
	return run, nil
}

// command builds the exec.Cmd, writing the askpass script for elevated runs.
func (s *Supervisor) command(ctx context.Context, req Request) (*exec.Cmd, *relay.Script, *Error) {
	if !req.Elevated {
		cmd := exec.Command(req.Tool, req.Args...)
		cmd.Dir = req.Dir
		return cmd, nil, nil
	}

	var secret string
	var ok bool
	if s.opts.Credentials != nil {
		secret, ok = s.opts.Credentials.ElevationSecret()
	}
	if !ok || secret == "" {
		s.logger.Error("No elevation credential configured", "name", req.DisplayName())
		return nil, nil, newError(CodeMissingCredential, "no elevation credential configured", nil)
	}

	script, err := s.opts.Relay.Create(ctx, secret)
	if err != nil {
		s.logger.Error("Failed to prepare askpass helper", "error", err)
		return nil, nil, newError(CodeRelayInitFailed, "cannot prepare askpass helper", err)
	}

	args := make([]string, 0, len(req.Args)+2)
	args = append(args, "-A", req.Tool)
	args = append(args, req.Args...)

	cmd := exec.Command(s.opts.ElevationHelper, args...)
	cmd.Dir = req.Dir
	cmd.Env = append(os.Environ(), s.opts.AskpassEnv+"="+script.Path())
	return cmd, script, nil
}

func (s *Supervisor) wait(c *child, script *relay.Script, sweep *sweeper, stdout, stderr *lineWriter) {
	defer s.pending.Done()

	err := c.cmd.Wait()
	stdout.Flush()
	stderr.Flush()

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		s.logger.Warn("Process wait returned error", "run_id", c.run.ID, "error", err)
	}

	s.mu.Lock()
	c.exited = true
	killedByMe := c.killedByMe
	if s.child == c {
		s.child = nil
	}
	s.live--
	metrics.SetRunning(s.live)
	s.mu.Unlock()

	exitCode, signal := termination(c.cmd.ProcessState)
	if signal != "" {
		s.logger.Debug("Child process was killed", "run_id", c.run.ID, "signal", signal)
	} else if exitCode != nil {
		s.logger.Info("Child process exited", "run_id", c.run.ID, "exit_code", *exitCode)
	}

	outcome, rerr := Resolve(exitCode, signal, killedByMe)
	if rerr != nil {
		s.logger.Error("Cannot classify termination", "run_id", c.run.ID, "error", rerr)
		outcome = Exited(1)
	}

	duration := time.Since(c.run.StartedAt)
	if c.run.resolve(outcome) {
		if outcome.Success {
			s.logger.Info("Run succeeded", "run_id", c.run.ID, "outcome", outcome.String())
		} else {
			s.logger.Error("Run failed", "run_id", c.run.ID, "outcome", outcome.String())
		}
		metrics.RunFinished(outcome.Result(), duration)
		s.opts.Events.Publish(events.RunFinishedEvent{
			RunID:               c.run.ID,
			Success:             outcome.Success,
			ExitCode:            outcome.ExitCode,
			Signal:              outcome.Signal,
			IntentionallyKilled: outcome.IntentionallyKilled,
			DurationMs:          duration.Milliseconds(),
			Timestamp:           time.Now().Format(time.RFC3339),
		})
	}

	if script == nil {
		c.run.finishCleanup(relay.RemoveNone)
		return
	}

	sweep.stop()
	result := script.Remove(context.Background(), s.opts.CleanupDelay, s.opts.CleanupRetries)
	script.Close()
	if result == relay.NotConfirmed {
		s.logger.Warn("Askpass helper may still be on disk", "run_id", c.run.ID, "dir", script.Dir())
	}
	metrics.CredentialCleanup(result.String())
	s.opts.Events.Publish(events.CredentialCleanupEvent{
		RunID:     c.run.ID,
		Result:    result.String(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
	c.run.finishCleanup(result)
}

// Kill asks the current child to terminate. It returns true when the
// request was delivered. The outcome of a delivered kill is Cancelled.
func (s *Supervisor) Kill() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.child
	if c == nil || c.exited || c.killedByMe {
		s.logger.Error("No process to kill")
		return false, newError(CodeNoProcessToKill, "no process to kill", nil)
	}

	delivered := true
	if err := c.cmd.Process.Signal(terminateSignal); err != nil {
		s.logger.Error("Failed to terminate process", "run_id", c.run.ID, "pid", c.run.PID, "error", err)
		delivered = false
	} else {
		c.killedByMe = true
		s.logger.Info("Process was terminated", "run_id", c.run.ID, "pid", c.run.PID)
	}

	s.opts.Events.Publish(events.RunKillRequestedEvent{
		RunID:     c.run.ID,
		Delivered: delivered,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return delivered, nil
}

// forceKill sends SIGKILL to run's child if it is still the current one.
func (s *Supervisor) forceKill(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.child
	if c == nil || c.run != run || c.exited {
		return
	}
	c.killedByMe = true
	if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Error("Failed to force kill process", "run_id", run.ID, "error", err)
		return
	}
	s.logger.Warn("Process force killed", "run_id", run.ID, "pid", run.PID)
}

// Run starts the tool and waits for its outcome. Cancelling ctx kills the
// child, escalating to SIGKILL after KillTimeout, and still returns the
// resolved outcome.
func (s *Supervisor) Run(ctx context.Context, req Request) (Outcome, error) {
	run, err := s.Start(ctx, req)
	if err != nil {
		return Outcome{}, err
	}

	select {
	case <-run.Done():
	case <-ctx.Done():
		s.logger.Info("Context cancelled, stopping process", "run_id", run.ID)
		if _, err := s.Kill(); err != nil {
			s.logger.Debug("Kill after cancel", "error", err)
		}
		timer := time.NewTimer(s.opts.KillTimeout)
		select {
		case <-run.Done():
			timer.Stop()
		case <-timer.C:
			s.forceKill(run)
			<-run.Done()
		}
	}

	outcome, _ := run.Outcome()
	return outcome, nil
}

// Drain waits until every started run has resolved and finished cleanup.
func (s *Supervisor) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sweeper removes the askpass script once, a fixed delay after spawn.
type sweeper struct {
	cancel chan struct{}
	done   chan struct{}
}

func startSweeper(script *relay.Script, delay time.Duration, retries int) *sweeper {
	sw := &sweeper{
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(sw.done)
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			script.Remove(context.Background(), 0, retries)
		case <-sw.cancel:
		}
	}()
	return sw
}

// stop cancels a pending sweep and waits for a running one. Nil is a no-op.
func (sw *sweeper) stop() {
	if sw == nil {
		return
	}
	close(sw.cancel)
	<-sw.done
}
