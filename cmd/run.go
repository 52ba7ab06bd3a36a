package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/smazurov/toolrunner/internal/config"
	"github.com/smazurov/toolrunner/internal/logging"
	"github.com/smazurov/toolrunner/internal/supervisor"
)

// Exit codes for outcomes that carry no exit code of their own.
const (
	exitStartFailed = 1
	exitCancelled   = 130
)

// drainTimeout bounds the wait for askpass cleanup before the CLI exits.
const drainTimeout = 10 * time.Second

// CreateRunCmd creates the run command.
func CreateRunCmd(getOpts func() *config.Options) *cobra.Command {
	var elevated bool
	var dir string
	var name string

	cmd := &cobra.Command{
		Use:   "run [flags] -- tool [args...]",
		Short: "Run one tool under the supervisor",
		Long: `Runs a tool in the foreground, forwarding its output, and exits with its exit code. ` +
			`With --elevated the tool runs through the elevation helper using the secret ` +
			`from [elevation] secret or ` + config.SecretEnv + `.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(c *cobra.Command, args []string) {
			opts := loadedOptions(getOpts)
			logger := logging.GetLogger("run")

			req := supervisor.Request{
				Name:     name,
				Tool:     resolveTool(opts, args[0]),
				Args:     args[1:],
				Dir:      dir,
				Elevated: elevated,
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			output := consoleOutput{stdout: c.OutOrStdout(), stderr: c.ErrOrStderr()}
			sup := NewSupervisor(opts, output, nil)
			code := runTool(ctx, sup, req, logger)
			stop()
			os.Exit(code)
		},
	}

	cmd.Flags().BoolVar(&elevated, "elevated", false, "Run through the elevation helper")
	cmd.Flags().StringVar(&dir, "dir", "", "Working directory for the tool")
	cmd.Flags().StringVar(&name, "name", "", "Display name used in logs")
	return cmd
}

// runTool runs req to completion, waits for cleanup, and returns the exit code.
func runTool(ctx context.Context, sup *supervisor.Supervisor, req supervisor.Request, logger logging.Logger) int {
	outcome, err := sup.Run(ctx, req)

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if drainErr := sup.Drain(drainCtx); drainErr != nil {
		logger.Warn("Askpass cleanup did not finish", "error", drainErr)
	}

	if err != nil {
		logger.Error("Failed to start tool", "code", string(supervisor.CodeOf(err)), "error", err)
		return exitStartFailed
	}
	return ExitCode(outcome)
}

// ExitCode maps an outcome to a shell exit status.
func ExitCode(o supervisor.Outcome) int {
	switch {
	case o.IntentionallyKilled:
		return exitCancelled
	case o.ExitCode != nil:
		return *o.ExitCode
	case o.Signal != "":
		if sig := unix.SignalNum(o.Signal); sig != 0 {
			return 128 + int(sig)
		}
		return exitStartFailed
	default:
		return 0
	}
}

func resolveTool(opts *config.Options, tool string) string {
	if strings.ContainsRune(tool, '/') {
		return tool
	}
	if path, ok := NewLocator(opts).Locate(tool); ok {
		return path
	}
	return tool
}

// consoleOutput forwards child stdout and stderr to the matching streams.
type consoleOutput struct {
	stdout io.Writer
	stderr io.Writer
}

func (c consoleOutput) HandleLine(source, line string) {
	w := c.stdout
	if source == "stderr" {
		w = c.stderr
	}
	_, _ = io.WriteString(w, line+"\n")
}
