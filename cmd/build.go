// Package cmd holds the toolrunner subcommands and the wiring they share
// with the serve command.
package cmd

import (
	"time"

	"github.com/smazurov/toolrunner/internal/config"
	"github.com/smazurov/toolrunner/internal/events"
	"github.com/smazurov/toolrunner/internal/locator"
	"github.com/smazurov/toolrunner/internal/logging"
	"github.com/smazurov/toolrunner/internal/relay"
	"github.com/smazurov/toolrunner/internal/supervisor"
)

// NewSupervisor builds a supervisor from loaded options.
func NewSupervisor(opts *config.Options, output supervisor.OutputHandler, bus *events.Bus) *supervisor.Supervisor {
	return supervisor.New(supervisor.Options{
		Logger:              logging.GetLogger("supervisor"),
		Output:              output,
		Events:              bus,
		Credentials:         config.NewCredentials(opts.Config),
		Relay:               relay.New(opts.ElevationScratchBase, logging.GetLogger("relay")),
		ElevationHelper:     opts.ElevationHelper,
		AskpassEnv:          opts.ElevationAskpassEnv,
		CleanupDelay:        ms(opts.ElevationCleanupDelayMs),
		CleanupRetries:      opts.ElevationCleanupRetries,
		EarlyCleanupDelay:   ms(opts.ElevationEarlyCleanupDelayMs),
		EarlyCleanupRetries: supervisor.DefaultEarlyCleanupRetries,
		WaitDelay:           ms(opts.SupervisorWaitDelayMs),
		KillTimeout:         ms(opts.SupervisorKillTimeoutMs),
	})
}

// NewLocator builds the tool locator from loaded options.
func NewLocator(opts *config.Options) *locator.Locator {
	return locator.New(opts.ToolsFallbackDir, logging.GetLogger("locator"))
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// loadedOptions returns the options parsed by the root command, or defaults
// when the command runs outside it.
func loadedOptions(get func() *config.Options) *config.Options {
	if get != nil {
		if opts := get(); opts != nil {
			return opts
		}
	}
	opts := &config.Options{}
	config.ApplyDefaults(opts)
	return opts
}
