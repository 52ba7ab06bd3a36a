package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/toolrunner/cmd"
	"github.com/smazurov/toolrunner/internal/api"
	"github.com/smazurov/toolrunner/internal/config"
	"github.com/smazurov/toolrunner/internal/events"
	"github.com/smazurov/toolrunner/internal/logging"
	"github.com/smazurov/toolrunner/internal/metrics"
	"github.com/smazurov/toolrunner/internal/systemd"
)

// shutdownTimeout bounds how long the server waits for askpass cleanup on stop.
const shutdownTimeout = 10 * time.Second

func main() {
	var cli humacli.CLI
	var loaded *config.Options

	cli = humacli.New(func(hooks humacli.Hooks, opts *config.Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}
		loaded = opts

		logging.Initialize(logging.Config{
			Level:   opts.LoggingLevel,
			Format:  opts.LoggingFormat,
			Modules: opts.LoggingModules(),
		})
		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(api.LogEntryToEvent(entry))
		})

		output := logging.NewOutputLog(os.Stdout, opts.OutputBufferSize)
		sup := cmd.NewSupervisor(opts, output, eventBus)

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Runner:            sup,
			Locator:           cmd.NewLocator(opts),
			Output:            output,
			EventBus:          eventBus,
			PrometheusHandler: metrics.Handler(),
		})
		notifier := systemd.NewNotifier(nil)

		// Background helpers started by OnStart stop when serveCtx ends.
		serveCtx, stopServe := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			if watcher, err := config.WatchLogging(opts.Config, logging.GetLogger("config")); err != nil {
				logger.Warn("Config reload disabled", "error", err)
			} else {
				go func() {
					<-serveCtx.Done()
					watcher.Stop()
				}()
			}

			unfollow := notifier.FollowRuns(eventBus)
			go func() {
				<-serveCtx.Done()
				unfollow()
			}()
			notifier.StartWatchdog(serveCtx)
			notifier.Ready()
			notifier.Status("idle")

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// Stop the running tool after the API stops accepting new runs
			if sup.IsRunning() {
				logger.Info("Stopping running tool")
				if _, killErr := sup.Kill(); killErr != nil {
					logger.Warn("Failed to stop running tool", "error", killErr)
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if drainErr := sup.Drain(ctx); drainErr != nil {
				logger.Warn("Run cleanup did not finish before shutdown", "error", drainErr)
			}
			stopServe()
		})
	})

	getOpts := func() *config.Options { return loaded }
	cli.Root().AddCommand(cmd.CreateRunCmd(getOpts))
	cli.Root().AddCommand(cmd.CreateLocateCmd(getOpts))
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	// Run the CLI
	cli.Run()
}
