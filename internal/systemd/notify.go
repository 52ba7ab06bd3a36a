// Package systemd reports service state to the systemd manager over the
// notify socket. Every call is a no-op outside a Type=notify unit.
package systemd

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/toolrunner/internal/events"
	"github.com/smazurov/toolrunner/internal/logging"
)

// Notifier sends sd_notify messages.
type Notifier struct {
	logger logging.Logger
	notify func(unsetEnvironment bool, state string) (bool, error)
}

// NewNotifier creates a notifier. A nil logger uses the "systemd" module logger.
func NewNotifier(logger logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.GetLogger("systemd")
	}
	return &Notifier{logger: logger, notify: daemon.SdNotify}
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(false, state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("sd_notify sent", "state", state)
	}
}

// Ready reports that startup finished.
func (n *Notifier) Ready() { n.send(daemon.SdNotifyReady) }

// Stopping reports that shutdown began.
func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(format string, args ...any) {
	n.send("STATUS=" + fmt.Sprintf(format, args...))
}

// FollowRuns mirrors run lifecycle events into the status line.
// The returned function unsubscribes.
func (n *Notifier) FollowRuns(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(func(e events.RunStartedEvent) {
			n.Status("running %s (pid %d)", e.Name, e.PID)
		}),
		bus.Subscribe(func(e events.RunFinishedEvent) {
			result := "succeeded"
			if !e.Success {
				result = "failed"
			}
			n.Status("idle, last run %s", result)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// StartWatchdog pings the watchdog at half its interval until ctx is done.
// It does nothing when the unit has no WatchdogSec.
func (n *Notifier) StartWatchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}

	n.logger.Info("Watchdog enabled", "interval", interval)
	go func() {
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.send(daemon.SdNotifyWatchdog)
			}
		}
	}()
}
