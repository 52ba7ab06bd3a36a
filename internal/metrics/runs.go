// Package metrics provides Prometheus metrics for supervised tool runs.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for runs_finished_total.
const (
	ResultSuccess   = "success"
	ResultCancelled = "cancelled"
	ResultExitCode  = "exit_code"
	ResultSignal    = "signal"
)

var (
	runsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toolrunner",
		Subsystem: "supervisor",
		Name:      "runs_started_total",
		Help:      "Child processes spawned",
	}, []string{"elevated"})

	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toolrunner",
		Subsystem: "supervisor",
		Name:      "runs_finished_total",
		Help:      "Resolved run outcomes",
	}, []string{"result"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "toolrunner",
		Subsystem: "supervisor",
		Name:      "run_duration_seconds",
		Help:      "Wall time from spawn to exit",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
	}, []string{"result"})

	startFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toolrunner",
		Subsystem: "supervisor",
		Name:      "start_failures_total",
		Help:      "Start calls rejected before or during spawn",
	}, []string{"code"})

	running = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "toolrunner",
		Subsystem: "supervisor",
		Name:      "running",
		Help:      "Child processes spawned and not yet reaped",
	})

	credentialCleanups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toolrunner",
		Subsystem: "relay",
		Name:      "cleanups_total",
		Help:      "Askpass script removals by result",
	}, []string{"result"})

	// Local counters for the status API.
	snapshot   Snapshot
	snapshotMu sync.RWMutex
)

// Snapshot holds totals since process start.
type Snapshot struct {
	Started          int            `json:"started"`
	Finished         map[string]int `json:"finished"`
	StartFailures    int            `json:"start_failures"`
	CleanupsByResult map[string]int `json:"cleanups_by_result"`
}

// RunStarted records a spawned child.
func RunStarted(elevated bool) {
	runsStarted.WithLabelValues(strconv.FormatBool(elevated)).Inc()
	update(func(s *Snapshot) { s.Started++ })
}

// RunFinished records a resolved outcome under one of the Result* labels.
func RunFinished(result string, duration time.Duration) {
	runsFinished.WithLabelValues(result).Inc()
	runDuration.WithLabelValues(result).Observe(duration.Seconds())
	update(func(s *Snapshot) {
		if s.Finished == nil {
			s.Finished = make(map[string]int)
		}
		s.Finished[result]++
	})
}

// SetRunning sets the number of live children. A killed child counts until
// it has been reaped, even when a newer run has already started.
func SetRunning(n int) {
	running.Set(float64(n))
}

// StartFailed records a rejected Start by error code.
func StartFailed(code string) {
	startFailures.WithLabelValues(code).Inc()
	update(func(s *Snapshot) { s.StartFailures++ })
}

// CredentialCleanup records an askpass script removal result.
func CredentialCleanup(result string) {
	credentialCleanups.WithLabelValues(result).Inc()
	update(func(s *Snapshot) {
		if s.CleanupsByResult == nil {
			s.CleanupsByResult = make(map[string]int)
		}
		s.CleanupsByResult[result]++
	})
}

// Get returns a copy of the current totals.
func Get() Snapshot {
	snapshotMu.RLock()
	defer snapshotMu.RUnlock()

	dup := snapshot
	dup.Finished = copyMap(snapshot.Finished)
	dup.CleanupsByResult = copyMap(snapshot.CleanupsByResult)
	return dup
}

// Handler returns the Prometheus metrics HTTP handler.
// This collects all promauto-registered metrics automatically.
func Handler() http.Handler {
	return promhttp.Handler()
}

func update(fn func(*Snapshot)) {
	snapshotMu.Lock()
	defer snapshotMu.Unlock()
	fn(&snapshot)
}

func copyMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
