package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRunLifecycleCounters(t *testing.T) {
	before := testutil.ToFloat64(runsStarted.WithLabelValues("true"))
	finishedBefore := testutil.ToFloat64(runsFinished.WithLabelValues(ResultCancelled))
	snapBefore := Get()

	RunStarted(true)
	RunFinished(ResultCancelled, 150*time.Millisecond)

	if got := testutil.ToFloat64(runsStarted.WithLabelValues("true")) - before; got != 1 {
		t.Errorf("runs_started_total{elevated=true} delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(runsFinished.WithLabelValues(ResultCancelled)) - finishedBefore; got != 1 {
		t.Errorf("runs_finished_total{result=cancelled} delta = %v, want 1", got)
	}

	snap := Get()
	if snap.Started-snapBefore.Started != 1 {
		t.Errorf("snapshot started delta = %d, want 1", snap.Started-snapBefore.Started)
	}
	if snap.Finished[ResultCancelled]-snapBefore.Finished[ResultCancelled] != 1 {
		t.Errorf("snapshot finished[cancelled] = %d", snap.Finished[ResultCancelled])
	}
}

func TestSetRunningTracksLiveChildren(t *testing.T) {
	SetRunning(2)
	if got := testutil.ToFloat64(running); got != 2 {
		t.Errorf("running = %v, want 2", got)
	}

	// Finishing a run no longer touches the gauge
	RunFinished(ResultSuccess, time.Millisecond)
	if got := testutil.ToFloat64(running); got != 2 {
		t.Errorf("running = %v after RunFinished, want 2", got)
	}

	SetRunning(0)
	if got := testutil.ToFloat64(running); got != 0 {
		t.Errorf("running = %v, want 0", got)
	}
}

func TestCredentialCleanupCounter(t *testing.T) {
	before := testutil.ToFloat64(credentialCleanups.WithLabelValues("not_confirmed"))
	CredentialCleanup("not_confirmed")
	if got := testutil.ToFloat64(credentialCleanups.WithLabelValues("not_confirmed")) - before; got != 1 {
		t.Errorf("cleanups_total{result=not_confirmed} delta = %v, want 1", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	CredentialCleanup("removed")
	snap := Get()
	snap.CleanupsByResult["removed"] = -100

	if Get().CleanupsByResult["removed"] < 0 {
		t.Error("mutating snapshot changed package state")
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	StartFailed("SPAWN_FAILED")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "toolrunner_supervisor_start_failures_total") {
		t.Error("metrics output missing start_failures_total")
	}
}
