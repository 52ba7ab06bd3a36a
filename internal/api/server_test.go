package api

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/toolrunner/internal/api/models"
	"github.com/smazurov/toolrunner/internal/events"
	"github.com/smazurov/toolrunner/internal/logging"
	"github.com/smazurov/toolrunner/internal/metrics"
	"github.com/smazurov/toolrunner/internal/relay"
	"github.com/smazurov/toolrunner/internal/supervisor"
)

type fakeLocator map[string]string

func (f fakeLocator) Locate(name string) (string, bool) {
	p, ok := f[name]
	return p, ok
}

type testEnv struct {
	ts     *httptest.Server
	sup    *supervisor.Supervisor
	output *logging.OutputLog
	bus    *events.Bus
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{
		output: logging.NewOutputLog(nil, 100),
		bus:    events.New(),
	}
	env.sup = supervisor.New(supervisor.Options{
		Output:       env.output,
		Events:       env.bus,
		Relay:        relay.New(t.TempDir(), nil),
		CleanupDelay: time.Millisecond,
	})
	opts.Runner = env.sup
	opts.Output = env.output
	opts.EventBus = env.bus
	if opts.Locator == nil {
		opts.Locator = fakeLocator{}
	}

	env.ts = httptest.NewServer(NewServer(&opts).Handler())
	t.Cleanup(func() {
		env.ts.Close()
		if env.sup.IsRunning() {
			env.sup.Kill()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		env.sup.Drain(ctx)
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, auth ...string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(auth) == 2 {
		req.SetBasicAuth(auth[0], auth[1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func (e *testEnv) waitFinished(t *testing.T) models.RunStatusData {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_, body := e.do(t, http.MethodGet, "/api/runs/current", "")
		var status models.RunStatusData
		if err := json.Unmarshal(body, &status); err != nil {
			t.Fatalf("decode status: %v (%s)", err, body)
		}
		if status.Run != nil && status.Run.Outcome != nil {
			return status
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("run did not finish")
	return models.RunStatusData{}
}

func TestHealthSkipsAuth(t *testing.T) {
	env := newTestEnv(t, Options{AuthUsername: "admin", AuthPassword: "pw"})

	if code, _ := env.do(t, http.MethodGet, "/api/health", ""); code != http.StatusOK {
		t.Errorf("health status = %d", code)
	}
	if code, _ := env.do(t, http.MethodGet, "/api/version", ""); code != http.StatusOK {
		t.Errorf("version status = %d", code)
	}
}

func TestRunsRequireAuth(t *testing.T) {
	env := newTestEnv(t, Options{AuthUsername: "admin", AuthPassword: "pw"})

	if code, _ := env.do(t, http.MethodGet, "/api/runs/current", ""); code != http.StatusUnauthorized {
		t.Errorf("no credentials: status = %d, want 401", code)
	}
	if code, _ := env.do(t, http.MethodGet, "/api/runs/current", "", "admin", "nope"); code != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d, want 401", code)
	}
	if code, _ := env.do(t, http.MethodGet, "/api/runs/current", "", "admin", "pw"); code != http.StatusOK {
		t.Errorf("valid credentials: status = %d, want 200", code)
	}

	query := "/api/runs/current?auth=" + base64.StdEncoding.EncodeToString([]byte("admin:pw"))
	if code, _ := env.do(t, http.MethodGet, query, ""); code != http.StatusOK {
		t.Errorf("query credentials: status = %d, want 200", code)
	}
}

func TestStartRunAndReadOutcome(t *testing.T) {
	env := newTestEnv(t, Options{})

	code, body := env.do(t, http.MethodPost, "/api/runs", `{"tool":"echo","args":["from api"]}`)
	if code != http.StatusAccepted {
		t.Fatalf("start status = %d: %s", code, body)
	}
	var run models.RunData
	if err := json.Unmarshal(body, &run); err != nil {
		t.Fatal(err)
	}
	if run.ID == "" || run.PID == 0 {
		t.Errorf("run = %+v", run)
	}

	status := env.waitFinished(t)
	if status.Running {
		t.Error("running = true after outcome")
	}
	if status.Run.ID != run.ID {
		t.Errorf("status run ID = %s, want %s", status.Run.ID, run.ID)
	}
	o := status.Run.Outcome
	if !o.Success || o.ExitCode == nil || *o.ExitCode != 0 {
		t.Errorf("outcome = %+v", o)
	}
	if status.Totals.Started < 1 || status.Totals.Finished[metrics.ResultSuccess] < 1 {
		t.Errorf("totals = %+v, want the finished run counted", status.Totals)
	}

	_, body = env.do(t, http.MethodGet, "/api/logs?source=output", "")
	var logs models.LogsData
	if err := json.Unmarshal(body, &logs); err != nil {
		t.Fatal(err)
	}
	if logs.Count != 1 || logs.Entries[0].Message != "from api" || logs.Entries[0].Module != "stdout" {
		t.Errorf("output logs = %+v", logs)
	}
}

func TestStartResolvesBareToolName(t *testing.T) {
	env := newTestEnv(t, Options{Locator: fakeLocator{"greeter": "/bin/echo"}})

	code, body := env.do(t, http.MethodPost, "/api/runs", `{"tool":"greeter","args":["hi"]}`)
	if code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", code, body)
	}
	var run models.RunData
	if err := json.Unmarshal(body, &run); err != nil {
		t.Fatal(err)
	}
	if run.Tool != "/bin/echo" {
		t.Errorf("tool = %q, want locator path", run.Tool)
	}
	env.waitFinished(t)
}

func TestStartConflictAndKill(t *testing.T) {
	env := newTestEnv(t, Options{})

	if code, body := env.do(t, http.MethodPost, "/api/runs", `{"tool":"sleep","args":["10"]}`); code != http.StatusAccepted {
		t.Fatalf("start status = %d: %s", code, body)
	}
	if code, _ := env.do(t, http.MethodPost, "/api/runs", `{"tool":"echo"}`); code != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", code)
	}

	code, body := env.do(t, http.MethodPost, "/api/runs/current/kill", "")
	if code != http.StatusOK {
		t.Fatalf("kill status = %d: %s", code, body)
	}
	var kill models.KillData
	if err := json.Unmarshal(body, &kill); err != nil {
		t.Fatal(err)
	}
	if !kill.Killed {
		t.Error("killed = false")
	}

	status := env.waitFinished(t)
	if !status.Run.Outcome.IntentionallyKilled {
		t.Errorf("outcome = %+v, want cancelled", status.Run.Outcome)
	}

	if code, _ := env.do(t, http.MethodPost, "/api/runs/current/kill", ""); code != http.StatusNotFound {
		t.Errorf("kill without process status = %d, want 404", code)
	}
}

func TestStartErrors(t *testing.T) {
	env := newTestEnv(t, Options{})

	if code, _ := env.do(t, http.MethodPost, "/api/runs", `{"tool":"true","elevated":true}`); code != http.StatusPreconditionFailed {
		t.Errorf("missing credential status = %d, want 412", code)
	}
	if code, _ := env.do(t, http.MethodPost, "/api/runs", `{"tool":"/nonexistent/tool"}`); code != http.StatusInternalServerError {
		t.Errorf("spawn failure status = %d, want 500", code)
	}
	if code, _ := env.do(t, http.MethodPost, "/api/runs", `{"tool":""}`); code != http.StatusUnprocessableEntity {
		t.Errorf("empty tool status = %d, want 422", code)
	}
}

func TestLocateTool(t *testing.T) {
	env := newTestEnv(t, Options{Locator: fakeLocator{"onecc": "/usr/share/one/bin/onecc"}})

	code, body := env.do(t, http.MethodGet, "/api/tools/onecc", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	var tool models.ToolData
	if err := json.Unmarshal(body, &tool); err != nil {
		t.Fatal(err)
	}
	if tool.Path != "/usr/share/one/bin/onecc" {
		t.Errorf("path = %q", tool.Path)
	}

	if code, _ := env.do(t, http.MethodGet, "/api/tools/missing", ""); code != http.StatusNotFound {
		t.Errorf("missing tool status = %d, want 404", code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{PrometheusHandler: metrics.Handler()})
	metrics.RunStarted(false)

	code, body := env.do(t, http.MethodGet, "/metrics", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	for _, name := range []string{
		"toolrunner_supervisor_runs_started_total",
		"toolrunner_supervisor_running",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics body lacks %s", name)
		}
	}
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.ts.URL+"/api/events/stream", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("content type = %q", resp.Header.Get("Content-Type"))
	}

	eventsSeen := make(chan string, 32)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
				eventsSeen <- name
			}
		}
		close(eventsSeen)
	}()

	next := func() string {
		select {
		case name, ok := <-eventsSeen:
			if !ok {
				t.Fatal("stream closed")
			}
			return name
		case <-ctx.Done():
			t.Fatal("timeout waiting for event")
		}
		return ""
	}

	if name := next(); name != "run-status" {
		t.Fatalf("first event = %q, want run-status", name)
	}

	if code, body := env.do(t, http.MethodPost, "/api/runs", `{"tool":"echo","args":["streamed"]}`); code != http.StatusAccepted {
		t.Fatalf("start status = %d: %s", code, body)
	}

	// Each event type has its own subscriber, so arrival order across types is not fixed.
	seen := map[string]bool{}
	for !seen["run-started"] || !seen["run-output"] || !seen["run-finished"] {
		seen[next()] = true
	}
}
