package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/toolrunner/internal/config"
	"github.com/smazurov/toolrunner/internal/logging"
	"github.com/smazurov/toolrunner/internal/supervisor"
)

func testOptions(t *testing.T) *config.Options {
	t.Helper()
	opts := &config.Options{
		Config:               filepath.Join(t.TempDir(), "absent.toml"),
		ElevationScratchBase: t.TempDir(),
		ToolsFallbackDir:     t.TempDir(),
	}
	config.ApplyDefaults(opts)
	opts.ElevationCleanupDelayMs = 1
	opts.ElevationEarlyCleanupDelayMs = 0
	return opts
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name    string
		outcome supervisor.Outcome
		want    int
	}{
		{"success", supervisor.Exited(0), 0},
		{"failure code", supervisor.Exited(3), 3},
		{"cancelled", supervisor.Cancelled(), 130},
		{"sigkill", supervisor.Signaled("SIGKILL"), 137},
		{"sigterm", supervisor.Signaled("SIGTERM"), 143},
		{"unknown signal", supervisor.Signaled("SIGNOPE"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.outcome); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRunToolForwardsOutput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	sup := NewSupervisor(testOptions(t), consoleOutput{stdout: &stdout, stderr: &stderr}, nil)

	code := runTool(context.Background(), sup, supervisor.Request{
		Tool: "sh",
		Args: []string{"-c", "echo out; echo err >&2; exit 4"},
	}, logging.GetLogger("run"))

	if code != 4 {
		t.Errorf("exit code = %d, want 4", code)
	}
	if stdout.String() != "out\n" || stderr.String() != "err\n" {
		t.Errorf("stdout = %q, stderr = %q", stdout.String(), stderr.String())
	}
}

func TestRunToolStartFailure(t *testing.T) {
	t.Setenv(config.SecretEnv, "")
	sup := NewSupervisor(testOptions(t), consoleOutput{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}, nil)

	code := runTool(context.Background(), sup, supervisor.Request{Tool: "true", Elevated: true}, logging.GetLogger("run"))
	if code != exitStartFailed {
		t.Errorf("exit code = %d, want %d", code, exitStartFailed)
	}
}

func TestRunToolCancelled(t *testing.T) {
	sup := NewSupervisor(testOptions(t), consoleOutput{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	code := runTool(ctx, sup, supervisor.Request{Tool: "sleep", Args: []string{"10"}}, logging.GetLogger("run"))
	if code != exitCancelled {
		t.Errorf("exit code = %d, want %d", code, exitCancelled)
	}
}

func TestLocateCmd(t *testing.T) {
	opts := testOptions(t)
	tool := filepath.Join(opts.ToolsFallbackDir, "onecc")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", t.TempDir())

	var out bytes.Buffer
	cmd := CreateLocateCmd(func() *config.Options { return opts })
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"onecc"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() = %v", err)
	}

	want, err := filepath.EvalSymlinks(tool)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}

	cmd.SetArgs([]string{"missing-tool"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error for missing tool")
	}
}

func TestVersionCmdJSON(t *testing.T) {
	var out bytes.Buffer
	cmd := CreateVersionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}

	var info map[string]string
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if info["version"] == "" || info["go_version"] == "" {
		t.Errorf("info = %v", info)
	}
}
