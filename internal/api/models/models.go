package models

import (
	"time"

	"github.com/smazurov/toolrunner/internal/metrics"
	"github.com/smazurov/toolrunner/internal/supervisor"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"a1b2c3d" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-10-01T12:00:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"OS and architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// Run models
type RunRequestData struct {
	Name     string   `json:"name,omitempty" example:"onecc import" doc:"Display name used in logs"`
	Tool     string   `json:"tool" minLength:"1" example:"onecc" doc:"Tool path, or a bare name resolved by the tool locator"`
	Args     []string `json:"args,omitempty" doc:"Arguments passed to the tool"`
	Dir      string   `json:"dir,omitempty" example:"/home/user/project" doc:"Working directory"`
	Elevated bool     `json:"elevated,omitempty" doc:"Run through the elevation helper"`
}

type RunRequest struct {
	Body RunRequestData
}

type RunData struct {
	ID         string              `json:"id" example:"5f0c2d1e-8a43-4c0e-9f3b-2a7d1e6b9c10" doc:"Run identifier"`
	Name       string              `json:"name" example:"onecc import" doc:"Display name"`
	Tool       string              `json:"tool" example:"/usr/share/one/bin/onecc" doc:"Executable that was started"`
	Args       []string            `json:"args" doc:"Tool arguments"`
	Elevated   bool                `json:"elevated" doc:"Whether the run went through the elevation helper"`
	PID        int                 `json:"pid" example:"4242" doc:"Process ID"`
	StartedAt  time.Time           `json:"started_at" doc:"Spawn time"`
	FinishedAt *time.Time          `json:"finished_at,omitempty" doc:"Resolution time, absent while running"`
	Outcome    *supervisor.Outcome `json:"outcome,omitempty" doc:"Resolved outcome, absent while running"`
	Cleanup    string              `json:"cleanup,omitempty" example:"removed" doc:"Askpass cleanup result of an elevated run"`
}

type RunResponse struct {
	Body RunData
}

type RunStatusData struct {
	Running bool             `json:"running" doc:"Whether a child is alive and not being stopped"`
	Run     *RunData         `json:"run,omitempty" doc:"Current or most recent run"`
	Totals  metrics.Snapshot `json:"totals" doc:"Run counters since process start"`
}

type RunStatusResponse struct {
	Body RunStatusData
}

type KillData struct {
	Killed bool `json:"killed" doc:"Whether the termination request was delivered"`
}

type KillResponse struct {
	Body KillData
}

// Tool models
type ToolInput struct {
	Name string `path:"name" example:"onecc" doc:"Tool name"`
}

type ToolData struct {
	Name string `json:"name" example:"onecc" doc:"Requested name"`
	Path string `json:"path" example:"/usr/share/one/bin/onecc" doc:"Absolute, link-free path"`
}

type ToolResponse struct {
	Body ToolData
}

// Log models
type LogsInput struct {
	Source string `query:"source" enum:"logs,output" default:"logs" doc:"Application logs or raw tool output"`
	Limit  int    `query:"limit" minimum:"0" default:"0" doc:"Return only the newest entries, 0 for all"`
}

type LogEntryData struct {
	Timestamp  time.Time      `json:"timestamp" doc:"Entry time"`
	Level      string         `json:"level" example:"info" doc:"Log level, or output for tool lines"`
	Module     string         `json:"module" example:"supervisor" doc:"Module, or stdout and stderr for tool lines"`
	Message    string         `json:"message" doc:"Message or output line"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

type LogsData struct {
	Entries []LogEntryData `json:"entries" doc:"Entries, oldest first"`
	Count   int            `json:"count" doc:"Number of entries"`
}

type LogsResponse struct {
	Body LogsData
}
