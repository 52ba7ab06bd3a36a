package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

// resetState drops every module logger so each test starts uninitialized.
func resetState(t *testing.T) {
	t.Helper()
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	logBuffer = nil
	logCallback = nil
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetState(t)

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"supervisor": "debug",
			"api":        "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"supervisor", true, true, true},
		{"api", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, got, tt.wantWarn)
			}
		})
	}
}

func TestLoggerCreatedBeforeInitialize(t *testing.T) {
	resetState(t)

	early := GetLogger("relay")
	if early.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("uninitialized logger should default to info")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"relay": "debug"}})

	if !GetLogger("relay").Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("relay logger should be rebuilt at debug after Initialize")
	}
}

func TestUpdateLevels(t *testing.T) {
	resetState(t)
	Initialize(Config{Level: "info"})

	logger := GetLogger("supervisor")
	if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug disabled before update")
	}

	UpdateLevels(Config{Level: "info", Modules: map[string]string{"supervisor": "debug"}})
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug enabled after UpdateLevels")
	}

	UpdateLevels(Config{Level: "error"})
	if logger.Handler().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("expected warn disabled after global level raised to error")
	}
}

func TestBufferHandlerRecordsModule(t *testing.T) {
	resetState(t)
	Initialize(Config{Level: "debug"})

	GetLogger("relay").Info("Scratch dir removed", "attempts", 2)

	var found *LogEntry
	for _, e := range GetBuffer().ReadAll() {
		if e.Message == "Scratch dir removed" {
			found = &e
			break
		}
	}
	if found == nil {
		t.Fatal("entry not found in ring buffer")
	}
	if found.Module != "relay" {
		t.Errorf("Module = %q, want relay", found.Module)
	}
	if found.Attributes["attempts"] != int64(2) {
		t.Errorf("attempts = %v (%T), want 2", found.Attributes["attempts"], found.Attributes["attempts"])
	}
}

func TestLogCallback(t *testing.T) {
	resetState(t)
	Initialize(Config{Level: "info"})

	var messages []string
	SetLogCallback(func(e LogEntry) { messages = append(messages, e.Message) })
	defer SetLogCallback(nil)

	GetLogger("api").Warn("Auth disabled")
	if len(messages) != 1 || messages[0] != "Auth disabled" {
		t.Errorf("callback messages = %v", messages)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"loud", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got := parseLevel(tt.in)
		if (got != nil) != tt.ok {
			t.Errorf("parseLevel(%q) ok = %v, want %v", tt.in, got != nil, tt.ok)
			continue
		}
		if got != nil && *got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, *got, tt.want)
		}
	}
}

func TestMultiHandlerFanOut(t *testing.T) {
	var a, b bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	logger := slog.New(h)

	logger.Info("first")
	logger.Error("second")

	if !strings.Contains(a.String(), "first") || !strings.Contains(a.String(), "second") {
		t.Errorf("debug handler missing records: %q", a.String())
	}
	if strings.Contains(b.String(), "first") || !strings.Contains(b.String(), "second") {
		t.Errorf("error handler filtered wrong: %q", b.String())
	}
}
