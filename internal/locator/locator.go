// Package locator finds companion tools on the local filesystem.
package locator

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/smazurov/toolrunner/internal/logging"
)

// DefaultFallbackDir is where ONE toolchain packages install their binaries.
const DefaultFallbackDir = "/usr/share/one/bin"

// Locator resolves tool names to canonical executable paths.
type Locator struct {
	fallbackDir string
	logger      logging.Logger
	lookPath    func(file string) (string, error)
}

// New creates a locator that falls back to fallbackDir when a tool is not on
// PATH. An empty fallbackDir uses DefaultFallbackDir.
func New(fallbackDir string, logger logging.Logger) *Locator {
	if fallbackDir == "" {
		fallbackDir = DefaultFallbackDir
	}
	if logger == nil {
		logger = logging.GetLogger("locator")
	}
	return &Locator{
		fallbackDir: fallbackDir,
		logger:      logger,
		lookPath:    exec.LookPath,
	}
}

// Locate returns the real path of name with symlinks resolved. The bool is
// false when the tool is neither on PATH nor in the fallback directory; callers
// treat that as the feature being unavailable.
func (l *Locator) Locate(name string) (string, bool) {
	path, err := l.lookPath(name)
	if err != nil {
		path = filepath.Join(l.fallbackDir, name)
	}
	l.logger.Debug("Tool path", "tool", name, "path", path)

	if !exists(path) {
		l.logger.Info("Tool not found", "tool", name)
		return "", false
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil || !exists(resolved) {
		l.logger.Info("Tool not found", "tool", name, "path", path)
		return "", false
	}

	if abs, err := filepath.Abs(resolved); err == nil {
		resolved = abs
	}
	l.logger.Debug("Tool real path", "tool", name, "path", resolved)
	return resolved, true
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
