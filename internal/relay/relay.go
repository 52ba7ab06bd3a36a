package relay

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/smazurov/toolrunner/internal/logging"
	"golang.org/x/sys/unix"
)

const (
	// appDirName is the per-user directory under the user cache dir.
	appDirName = "toolrunner"
	// Names are deliberately bland; nothing on disk or in logs says what the script prints.
	scratchDirName = "rtmp"
	scriptFileName = "ap.sh"

	defaultRetryDelay = 100 * time.Millisecond
)

// ErrInitFailed is returned when the scratch directory cannot be resolved or created.
var ErrInitFailed = errors.New("relay init failed")

// RemoveResult reports what Script.Remove observed.
type RemoveResult int

const (
	// RemoveNone is the zero value: no script was created, nothing to remove.
	RemoveNone RemoveResult = iota
	// Removed means the scratch directory was deleted and is confirmed gone.
	Removed
	// NotConfirmed means the scratch directory still exists after all attempts.
	NotConfirmed
	// AlreadyAbsent means the scratch directory was gone before removal started.
	AlreadyAbsent
)

func (r RemoveResult) String() string {
	switch r {
	case Removed:
		return "removed"
	case NotConfirmed:
		return "not_confirmed"
	case AlreadyAbsent:
		return "already_absent"
	default:
		return "none"
	}
}

// Relay creates askpass scripts under a base directory.
type Relay struct {
	baseDir    string
	logger     logging.Logger
	retryDelay time.Duration

	// removeAll is os.RemoveAll; tests swap it to inject failures.
	removeAll func(path string) error
}

// New creates a relay rooted at baseDir. An empty baseDir resolves to the
// user cache directory when the first script is created.
func New(baseDir string, logger logging.Logger) *Relay {
	if logger == nil {
		logger = logging.GetLogger("relay")
	}
	return &Relay{
		baseDir:    baseDir,
		logger:     logger,
		retryDelay: defaultRetryDelay,
		removeAll:  os.RemoveAll,
	}
}

// ScratchDir returns the directory scripts are written to.
func (r *Relay) ScratchDir() (string, error) {
	base := r.baseDir
	if base == "" {
		cache, err := os.UserCacheDir()
		if err != nil {
			return "", fmt.Errorf("%w: resolving cache dir: %w", ErrInitFailed, err)
		}
		base = filepath.Join(cache, appDirName)
	}
	return filepath.Join(base, scratchDirName), nil
}

// Create writes a fresh script printing secret and returns its handle.
// It blocks while another script in the same scratch directory is open.
// The caller must Close the script once it is done with it.
func (r *Relay) Create(ctx context.Context, secret string) (*Script, error) {
	dir, err := r.ScratchDir()
	if err != nil {
		return nil, err
	}

	release, err := acquire(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("waiting for scratch dir: %w", err)
	}

	path, err := r.write(dir, secret)
	if err != nil {
		release()
		return nil, err
	}

	r.logger.Info("Scratch dir created", "dir", dir)
	return &Script{relay: r, path: path, dir: dir, release: release}, nil
}

func (r *Relay) write(dir, secret string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0o700); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInitFailed, err)
	}
	if err := os.Mkdir(dir, 0o700); err != nil && !errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("%w: %w", ErrInitFailed, err)
	}
	// A pre-existing dir may carry looser bits from elsewhere
	if err := os.Chmod(dir, 0o700); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInitFailed, err)
	}

	path := filepath.Join(dir, scriptFileName)

	// Never reuse a stale or tampered script
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("removing stale script: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o700)
	if err != nil {
		return "", fmt.Errorf("creating script: %w", err)
	}

	body := scriptBody(secret)
	defer clear(body)

	if err := writeAndSync(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("closing script: %w", err)
	}
	return path, nil
}

func writeAndSync(f *os.File, body []byte) error {
	// umask can only strip bits; chmod makes the mode exact
	if err := f.Chmod(0o700); err != nil {
		return fmt.Errorf("setting script mode: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		return fmt.Errorf("writing script: %w", err)
	}
	if err := unix.Fdatasync(int(f.Fd())); err != nil {
		return fmt.Errorf("syncing script: %w", err)
	}
	return nil
}

// scriptBody renders the askpass script. The secret is single-quoted so the
// shell prints it byte for byte.
func scriptBody(secret string) []byte {
	const head, tail = "#!/bin/sh\nprintf '%s\\n' '", "'\n"
	size := len(head) + len(secret) + len(tail)
	for i := 0; i < len(secret); i++ {
		if secret[i] == '\'' {
			size += 3
		}
	}
	// Sized up front so append never leaves a stray copy behind
	body := make([]byte, 0, size)
	body = append(body, head...)
	for i := 0; i < len(secret); i++ {
		if secret[i] == '\'' {
			body = append(body, `'\''`...)
			continue
		}
		body = append(body, secret[i])
	}
	return append(body, tail...)
}

// Script is a created askpass script.
type Script struct {
	relay   *Relay
	path    string
	dir     string
	release func()

	mu sync.Mutex
}

// Path returns the script path, the value for SUDO_ASKPASS.
func (s *Script) Path() string { return s.path }

// Dir returns the scratch directory holding the script.
func (s *Script) Dir() string { return s.dir }

// Remove waits delay, then deletes the scratch directory, retrying up to
// retries more times with a linearly growing pause. A directory that is
// already gone returns AlreadyAbsent at once. Cancelling ctx cuts the
// initial wait short but the removal still happens.
func (s *Script) Remove(ctx context.Context, delay time.Duration, retries int) RemoveResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.relay.logger

	if !exists(s.dir) {
		logger.Info("No scratch dir found")
		return AlreadyAbsent
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	for attempt := 0; attempt <= retries; attempt++ {
		err := s.relay.removeAll(s.dir)
		if err == nil {
			break
		}
		logger.Debug("Scratch dir removal failed", "attempt", attempt+1, "error", err)
		if attempt < retries {
			time.Sleep(s.relay.retryDelay * time.Duration(attempt+1))
		}
	}

	if exists(s.dir) {
		logger.Warn("Failed to remove scratch dir", "dir", s.dir)
		return NotConfirmed
	}
	logger.Info("Scratch dir removed")
	return Removed
}

// Close releases the scratch directory for the next Create. It does not
// remove anything and is safe to call more than once.
func (s *Script) Close() {
	s.release()
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
