package supervisor

import (
	"bytes"
	"sync"

	"github.com/smazurov/toolrunner/internal/logging"
)

// maxLineLength caps a line without a newline; longer runs are emitted in pieces.
const maxLineLength = 64 * 1024

// OutputHandler receives output lines from the subprocess.
// Implementations can forward output to a UI, a log file, etc.
type OutputHandler interface {
	HandleLine(source, line string)
}

// loggerOutput forwards lines to a logger when no handler is configured.
type loggerOutput struct {
	logger logging.Logger
}

func (o loggerOutput) HandleLine(source, line string) {
	o.logger.Info(line, "source", source)
}

// lineWriter is the io.Writer given to exec.Cmd. It splits the byte stream
// into lines and emits each complete line in arrival order.
type lineWriter struct {
	mu     sync.Mutex
	source string
	emit   func(source, line string)
	buf    []byte
}

func newLineWriter(source string, emit func(source, line string)) *lineWriter {
	return &lineWriter{source: source, emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)

	start := 0
	for {
		i := bytes.IndexByte(w.buf[start:], '\n')
		if i < 0 {
			break
		}
		w.emit(w.source, string(bytes.TrimSuffix(w.buf[start:start+i], []byte{'\r'})))
		start += i + 1
	}
	w.buf = append(w.buf[:0], w.buf[start:]...)

	for len(w.buf) >= maxLineLength {
		w.emit(w.source, string(w.buf[:maxLineLength]))
		w.buf = append(w.buf[:0], w.buf[maxLineLength:]...)
	}
	return len(p), nil
}

// Flush emits a trailing partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.emit(w.source, string(w.buf))
		w.buf = w.buf[:0]
	}
}
