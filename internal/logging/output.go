package logging

import (
	"io"
	"sync"
	"time"
)

// OutputLevel is the LogEntry level used for raw child process output.
const OutputLevel = "output"

// OutputLog is the append-only sink for child process output. Lines from
// stdout and stderr are written to the same writer in arrival order; the
// source is kept only in the ring buffer entry.
type OutputLog struct {
	mu       sync.Mutex
	w        io.Writer
	buffer   *RingBuffer
	callback LogCallback
}

// NewOutputLog creates an output sink writing to w and remembering the last
// size lines. A nil writer only records into the buffer.
func NewOutputLog(w io.Writer, size int) *OutputLog {
	return &OutputLog{w: w, buffer: NewRingBuffer(size)}
}

// SetCallback registers a function called for every recorded line.
func (o *OutputLog) SetCallback(callback LogCallback) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.callback = callback
}

// HandleLine records one line of output. It satisfies supervisor.OutputHandler.
func (o *OutputLog) HandleLine(source, line string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.w != nil {
		_, _ = io.WriteString(o.w, line+"\n")
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     OutputLevel,
		Module:    source,
		Message:   line,
	}
	o.buffer.Write(entry)
	if o.callback != nil {
		o.callback(entry)
	}
}

// AppendLine writes a bare line, used for the blank separator after a run.
func (o *OutputLog) AppendLine(line string) {
	o.HandleLine("", line)
}

// Lines returns the buffered output in arrival order.
func (o *OutputLog) Lines() []LogEntry {
	return o.buffer.ReadAll()
}
