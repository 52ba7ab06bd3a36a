package supervisor

import (
	"strings"
	"testing"
)

type collected struct {
	lines []string
}

func (c *collected) emit(source, line string) {
	c.lines = append(c.lines, source+":"+line)
}

func TestLineWriterSplitsAcrossWrites(t *testing.T) {
	var c collected
	w := newLineWriter("stdout", c.emit)

	for _, chunk := range []string{"fir", "st\nsec", "ond\r\n", "\nthird"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write(%q) error = %v", chunk, err)
		}
	}
	if len(c.lines) != 3 {
		t.Fatalf("before Flush got %d lines: %q", len(c.lines), c.lines)
	}
	w.Flush()
	w.Flush()

	want := []string{"stdout:first", "stdout:second", "stdout:", "stdout:third"}
	if strings.Join(c.lines, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", c.lines, want)
	}
}

func TestLineWriterCapsLongLines(t *testing.T) {
	var c collected
	w := newLineWriter("stderr", c.emit)

	long := strings.Repeat("x", maxLineLength+10)
	if _, err := w.Write([]byte(long)); err != nil {
		t.Fatal(err)
	}
	w.Flush()

	if len(c.lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(c.lines))
	}
	if got := len(c.lines[0]) - len("stderr:"); got != maxLineLength {
		t.Errorf("first piece length = %d, want %d", got, maxLineLength)
	}
	if c.lines[1] != "stderr:"+strings.Repeat("x", 10) {
		t.Errorf("second piece = %q", c.lines[1])
	}
}
