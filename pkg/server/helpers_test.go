package server

import (
	"bufio"
	"net"
	"testing"
	"time"
)

// lineCollector drains one side of a net.Pipe in the background and hands
// lines back to the test one at a time.
type lineCollector struct {
	lines chan string
}

func newLineCollector(conn net.Conn) *lineCollector {
	lc := &lineCollector{lines: make(chan string, 64)}
	go func() {
		scanner := bufio.NewScanner(conn)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			lc.lines <- scanner.Text()
		}
		close(lc.lines)
	}()
	return lc
}

// next blocks for the next line, failing the test after a second.
func (lc *lineCollector) next(t *testing.T) string {
	t.Helper()
	select {
	case line, ok := <-lc.lines:
		if !ok {
			t.Fatal("connection closed before expected line")
		}
		return line
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for line")
		return ""
	}
}

// assertSilent fails if a line arrives within a short grace period.
func (lc *lineCollector) assertSilent(t *testing.T) {
	t.Helper()
	select {
	case line, ok := <-lc.lines:
		if ok {
			t.Fatalf("unexpected line: %q", line)
		}
	case <-time.After(50 * time.Millisecond):
	}
}
