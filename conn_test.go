package mailbox

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestDialUnreachableServer(t *testing.T) {
	cfg := Config{
		Host:        "127.0.0.1",
		Port:        1,
		Username:    "a@x.com",
		Password:    "p",
		DialTimeout: 2 * time.Second,
	}

	c, err := dialIMAP(context.Background(), cfg, "TEST")
	if err == nil {
		_ = c.close()
		t.Fatal("dialIMAP() succeeded against a closed port")
	}
}

// captureLogger records every entry for assertions.
type captureLogger struct {
	lines []string
}

func (c *captureLogger) record(msg string, args ...any) {
	c.lines = append(c.lines, msg+" "+fmt.Sprint(args...))
}

func (c *captureLogger) Debug(msg string, args ...any) { c.record(msg, args...) }
func (c *captureLogger) Info(msg string, args ...any)  { c.record(msg, args...) }
func (c *captureLogger) Warn(msg string, args ...any)  { c.record(msg, args...) }
func (c *captureLogger) Error(msg string, args ...any) { c.record(msg, args...) }
func (c *captureLogger) WithAttrs(args ...any) Logger  { return c }

func TestTraceWriterMasksPassword(t *testing.T) {
	capture := &captureLogger{}
	SetLogger(capture)
	defer SetLogger(nil)

	Verbose = true
	defer func() { Verbose = false }()

	w := &traceWriter{sessionID: "TEST", secret: "hunter2"}
	line := "a1 LOGIN a@x.com hunter2\r\n"
	n, err := w.Write([]byte(line))
	if err != nil || n != len(line) {
		t.Fatalf("Write() = (%d, %v), want (%d, nil)", n, err, len(line))
	}

	if len(capture.lines) != 1 {
		t.Fatalf("logged %d lines, want 1", len(capture.lines))
	}
	if strings.Contains(capture.lines[0], "hunter2") {
		t.Errorf("trace leaked the password: %q", capture.lines[0])
	}
	if !strings.Contains(capture.lines[0], "****") {
		t.Errorf("trace did not mask the password: %q", capture.lines[0])
	}
}
