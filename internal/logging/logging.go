// Package logging writes one JSON object per line, the same shape the
// migration runner and tracing bootstrap have always used.
package logging

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// Logger emits structured JSON log lines. It is safe for concurrent use.
type Logger struct {
	mu        *sync.Mutex
	w         io.Writer
	loc       *time.Location
	component string
}

// New returns a Logger writing to w with timestamps rendered in loc.
func New(w io.Writer, loc *time.Location) *Logger {
	if loc == nil {
		loc = time.UTC
	}
	return &Logger{mu: &sync.Mutex{}, w: w, loc: loc}
}

// Default logs to stdout in UTC.
func Default() *Logger {
	return New(os.Stdout, time.UTC)
}

// Discard drops everything.
func Discard() *Logger {
	return New(io.Discard, time.UTC)
}

// With returns a child logger that stamps every entry with component.
// Children share the parent's writer lock.
func (l *Logger) With(component string) *Logger {
	child := *l
	child.component = component
	return &child
}

// Log writes data as a single JSON line. "ts" is always set; "level" defaults
// to "error" when status is "error" and to "info" otherwise.
func (l *Logger) Log(data map[string]any) {
	entry := make(map[string]any, len(data)+3)
	for k, v := range data {
		entry[k] = v
	}
	entry["ts"] = time.Now().In(l.loc).Format(time.RFC3339Nano)
	if _, ok := entry["level"]; !ok {
		if entry["status"] == "error" {
			entry["level"] = "error"
		} else {
			entry["level"] = "info"
		}
	}
	if _, ok := entry["component"]; !ok && l.component != "" {
		entry["component"] = l.component
	}

	b, err := json.Marshal(entry)
	if err != nil {
		b, _ = json.Marshal(map[string]any{
			"ts":    entry["ts"],
			"level": "error",
			"msg":   "failed to marshal log entry",
			"error": err.Error(),
		})
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.w.Write(append(b, '\n'))
}

// Info logs event at info level.
func (l *Logger) Info(event string, fields map[string]any) {
	l.Log(withEvent(event, "info", fields))
}

// Warn logs event at warn level.
func (l *Logger) Warn(event string, fields map[string]any) {
	l.Log(withEvent(event, "warn", fields))
}

// Error logs event at error level, attaching err when non-nil.
func (l *Logger) Error(event string, err error, fields map[string]any) {
	entry := withEvent(event, "error", fields)
	entry["status"] = "error"
	if err != nil {
		entry["error_message"] = err.Error()
	}
	l.Log(entry)
}

func withEvent(event, level string, fields map[string]any) map[string]any {
	entry := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		entry[k] = v
	}
	entry["event"] = event
	entry["level"] = level
	return entry
}
