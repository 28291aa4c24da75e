package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventLogger appends memory lifecycle events to a JSONL file.
//
// Each line is a JSON object with a timestamp, an event name, and an
// event-specific data payload:
//
//	{"timestamp":"2026-01-02T15:04:05Z","event":"create_result","data":{...}}
//
// Logging failures are silent; an audit trail must never fail a memory
// operation.
type EventLogger struct {
	mu   sync.Mutex
	path string
}

type logEvent struct {
	Timestamp string                 `json:"timestamp"`
	Event     string                 `json:"event"`
	Data      map[string]interface{} `json:"data"`
}

// NewEventLogger creates an event logger writing to path, creating parent
// directories as needed.
func NewEventLogger(path string) (*EventLogger, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("NewEventLogger: %w", err)
		}
	}
	return &EventLogger{path: path}, nil
}

// Log appends one event line. A nil logger is a no-op, so callers never need
// to guard the opt-in.
func (l *EventLogger) Log(event string, data map[string]interface{}) {
	if l == nil {
		return
	}

	line, err := json.Marshal(logEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Event:     event,
		Data:      data,
	})
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	_, _ = f.Write(append(line, '\n'))
}
