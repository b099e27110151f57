package logger

import (
	"context"
	"time"
)

// EntryLevel is the severity of a shipped log entry.
type EntryLevel string

const (
	EntryDebug EntryLevel = "DEBUG"
	EntryInfo  EntryLevel = "INFO"
	EntryWarn  EntryLevel = "WARN"
	EntryError EntryLevel = "ERROR"
)

// Entry is one structured log line mirrored to an external sink.
type Entry struct {
	Timestamp time.Time
	Level     EntryLevel
	Message   string
	Fields    map[string]interface{}
}

// Publisher ships log entries off the process.
type Publisher interface {
	// Publish enqueues a single entry.
	Publish(ctx context.Context, entry Entry) error

	// PublishBatch sends entries in as few requests as the sink allows.
	PublishBatch(ctx context.Context, entries []Entry) error

	// Flush sends anything still buffered. Called on shutdown.
	Flush(ctx context.Context) error
}
