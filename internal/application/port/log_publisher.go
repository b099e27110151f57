package port

import "github.com/GanizaniSitara/controls-ux/pkg/logger"

// LogLevel is the severity of a shipped log entry.
type LogLevel = logger.EntryLevel

const (
	LogLevelDebug = logger.EntryDebug
	LogLevelInfo  = logger.EntryInfo
	LogLevelWarn  = logger.EntryWarn
	LogLevelError = logger.EntryError
)

// LogEntry is one structured log line mirrored to an external sink.
type LogEntry = logger.Entry

// LogPublisher ships log entries off the process. The logger calls it for every
// emitted line once installed with SetLogPublisher.
type LogPublisher = logger.Publisher
