package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger is a leveled key/value logger. A nil *Logger discards everything,
// so optional loggers need no guards at call sites.
type Logger struct {
	logger *log.Logger
	level  Level

	mu        sync.RWMutex
	publisher Publisher
}

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]EntryLevel{
	DEBUG: EntryDebug,
	INFO:  EntryInfo,
	WARN:  EntryWarn,
	ERROR: EntryError,
}

const publishTimeout = 2 * time.Second

// New creates a logger writing to stdout.
func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(level string, w io.Writer) *Logger {
	return &Logger{
		logger: log.New(w, "", 0),
		level:  parseLevel(level),
	}
}

func parseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// SetLogPublisher mirrors every emitted entry to an external log sink.
func (l *Logger) SetLogPublisher(publisher Publisher) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.publisher = publisher
	l.mu.Unlock()
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	if l != nil && l.level <= DEBUG {
		l.log(DEBUG, msg, args...)
	}
}

func (l *Logger) Info(msg string, args ...interface{}) {
	if l != nil && l.level <= INFO {
		l.log(INFO, msg, args...)
	}
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	if l != nil && l.level <= WARN {
		l.log(WARN, msg, args...)
	}
}

func (l *Logger) Error(msg string, err error, args ...interface{}) {
	if l != nil && l.level <= ERROR {
		if err != nil {
			args = append(args, "error", err.Error())
		}
		l.log(ERROR, msg, args...)
	}
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	now := time.Now()

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s", now.Format("2006-01-02 15:04:05"), levelNames[level], msg)

	fields := make(map[string]interface{}, len(args)/2)
	if len(args) > 1 {
		b.WriteString(" |")
		for i := 0; i+1 < len(args); i += 2 {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			fields[fmt.Sprint(args[i])] = args[i+1]
		}
	}

	l.logger.Println(b.String())
	l.publish(Entry{
		Timestamp: now,
		Level:     levelNames[level],
		Message:   msg,
		Fields:    fields,
	})
}

func (l *Logger) publish(entry Entry) {
	l.mu.RLock()
	publisher := l.publisher
	l.mu.RUnlock()
	if publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := publisher.Publish(ctx, entry); err != nil {
		l.logger.Printf("[%s] [%s] log publish failed | error=%v", time.Now().Format("2006-01-02 15:04:05"), EntryWarn, err)
	}
}
