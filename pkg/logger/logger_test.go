package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

type capturePublisher struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (c *capturePublisher) Publish(_ context.Context, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
	return c.err
}

func (c *capturePublisher) PublishBatch(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if err := c.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (c *capturePublisher) Flush(context.Context) error { return nil }

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{"debug", []string{"[DEBUG]", "[INFO]", "[WARN]", "[ERROR]"}},
		{"info", []string{"[INFO]", "[WARN]", "[ERROR]"}},
		{"warning", []string{"[WARN]", "[ERROR]"}},
		{"error", []string{"[ERROR]"}},
		{"bogus", []string{"[INFO]", "[WARN]", "[ERROR]"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewWithWriter(tt.level, &buf)
			l.Debug("d")
			l.Info("i")
			l.Warn("w")
			l.Error("e", nil)

			out := buf.String()
			if got := strings.Count(out, "\n"); got != len(tt.want) {
				t.Fatalf("got %d lines, want %d:\n%s", got, len(tt.want), out)
			}
			for _, tag := range tt.want {
				if !strings.Contains(out, tag) {
					t.Errorf("missing %s in:\n%s", tag, out)
				}
			}
		})
	}
}

func TestLogger_FormatsKeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("info", &buf)

	l.Error("Refresh failed", errors.New("timeout"), "provider", "security_v1")

	out := buf.String()
	if !strings.Contains(out, "[ERROR] Refresh failed | provider=security_v1 error=timeout") {
		t.Errorf("unexpected line: %q", out)
	}
}

func TestLogger_NilIsSilent(t *testing.T) {
	var l *Logger
	l.Info("ignored", "k", "v")
	l.Error("ignored", errors.New("x"))
	l.SetLogPublisher(&capturePublisher{})
}

func TestLogger_MirrorsEntriesToPublisher(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("info", &buf)
	pub := &capturePublisher{}
	l.SetLogPublisher(pub)

	l.Debug("below level")
	l.Warn("Provider skipped", "provider", "inventory", "rows", 0)

	if len(pub.entries) != 1 {
		t.Fatalf("published %d entries, want 1", len(pub.entries))
	}
	entry := pub.entries[0]
	if entry.Level != EntryWarn || entry.Message != "Provider skipped" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Fields["provider"] != "inventory" || entry.Fields["rows"] != 0 {
		t.Errorf("unexpected fields: %+v", entry.Fields)
	}
	if entry.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}

	l.SetLogPublisher(nil)
	l.Info("after reset")
	if len(pub.entries) != 1 {
		t.Errorf("publisher still called after reset")
	}
}

func TestLogger_PublishFailureIsReportedLocally(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("info", &buf)
	l.SetLogPublisher(&capturePublisher{err: errors.New("throttled")})

	l.Info("Cache refreshed")

	out := buf.String()
	if !strings.Contains(out, "[INFO] Cache refreshed") {
		t.Errorf("original line missing: %q", out)
	}
	if !strings.Contains(out, "log publish failed | error=throttled") {
		t.Errorf("publish failure not reported: %q", out)
	}
}
