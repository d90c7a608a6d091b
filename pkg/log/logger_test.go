package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newBufLogger(t *testing.T, f Formatter, opts ...LoggerOption) (Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	all := append([]LoggerOption{WithLevel(DebugLevel), WithFormatter(f), WithOutput(NewWriterOutput(buf))}, opts...)
	return NewLogger(all...), buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseLevel(%q) err=%v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v want %v", tt.in, got, tt.want)
		}
	}
}

func TestJSONFormatterFields(t *testing.T) {
	l, buf := newBufLogger(t, &JSONFormatter{})
	l.With(Component("redisq")).Warn("poll failed", Str("queue_id", "q1"), Err(errors.New("boom")))

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v (%s)", err, buf.String())
	}
	if out["msg"] != "poll failed" || out["level"] != "WARN" {
		t.Fatalf("unexpected entry: %v", out)
	}
	if out["component"] != "redisq" || out["queue_id"] != "q1" || out["error"] != "boom" {
		t.Fatalf("missing fields: %v", out)
	}
	if c, _ := out["caller"].(string); !strings.Contains(c, "logger_test.go") {
		t.Fatalf("caller should point at the test, got %q", c)
	}
}

func TestTextFormatterSortedKeys(t *testing.T) {
	l, buf := newBufLogger(t, &TextFormatter{})
	l.Info("started", Str("http", ":8080"), Int("b", 2), Str("a", "x y"))
	line := buf.String()
	if !strings.Contains(line, `INFO  started a="x y" b=2 http=:8080`) {
		t.Fatalf("unexpected line: %q", line)
	}
}

func TestLevelGateSharedWithChildren(t *testing.T) {
	l, buf := newBufLogger(t, &TextFormatter{})
	child := l.WithComponent("child")
	l.SetLevel(ErrorLevel)
	child.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing logged, got %q", buf.String())
	}
	child.Error("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected error to be logged")
	}
}

func TestRedactionAndSampling(t *testing.T) {
	l, buf := newBufLogger(t, &TextFormatter{}, WithRedactions("queue_id"), WithSampling(0, 100))
	for i := 0; i < 5; i++ {
		l.Info("tick", Str("queue_id", "secret"))
	}
	out := buf.String()
	if strings.Count(out, "tick") != 1 {
		t.Fatalf("expected sampling to keep one entry, got %q", out)
	}
	if strings.Contains(out, "secret") || !strings.Contains(out, "[REDACTED]") {
		t.Fatalf("expected redaction, got %q", out)
	}
}

func TestWithContextRequestID(t *testing.T) {
	l, buf := newBufLogger(t, &JSONFormatter{})
	ctx := ContextWithRequestID(context.Background(), "req-1")
	l.WithContext(ctx).Info("hello")
	if !strings.Contains(buf.String(), `"request_id":"req-1"`) {
		t.Fatalf("missing request id: %s", buf.String())
	}
}

func TestApplyConfig(t *testing.T) {
	if _, err := ApplyConfig(&Config{Level: "error", Format: "text"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := ApplyConfig(&Config{Format: "xml"}); err == nil {
		t.Fatalf("expected unknown format error")
	}
	if _, err := ApplyConfig(&Config{Outputs: []OutputConfig{{Type: "file"}}}); err == nil {
		t.Fatalf("expected missing path error")
	}
	l, err := ApplyConfig(&Config{Level: "warn", Outputs: []OutputConfig{{Type: "null"}}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if l.GetLevel() != WarnLevel {
		t.Fatalf("level: %v", l.GetLevel())
	}
}

func TestToStdLogger(t *testing.T) {
	l, buf := newBufLogger(t, &TextFormatter{})
	std := ToStdLogger(l, WarnLevel)
	std.Printf("pebble says %d", 42)
	if !strings.Contains(buf.String(), "WARN  pebble says 42") {
		t.Fatalf("unexpected: %q", buf.String())
	}
}
