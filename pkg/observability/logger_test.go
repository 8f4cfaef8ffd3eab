package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tradegate/tradegate/pkg/contextkeys"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		if buf.Len() > 0 {
			t.Error("Debug message should not be logged at Info level")
		}
	})

	t.Run("info logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")
		if buf.Len() == 0 {
			t.Fatal("Info message should be logged at Info level")
		}

		var entry LogEntry
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("Failed to unmarshal log entry: %v", err)
		}

		if entry.Level != "INFO" {
			t.Errorf("Expected level INFO, got %s", entry.Level)
		}
		if entry.Message != "info message" {
			t.Errorf("Expected message 'info message', got %s", entry.Message)
		}
	})

	t.Run("error logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Error("error message")
		if buf.Len() == 0 {
			t.Error("Error message should be logged at Info level")
		}
	})
}

func TestLogger_WithField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("tenant_id", "t-1").Info("scoped message")

	if !strings.Contains(buf.String(), `"tenant_id":"t-1"`) {
		t.Errorf("Expected tenant_id field in output, got %s", buf.String())
	}
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(errTest).Error("operation failed")

	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("Expected error text in output, got %s", buf.String())
	}
}

type testError string

func (e testError) Error() string { return string(e) }

var errTest = testError("boom")

func TestFromContext_AnnotatesRequestAndUser(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = context.WithValue(ctx, contextkeys.RequestIDKey, "req-123")
	ctx = context.WithValue(ctx, contextkeys.UserIDKey, "u-456")

	FromContext(ctx).Info("annotated")

	out := buf.String()
	if !strings.Contains(out, "req-123") {
		t.Errorf("Expected request_id in output, got %s", out)
	}
	if !strings.Contains(out, "u-456") {
		t.Errorf("Expected user_id in output, got %s", out)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DebugLevel,
		"info":    InfoLevel,
		"warn":    WarnLevel,
		"error":   ErrorLevel,
		"bogus":   InfoLevel,
		"warning": WarnLevel,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
