package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"ERROR":   LevelError,
		"none":    LevelNone,
		"bogus":   LevelInfo,
	}

	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerWritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	l, err := New(LevelDebug, logPath, "test")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Info("hello %s", "world")
	l.Debug("details")

	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	out := string(data)

	if !strings.Contains(out, "hello world") {
		t.Errorf("log output missing message: %s", out)
	}
	if !strings.Contains(out, "[INFO] [test]") {
		t.Errorf("log output missing level and prefix: %s", out)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	l, err := New(LevelWarn, logPath, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("visible")
	_ = l.Close()

	data, _ := os.ReadFile(logPath)
	out := string(data)

	if strings.Contains(out, "hidden") {
		t.Errorf("filtered levels leaked into the log: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn message missing: %s", out)
	}
}

func TestDisabledLogger(t *testing.T) {
	l, err := New(LevelNone, "", "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	// Must not panic without a file sink.
	l.Error("goes nowhere")
}

func TestRedact(t *testing.T) {
	if got := Redact("short"); got != "<redacted>" {
		t.Errorf("short values must redact fully, got %q", got)
	}

	secret := "AAAABBBBCCCCDDDD"
	got := Redact(secret)
	if got != "AAAA...DDDD" {
		t.Errorf("Redact(%q) = %q", secret, got)
	}
	if strings.Contains(got, secret) {
		t.Error("redacted output contains the full secret")
	}
}
