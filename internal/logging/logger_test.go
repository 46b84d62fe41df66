package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesConsole(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Info().Str("file", "a.pdf").Msg("staged")

	out := buf.String()
	if !strings.Contains(out, "staged") {
		t.Errorf("output %q does not contain message", out)
	}
	if !strings.Contains(out, "a.pdf") {
		t.Errorf("output %q does not contain field", out)
	}
}

func TestLoggerSetOutput(t *testing.T) {
	var first, second bytes.Buffer
	l := NewLogger(&first)
	l.SetOutput(&second)

	l.Warnf("retrying %s", "b.png")

	if first.Len() != 0 {
		t.Errorf("old writer received %q", first.String())
	}
	if !strings.Contains(second.String(), "retrying b.png") {
		t.Errorf("new writer output = %q", second.String())
	}
}

func TestLoggerEnableFile(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	path := filepath.Join(t.TempDir(), "logs", "docucal.log")
	if err := l.EnableFile(path); err != nil {
		t.Fatalf("EnableFile() error = %v", err)
	}

	l.Error().Msg("upload failed")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"upload failed"`) {
		t.Errorf("log file = %q, want JSON line with message", string(data))
	}
	if !strings.Contains(buf.String(), "upload failed") {
		t.Error("console output should still receive the message")
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Info().Msg("nothing")
	if err := l.EnableFile(""); err != nil {
		t.Errorf("EnableFile(\"\") error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	l := NewNopLogger()

	l.Info().Str("file", "a.pdf").Msg("staged")
	l.Errorf("failed %s", "b.png")
	child := l.With().Str("commit_id", "c1").Logger()
	child.Warn().Msg("ignored")

	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
