package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"info":  zapcore.InfoLevel,
		"DEBUG": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q)=%v,%v want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, c, err := New(Options{Level: "warn", Output: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	logger.Infow("hidden")
	logger.Warnw("shown", "pin", 18)
	_ = c.Close()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info entry leaked: %q", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "shown") || !strings.Contains(out, `"pin": 18`) {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestNew_AlsoWritesFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "drone.log")
	logger, c, err := New(Options{Output: &buf, File: path})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	logger.Infow("scan started")
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !strings.Contains(string(b), "scan started") || !strings.Contains(buf.String(), "scan started") {
		t.Fatalf("file=%q console=%q", b, buf.String())
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatalf("expected error")
	}
}
