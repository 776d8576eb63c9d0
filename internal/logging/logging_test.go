package logging

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func newPlainLogger(buf *strings.Builder, level slog.Level) *slog.Logger {
	color.NoColor = true
	return slog.New(NewHandler(buf, &Options{Level: level}))
}

func TestHandlerWritesMessageAndAttrs(t *testing.T) {
	var buf strings.Builder
	logger := newPlainLogger(&buf, slog.LevelInfo)

	logger.Info("turn complete", "session", "abc", "rounds", 2)

	line := buf.String()
	if !strings.Contains(line, "INFO") {
		t.Fatalf("missing level tag: %q", line)
	}
	if !strings.Contains(line, "turn complete") {
		t.Fatalf("missing message: %q", line)
	}
	if !strings.Contains(line, "session=abc") || !strings.Contains(line, "rounds=2") {
		t.Fatalf("missing attrs: %q", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("record not newline terminated: %q", line)
	}
}

func TestHandlerFiltersBelowLevel(t *testing.T) {
	var buf strings.Builder
	logger := newPlainLogger(&buf, slog.LevelWarn)

	logger.Info("too quiet")
	logger.Warn("loud enough")

	out := buf.String()
	if strings.Contains(out, "too quiet") {
		t.Fatalf("info record not filtered: %q", out)
	}
	if !strings.Contains(out, "loud enough") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestHandlerWithAttrsAndGroup(t *testing.T) {
	var buf strings.Builder
	logger := newPlainLogger(&buf, slog.LevelInfo)

	logger.With("component", "voice").WithGroup("session").Info("opened", "key", "k1")

	line := buf.String()
	if !strings.Contains(line, "component=voice") {
		t.Fatalf("missing bound attr: %q", line)
	}
	if !strings.Contains(line, "session.key=k1") {
		t.Fatalf("missing grouped attr: %q", line)
	}
}

func TestErr(t *testing.T) {
	attr := Err(errors.New("boom"))
	if attr.Key != "error" {
		t.Fatalf("key=%q, want error", attr.Key)
	}
	if got := attr.Value.Any().(error).Error(); got != "boom" {
		t.Fatalf("value=%q", got)
	}
}
