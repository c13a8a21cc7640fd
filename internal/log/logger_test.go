package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestWithComponentEmitsSingleAttribute(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:   slog.LevelInfo,
		Handler: slog.NewTextHandler(&buf, nil),
	}).WithComponent(ComponentPipeline)

	logger.Info("submission admitted", FieldRecordCount, 2)

	line := buf.String()
	if got := strings.Count(line, "component="); got != 1 {
		t.Fatalf("component appears %d times in %q, want 1", got, line)
	}
	if !strings.Contains(line, "component="+ComponentPipeline) {
		t.Fatalf("missing component attribute in %q", line)
	}
}

func TestWithComponentDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{
		Level:   slog.LevelInfo,
		Handler: slog.NewTextHandler(&buf, nil),
	})
	child := base.WithComponent(ComponentRemote)

	if base.Component() == child.Component() {
		t.Fatalf("parent component changed to %q", base.Component())
	}

	child.Warn("request failed", FieldError, "timeout")
	if got := strings.Count(buf.String(), "component="); got != 1 {
		t.Fatalf("component appears %d times, want 1", got)
	}
}
