package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/querycache"
)

func TestLoggerWritesAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{L: stdslog.New(stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelDebug}))}

	l.Debug("fetch result discarded", querycache.Fields{"reason": "dropped"})

	out := buf.String()
	if !strings.Contains(out, "level=DEBUG") || !strings.Contains(out, "reason=dropped") {
		t.Fatalf("output = %q", out)
	}
}
