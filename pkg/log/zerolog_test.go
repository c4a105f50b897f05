package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestZerologAdapter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewZerologAdapterWithLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	adapter.Debug("hidden", String("k", "v"))
	if buf.Len() != 0 {
		t.Errorf("debug message reached an info-level logger: %q", buf.String())
	}

	adapter.Info("visible", String("k", "v"))
	out := buf.String()
	if !strings.Contains(out, "visible") || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("info output = %q, want message and field", out)
	}
}

func TestZerologAdapter_ZeroValueLoggerEmitsDebug(t *testing.T) {
	// A zero-value zerolog.Logger sits at debug level; callers that want
	// debug suppressed must apply a level before wrapping.
	var buf bytes.Buffer
	adapter := NewZerologAdapterWithLogger(zerolog.New(&buf))

	adapter.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug output = %q, want message", buf.String())
	}
}
