package logger

import (
	"errors"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		if parseLevel(lvl) == nil {
			t.Errorf("expected level for %q", lvl)
		}
	}
	if parseLevel("verbose") != nil {
		t.Error("expected nil for unknown level")
	}
}

func TestNew(t *testing.T) {
	for _, pretty := range []bool{true, false} {
		l, err := New("debug", pretty)
		if err != nil {
			t.Fatalf("New(pretty=%v) failed: %v", pretty, err)
		}
		l.With(String("feed", "x")).Debug("hello", Int("n", 1), Error(errors.New("boom")))
		_ = l.Sync()
	}
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Info("discarded")
	l.Warnf("discarded %d", 1)
}
