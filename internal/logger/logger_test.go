package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	for _, name := range []string{"debug", "info", "warn", "error"} {
		log, err := New(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		lvl, _ := zapcore.ParseLevel(name)
		if !log.Core().Enabled(lvl) {
			t.Fatalf("%s: level not enabled", name)
		}
		if lvl > zapcore.DebugLevel && log.Core().Enabled(lvl-1) {
			t.Fatalf("%s: lower level should be disabled", name)
		}
	}
}

func TestNew_UnknownLevel(t *testing.T) {
	if _, err := New("chatty"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
