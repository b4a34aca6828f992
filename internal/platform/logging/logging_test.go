package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"info", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{" warn ", zapcore.WarnLevel},
	}
	for _, tc := range tests {
		logger, err := New(tc.level)
		if err != nil {
			t.Fatalf("New(%q): %v", tc.level, err)
		}
		if !logger.Core().Enabled(tc.want) {
			t.Fatalf("New(%q) does not enable %s", tc.level, tc.want)
		}
		if tc.want > zapcore.DebugLevel && logger.Core().Enabled(tc.want-1) {
			t.Fatalf("New(%q) enables %s", tc.level, tc.want-1)
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
