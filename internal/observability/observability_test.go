package observability

import (
	"context"
	"log/slog"
	"testing"

	"go.opentelemetry.io/contrib/processors/minsev"
)

func TestInstrumentFormats(t *testing.T) {
	restore := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(restore)
		provider = nil
	})
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	tests := []struct {
		format  string
		level   slog.Level
		enabled slog.Level
		muted   slog.Level
	}{
		{"text", slog.LevelInfo, slog.LevelInfo, slog.LevelDebug},
		{"json", slog.LevelWarn, slog.LevelError, slog.LevelInfo},
		{"", slog.LevelDebug, slog.LevelDebug, slog.LevelDebug - 4},
	}
	for _, tt := range tests {
		t.Run("format "+tt.format, func(t *testing.T) {
			if err := Instrument(tt.level, tt.format); err != nil {
				t.Fatalf("Instrument(%q) error: %v", tt.format, err)
			}
			ctx := context.Background()
			if !slog.Default().Enabled(ctx, tt.enabled) {
				t.Errorf("level %v should be enabled", tt.enabled)
			}
			if slog.Default().Enabled(ctx, tt.muted) {
				t.Errorf("level %v should be muted", tt.muted)
			}
		})
	}
}

func TestInstrumentRejectsUnknownFormat(t *testing.T) {
	if err := Instrument(slog.LevelInfo, "yaml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestShutdownWithoutProviderIsNoop(t *testing.T) {
	provider = nil
	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() = %v, want nil", err)
	}
}

func TestSeverityMapping(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  minsev.Severity
	}{
		{slog.LevelDebug, minsev.SeverityDebug},
		{slog.LevelInfo, minsev.SeverityInfo},
		{slog.LevelWarn, minsev.SeverityWarn},
		{slog.LevelError, minsev.SeverityError},
	}
	for _, tt := range tests {
		if got := severity(tt.level); got != tt.want {
			t.Errorf("severity(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
