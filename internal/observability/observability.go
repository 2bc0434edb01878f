// Package observability configures the process-wide logging pipeline: a
// stderr slog handler in the configured format, optionally fanned out to an
// OTLP log exporter when the standard OTEL environment variables are set.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const instrumentationName = "github.com/accomplish-dev/accomplish-cli"

// provider holds the active logger provider so Shutdown can flush it.
var provider *sdklog.LoggerProvider

// Instrument installs the default slog logger for the given level and
// format ("text", "json", or "otel" for OTLP-shaped records on stdout).
// When OTEL_EXPORTER_OTLP_ENDPOINT is set, records are additionally
// exported over OTLP; OTEL_EXPORTER_OTLP_PROTOCOL selects grpc or
// http/protobuf (the default).
func Instrument(level slog.Level, format string) error {
	var handlers []slog.Handler

	switch format {
	case "json":
		handlers = append(handlers, slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	case "otel":
		p, err := stdoutProvider(level)
		if err != nil {
			return fmt.Errorf("creating stdout log exporter: %w", err)
		}
		provider = p
		handlers = append(handlers, otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(p)))
	case "text", "":
		handlers = append(handlers, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	default:
		return fmt.Errorf("unsupported log format: %s", format)
	}

	if format != "otel" && os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		p, err := otlpProvider(context.Background(), level)
		if err != nil {
			return fmt.Errorf("creating otlp log exporter: %w", err)
		}
		provider = p
		handlers = append(handlers, otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(p)))
	}

	if len(handlers) == 1 {
		slog.SetDefault(slog.New(handlers[0]))
	} else {
		slog.SetDefault(slog.New(fanout(handlers)))
	}
	return nil
}

// Shutdown flushes any active exporter. Safe to call when none is configured.
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}

func stdoutProvider(level slog.Level) (*sdklog.LoggerProvider, error) {
	exporter, err := stdoutlog.New()
	if err != nil {
		return nil, err
	}
	return newProvider(exporter, level), nil
}

func otlpProvider(ctx context.Context, level slog.Level) (*sdklog.LoggerProvider, error) {
	var (
		exporter sdklog.Exporter
		err      error
	)
	switch strings.ToLower(os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL")) {
	case "grpc":
		exporter, err = otlploggrpc.New(ctx)
	default:
		exporter, err = otlploghttp.New(ctx)
	}
	if err != nil {
		return nil, err
	}
	return newProvider(exporter, level), nil
}

// newProvider wraps the exporter in a batch processor filtered to the
// configured minimum severity.
func newProvider(exporter sdklog.Exporter, level slog.Level) *sdklog.LoggerProvider {
	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(level))
	return sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))
}

func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
