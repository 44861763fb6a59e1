// Package observability configures process-wide structured logging.
//
// Records always go to a local slog handler (text or JSON, stderr or a rotating
// file). Optionally they are also exported as OpenTelemetry log records.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// instrumentationName identifies this module in exported log records.
const instrumentationName = "github.com/florianilch/whoop-auth"

// Settings selects log level, format and destinations.
type Settings struct {
	Level slog.Level
	// Format is "text" or "json".
	Format string
	// File, when set, receives local output instead of stderr and is rotated.
	File string
	// Exporter is "", "none", "stdout", "otlp-http" or "otlp-grpc".
	Exporter string
}

// ShutdownFunc flushes and releases logging resources.
type ShutdownFunc func(context.Context) error

// Instrument installs the default slog logger according to settings.
// The returned function must be called before exit to flush exported records.
func Instrument(ctx context.Context, settings Settings) (ShutdownFunc, error) {
	var shutdowns []ShutdownFunc

	var out io.Writer = os.Stderr
	if settings.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   settings.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		}
		out = rotating
		shutdowns = append(shutdowns, func(context.Context) error { return rotating.Close() })
	}

	local, err := newLocalHandler(out, settings.Format, settings.Level)
	if err != nil {
		return nil, err
	}
	handlers := []slog.Handler{local}

	exporter, err := newExporter(ctx, settings.Exporter)
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severityFor(settings.Level))
		provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))
		global.SetLoggerProvider(provider)

		handlers = append(handlers, otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider)))
		shutdowns = append(shutdowns, provider.Shutdown)
	}

	var handler slog.Handler = local
	if len(handlers) > 1 {
		handler = fanout(handlers)
	}
	slog.SetDefault(slog.New(handler))

	return func(ctx context.Context) error {
		var errs []error
		// Reverse order: flush exporters before closing files
		for i := len(shutdowns) - 1; i >= 0; i-- {
			if err := shutdowns[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}, nil
}

func newLocalHandler(out io.Writer, format string, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "", "text":
		return slog.NewTextHandler(out, opts), nil
	case "json":
		return slog.NewJSONHandler(out, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

func newExporter(ctx context.Context, kind string) (sdklog.Exporter, error) {
	switch kind {
	case "", "none":
		return nil, nil
	case "stdout":
		return stdoutlog.New(stdoutlog.WithWriter(os.Stderr))
	case "otlp-http":
		// Endpoint and headers come from the standard OTEL_EXPORTER_OTLP_* variables
		return otlploghttp.New(ctx)
	case "otlp-grpc":
		return otlploggrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported log exporter: %s", kind)
	}
}

// severityFor maps a slog level onto the minimum severity forwarded to the exporter.
func severityFor(level slog.Level) minsev.Severity {
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
