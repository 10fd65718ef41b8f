// Package telemetry exports taskd logs over OTLP.
//
// When enabled it builds an OTEL LoggerProvider that the logging package
// bridges into via otelzap, so every log entry reaches both stdout and the
// collector. Telemetry failures never crash the daemon; the provider is
// simply absent and logging continues on stdout alone.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// Config controls the OTLP log exporter.
type Config struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint"`
	Protocol string `koanf:"protocol"` // "grpc" or "http/protobuf"
	Insecure bool   `koanf:"insecure"`
}

// Validate checks the config for unusable values.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("telemetry endpoint is required when enabled")
	}
	if c.Protocol != "" && c.Protocol != "grpc" && c.Protocol != "http/protobuf" {
		return fmt.Errorf("invalid telemetry protocol %q (want grpc or http/protobuf)", c.Protocol)
	}
	return nil
}

// Telemetry owns the log provider and its exporter lifecycle.
type Telemetry struct {
	provider *sdklog.LoggerProvider
}

// New initializes the OTLP log pipeline.
//
// Returns a no-op instance when telemetry is disabled. Exporter construction
// errors are returned so the operator sees a misconfigured endpoint at
// startup rather than silent log loss.
func New(ctx context.Context, cfg *Config, serviceVersion string) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create log exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("taskd"),
		semconv.ServiceVersion(serviceVersion),
	)

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	return &Telemetry{provider: provider}, nil
}

func newExporter(ctx context.Context, cfg *Config) (sdklog.Exporter, error) {
	switch cfg.Protocol {
	case "http/protobuf":
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		return otlploghttp.New(ctx, opts...)
	default: // "grpc"
		opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploggrpc.WithInsecure())
		}
		return otlploggrpc.New(ctx, opts...)
	}
}

// LoggerProvider returns the provider for the otelzap bridge.
// Returns nil when telemetry is disabled.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider
}

// Shutdown flushes pending log records and stops the exporter.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("log provider shutdown: %w", err)
	}
	return nil
}
