package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level           string            `koanf:"level"`
	Format          string            `koanf:"format"`
	Caller          bool              `koanf:"caller"`
	StacktraceLevel zapcore.Level     `koanf:"stacktrace_level"`
	Fields          map[string]string `koanf:"fields"`
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:           "info",
		Format:          "json",
		Caller:          true,
		StacktraceLevel: zapcore.ErrorLevel,
	}
}

// Validate checks the config for unusable values.
func (c *Config) Validate() error {
	if _, err := LevelFromString(c.Level); err != nil {
		return fmt.Errorf("invalid level %q: %w", c.Level, err)
	}
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("invalid format %q (want json or console)", c.Format)
	}
	return nil
}

// newCore builds the zapcore.Core for the config. When otelProvider is
// non-nil the stdout core is teed with an OTEL bridge core so entries reach
// both destinations.
func newCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	level, err := LevelFromString(cfg.Level)
	if err != nil {
		return nil, err
	}

	stdout := zapcore.NewCore(
		newEncoder(cfg.Format),
		zapcore.Lock(os.Stdout),
		zap.NewAtomicLevelAt(level),
	)

	if otelProvider == nil {
		return stdout, nil
	}

	otelCore := otelzap.NewCore("taskd", otelzap.WithLoggerProvider(otelProvider))
	return zapcore.NewTee(stdout, otelCore), nil
}

// newEncoder creates JSON or console encoder.
func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}
