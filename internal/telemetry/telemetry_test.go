package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	assert.NoError(t, cfg.Validate(), "disabled config needs nothing")

	cfg = &Config{Enabled: true}
	assert.Error(t, cfg.Validate(), "enabled config needs an endpoint")

	cfg = &Config{Enabled: true, Endpoint: "127.0.0.1:4317"}
	assert.NoError(t, cfg.Validate())

	cfg = &Config{Enabled: true, Endpoint: "127.0.0.1:4317", Protocol: "carrier-pigeon"}
	assert.Error(t, cfg.Validate())
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), &Config{}, "test")
	require.NoError(t, err)
	assert.Nil(t, tel.LoggerProvider(), "disabled telemetry has no provider")
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_Enabled(t *testing.T) {
	// The gRPC exporter connects lazily, so construction succeeds even
	// without a collector listening.
	tel, err := New(context.Background(), &Config{
		Enabled:  true,
		Endpoint: "127.0.0.1:4317",
		Insecure: true,
	}, "test")
	require.NoError(t, err)
	require.NotNil(t, tel.LoggerProvider())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Shutdown with a cancelled context must not hang.
	_ = tel.Shutdown(ctx)
}

func TestNilTelemetry(t *testing.T) {
	var tel *Telemetry
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
}
