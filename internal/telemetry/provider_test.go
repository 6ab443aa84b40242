package telemetry_test

import (
	"context"
	"testing"

	"github.com/rpggio/deskview/internal/telemetry"
	"github.com/stretchr/testify/require"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), telemetry.Config{ServiceName: "test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_NoopShutdownIgnoresCancelledContext(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), telemetry.Config{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, shutdown(ctx))
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address: nothing is exported before shutdown.
	shutdown, err := telemetry.Setup(context.Background(), telemetry.Config{
		ServiceName:  "test",
		OTLPEndpoint: "http://192.0.2.1:4318",
		Insecure:     true,
	})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
