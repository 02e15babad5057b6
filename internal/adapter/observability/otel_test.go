package observability

import (
	"context"
	"testing"

	"github.com/YelzhanWeb/waiter/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTracingWithoutEndpointIsNoop(t *testing.T) {
	tracer, shutdown, err := SetupTracing(context.Background(), config.TelemetryConfig{ServiceName: "waiter"})
	require.NoError(t, err)
	require.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}
