package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig("daedalus")
	assert.Equal(t, "daedalus", c.ServiceName)
	assert.False(t, c.Enabled)
	assert.Equal(t, 1.0, c.SampleRatio)
}

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), DefaultConfig("daedalus"), nil)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStop(t *testing.T) {
	assert.NoError(t, Stop(nil, nil))

	called := false
	assert.NoError(t, Stop(func(context.Context) error { called = true; return nil }, nil))
	assert.True(t, called)

	boom := errors.New("exporter gone")
	assert.ErrorIs(t, Stop(func(context.Context) error { return boom }, nil), boom)
}
