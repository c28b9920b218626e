package nats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConnectionConfig(t *testing.T) {
	config := DefaultConnectionConfig("nats://localhost:4222")

	assert.Equal(t, "nats://localhost:4222", config.URL)
	assert.Equal(t, "daedalus", config.Name)
	assert.Equal(t, 10, config.MaxReconnects)
	assert.Equal(t, 2*time.Second, config.ReconnectWait)
	assert.Equal(t, 5*time.Second, config.Timeout)
}

func TestConnect_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config *ConnectionConfig
		errMsg string
	}{
		{name: "nil config", config: nil, errMsg: "cannot be nil"},
		{name: "empty url", config: DefaultConnectionConfig(""), errMsg: "URL cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := Connect(context.Background(), tt.config, nil)
			require.Error(t, err)
			assert.Nil(t, conn)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConnect_Unreachable(t *testing.T) {
	config := DefaultConnectionConfig("nats://127.0.0.1:1")
	config.MaxReconnects = 0
	config.Timeout = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := Connect(ctx, config, nil)
	require.Error(t, err)
	assert.Nil(t, conn)
}

func TestClose_NilConnection(t *testing.T) {
	assert.NoError(t, Close(nil))
	assert.False(t, IsConnected(nil))
}
