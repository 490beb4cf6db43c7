package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientOptions(t *testing.T) {
	opts := ClientConfig{
		Addr:       "cache.internal:6380",
		DB:         2,
		PoolSize:   4,
		MaxRetries: 1,
		TLSEnabled: true,
		Timeout:    750 * time.Millisecond,
	}.options()

	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 750*time.Millisecond, opts.DialTimeout)
	assert.Equal(t, 750*time.Millisecond, opts.ReadTimeout)
	assert.Equal(t, 750*time.Millisecond, opts.WriteTimeout)
	require.NotNil(t, opts.TLSConfig)
	assert.Equal(t, "cache.internal", opts.TLSConfig.ServerName)

	plain := ClientConfig{Addr: "localhost:6379"}.options()
	assert.Nil(t, plain.TLSConfig)
	assert.Zero(t, plain.DialTimeout)
}

func TestClientPingReportsAddr(t *testing.T) {
	c, mr := newTestClient(t)
	assert.Equal(t, mr.Addr(), c.Addr())
	require.NoError(t, c.Ping(context.Background()))

	mr.Close()
	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), mr.Addr())
}
