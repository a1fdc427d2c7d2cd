package redisclient

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigOptions(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		addr     string
		password string
		db       int
		pool     int
	}{
		{"discrete fields", Config{Addr: "cache:6379", Password: "pw", DB: 2, PoolSize: 5}, "cache:6379", "pw", 2, 5},
		{"url wins", Config{URL: "redis://:secret@sessions:6380/3", Addr: "ignored:1", PoolSize: 8}, "sessions:6380", "secret", 3, 8},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts, err := tc.cfg.options()
			require.NoError(t, err)
			assert.Equal(t, tc.addr, opts.Addr)
			assert.Equal(t, tc.password, opts.Password)
			assert.Equal(t, tc.db, opts.DB)
			assert.Equal(t, tc.pool, opts.PoolSize)
		})
	}
}

func TestNew_BadURL(t *testing.T) {
	_, err := New(Config{URL: "http://not-redis"})
	require.Error(t, err)
}

func TestRegisterMetrics(t *testing.T) {
	c, err := New(Config{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	reg := prometheus.NewRegistry()
	require.NoError(t, c.RegisterMetrics(reg))
	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	// a second registration collides on metric names
	assert.Error(t, c.RegisterMetrics(reg))
}
