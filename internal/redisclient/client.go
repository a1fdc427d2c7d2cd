// Package redisclient owns the Redis connection behind the session store.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	// URL wins over the discrete fields when set, e.g. redis://:pw@host:6379/0.
	URL      string
	Addr     string
	Password string
	DB       int
	PoolSize int
}

func (c Config) options() (*redis.Options, error) {
	opts := &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	}
	if c.URL != "" {
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	return opts, nil
}

type Client struct {
	rdb *redis.Client
}

func New(cfg Config) (*Client, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	return &Client{rdb: redis.NewClient(opts)}, nil
}

// Ping is used at startup and by /readyz.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Raw exposes the client to the session store.
func (c *Client) Raw() *redis.Client {
	return c.rdb
}

// RegisterMetrics exports connection pool gauges so session-store stalls
// show up next to the HTTP latency histograms.
func (c *Client) RegisterMetrics(reg prometheus.Registerer) error {
	stat := func(name, help string, read func(*redis.PoolStats) uint32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "clinicfinder_redis_pool_" + name,
			Help: help,
		}, func() float64 { return float64(read(c.rdb.PoolStats())) })
	}

	for _, col := range []prometheus.Collector{
		stat("hits", "Connections reused from the pool.", func(s *redis.PoolStats) uint32 { return s.Hits }),
		stat("misses", "Pool misses that dialed a new connection.", func(s *redis.PoolStats) uint32 { return s.Misses }),
		stat("timeouts", "Waits for a free connection that timed out.", func(s *redis.PoolStats) uint32 { return s.Timeouts }),
		stat("total_conns", "Open connections.", func(s *redis.PoolStats) uint32 { return s.TotalConns }),
		stat("idle_conns", "Idle connections.", func(s *redis.PoolStats) uint32 { return s.IdleConns }),
	} {
		if err := reg.Register(col); err != nil {
			return fmt.Errorf("register redis pool metric: %w", err)
		}
	}
	return nil
}
