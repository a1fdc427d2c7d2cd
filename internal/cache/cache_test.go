package cache

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_ExpiresAfterTTL(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c := New(time.Minute, 0)
	c.now = func() time.Time { return now }

	c.Set("clinics:list", []int{1, 2})

	v, ok := c.Get("clinics:list")
	assert.True(t, ok)
	assert.Equal(t, []int{1, 2}, v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("clinics:list")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_DeletePrefix(t *testing.T) {
	c := New(time.Minute, 0)
	c.Set("clinics:v1:list:status=open", 1)
	c.Set("clinics:v1:detail:5", 2)
	c.Set("other", 3)

	c.DeletePrefix("clinics:")

	_, ok := c.Get("clinics:v1:detail:5")
	assert.False(t, ok)
	_, ok = c.Get("other")
	assert.True(t, ok)
}

func TestNew_Defaults(t *testing.T) {
	c := New(0, 0)
	assert.Equal(t, 5*time.Second, c.TTL())
	assert.Equal(t, DefaultMaxEntries, c.max)
}

func TestCache_BoundedByMaxEntries(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c := New(time.Minute, 3)
	c.now = func() time.Time { return now }

	for i, k := range []string{"a", "b", "c", "d", "e"} {
		now = now.Add(time.Duration(i) * time.Second)
		c.Set(k, i)
	}

	assert.Equal(t, 3, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = c.Get("e")
	assert.True(t, ok)

	// overwriting a live key never evicts
	c.Set("e", 99)
	assert.Equal(t, 3, c.Len())
}

func TestCache_FullCacheDropsExpiredBeforeLive(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c := New(time.Minute, 2)
	c.now = func() time.Time { return now }

	c.Set("old", 1)
	now = now.Add(2 * time.Minute)
	c.Set("live", 2)
	c.Set("new", 3)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("live")
	assert.True(t, ok)
	_, ok = c.Get("new")
	assert.True(t, ok)
}

func TestCache_SweepRemovesExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c := New(time.Millisecond, 0)
	c.now = func() time.Time { return now }

	for i := 0; i < 500; i++ {
		c.Set("clinics:v1:list:q="+strconv.Itoa(i), i)
	}
	assert.Equal(t, 500, c.Len())

	now = now.Add(time.Second)
	assert.Equal(t, 500, c.Sweep())
	assert.Equal(t, 0, c.Len())
}

func TestCache_RunSweeperStops(t *testing.T) {
	c := New(time.Millisecond, 0)
	c.Set("k", 1)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		c.RunSweeper(5*time.Millisecond, stop)
		close(done)
	}()

	require.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	close(stop)
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
