package fetch

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func okResult(endpoint string) Result {
	return Result{Endpoint: endpoint, Body: json.RawMessage(`[]`)}
}

func TestCache_Invalidate(t *testing.T) {
	c := NewCache(time.Minute)
	c.Set("positions", okResult("positions"))
	c.Set("open_orders", okResult("open_orders"))
	assert.Equal(t, 2, c.Len())

	assert.Equal(t, 1, c.Invalidate("POSITIONS"))
	_, ok := c.Get("positions")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Invalidate("positions"))

	assert.Equal(t, 1, c.Invalidate(""))
	assert.Equal(t, 0, c.Len())
}

func TestCache_DisabledAndNil(t *testing.T) {
	var nilCache *Cache
	nilCache.Set("positions", okResult("positions"))
	_, ok := nilCache.Get("positions")
	assert.False(t, ok)
	assert.Equal(t, 0, nilCache.Invalidate(""))

	off := NewCache(0)
	off.Set("positions", okResult("positions"))
	assert.Equal(t, 0, off.Len())
}

func TestCache_Expiry(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewCache(time.Second)
	c.SetClock(func() time.Time { return now })
	c.Set("positions", okResult("positions"))

	_, ok := c.Get("positions")
	assert.True(t, ok)
	now = now.Add(time.Second)
	_, ok = c.Get("positions")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}
