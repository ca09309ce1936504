package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCacheGetSet(t *testing.T) {
	c := NewTTLCache[string, []string](time.Minute)

	_, ok := c.Get("countries")
	assert.False(t, ok)

	c.Set("countries", []string{"BJ", "CI"}, time.Minute)
	got, ok := c.Get("countries")
	assert.True(t, ok)
	assert.Equal(t, []string{"BJ", "CI"}, got)

	c.Delete("countries")
	_, ok = c.Get("countries")
	assert.False(t, ok)
}

func TestTTLCacheExpires(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute)
	c.Set("k", 1, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		_, ok := c.Get("k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}
