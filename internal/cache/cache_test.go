package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetReturnsSetValueBeforeExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewWithClock[int](5*time.Second, func() time.Time { return now })

	c.Set("a", 42)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestGetMissesAfterExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewWithClock[int](5*time.Second, func() time.Time { return now })

	c.Set("a", 42)
	now = now.Add(6 * time.Second)

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestInvalidateDropsEverything(t *testing.T) {
	c := New[string](time.Minute)
	c.Set("a", "x")
	c.Set("b", "y")

	c.Invalidate()

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestSetPrunesExpiredEntries(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewWithClock[int](time.Second, func() time.Time { return now })

	c.Set("old", 1)
	now = now.Add(2 * time.Second)
	c.Set("new", 2)

	assert.Equal(t, 1, c.Len())
}
