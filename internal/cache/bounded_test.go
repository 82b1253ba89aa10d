package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBounded_EvictsOldestInserted(t *testing.T) {
	c := NewBounded[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	assert.False(t, c.Has("a"))
	assert.True(t, c.Has("b"))
	assert.True(t, c.Has("c"))
	assert.Equal(t, []string{"b", "c"}, c.Keys())
}

func TestBounded_GetDoesNotPromote(t *testing.T) {
	c := NewBounded[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	v, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	c.Put("d", 4)
	assert.False(t, c.Has("b"), "read must not protect b from eviction")
	assert.True(t, c.Has("c"))
	assert.True(t, c.Has("d"))
}

func TestBounded_ReinsertKeepsOrder(t *testing.T) {
	c := NewBounded[string, string](2)
	c.Put("a", "x")
	c.Put("b", "y")
	c.Put("a", "z")

	v, _ := c.Get("a")
	assert.Equal(t, "z", v)
	assert.Equal(t, 2, c.Len())

	c.Put("c", "w")
	assert.False(t, c.Has("a"), "re-inserting a must not move it behind b")
	assert.True(t, c.Has("b"))
}

func TestBounded_NPlusK(t *testing.T) {
	tests := []struct {
		capacity int
		extra    int
	}{
		{capacity: 1, extra: 0},
		{capacity: 1, extra: 5},
		{capacity: 100, extra: 1},
		{capacity: 200, extra: 37},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("cap=%d,k=%d", tt.capacity, tt.extra), func(t *testing.T) {
			c := NewBounded[int, int](tt.capacity)
			total := tt.capacity + tt.extra
			for i := 0; i < total; i++ {
				c.Put(i, i)
				// reads in between must not change anything
				c.Get(0)
			}
			for i := 0; i < total; i++ {
				if i < tt.extra {
					assert.False(t, c.Has(i), "key %d should be evicted", i)
				} else {
					assert.True(t, c.Has(i), "key %d should be present", i)
				}
			}
			assert.Equal(t, tt.capacity, c.Len())
		})
	}
}

func TestBounded_MissIsNotAnError(t *testing.T) {
	c := NewBounded[string, []byte](3)
	v, ok := c.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestBounded_Remove(t *testing.T) {
	c := NewBounded[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Remove("a")
	c.Remove("nope")
	c.Put("c", 3)

	assert.Equal(t, []string{"b", "c"}, c.Keys())
}

func TestNewBounded_MinimumCapacity(t *testing.T) {
	c := NewBounded[string, int](0)
	assert.Equal(t, 1, c.Cap())
	c.Put("a", 1)
	c.Put("b", 2)
	assert.Equal(t, []string{"b"}, c.Keys())
}
