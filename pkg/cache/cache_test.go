package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blurkit/blurkit/pkg/pixbuf"
)

func buffer(t *testing.T, w, h int, v uint8) *pixbuf.Buffer {
	t.Helper()
	b, err := pixbuf.New(w, h, 4)
	require.NoError(t, err)
	for i := range b.Pix {
		b.Pix[i] = v
	}
	return b
}

func TestNewRejectsBadBounds(t *testing.T) {
	_, err := New(0, 2*MinBytes)
	require.ErrorIs(t, err, ErrBadConfig)
	_, err = New(-1, 2*MinBytes)
	require.ErrorIs(t, err, ErrBadConfig)
	_, err = New(4, MinBytes-1)
	require.ErrorIs(t, err, ErrBadConfig)

	c, err := New(4, MinBytes)
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestQuantizeRoundsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 23, Quantize(2.25))
	assert.Equal(t, 22, Quantize(2.24))
	assert.Equal(t, 30, Quantize(3.0))
	assert.Equal(t, 1, Quantize(0.05))
	assert.Equal(t, 100, Quantize(9.96))
}

func TestLRUEvictionOrder(t *testing.T) {
	c, err := New(2, 64*MinBytes)
	require.NoError(t, err)

	buf := buffer(t, 8, 8, 1)
	require.True(t, c.Put(0xA, 1.0, buf))
	require.True(t, c.Put(0xB, 1.0, buf))
	require.True(t, c.Put(0xC, 1.0, buf)) // evicts A

	_, ok := c.Get(0xA, 1.0)
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get(0xB, 1.0)
	assert.True(t, ok)
	_, ok = c.Get(0xC, 1.0)
	assert.True(t, ok)

	st := c.Stats()
	assert.Equal(t, 2, st.Entries)
	assert.Equal(t, uint64(1), st.Evictions)
	assert.Equal(t, uint64(2), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
}

func TestGetPromotesRecency(t *testing.T) {
	c, err := New(2, 64*MinBytes)
	require.NoError(t, err)
	buf := buffer(t, 8, 8, 1)

	require.True(t, c.Put(0xA, 1.0, buf))
	require.True(t, c.Put(0xB, 1.0, buf))
	_, ok := c.Get(0xA, 1.0) // A becomes most recent
	require.True(t, ok)
	require.True(t, c.Put(0xC, 1.0, buf)) // evicts B, not A

	_, ok = c.Get(0xA, 1.0)
	assert.True(t, ok)
	_, ok = c.Get(0xB, 1.0)
	assert.False(t, ok)
}

func TestPutIsIdempotent(t *testing.T) {
	c, err := New(4, 64*MinBytes)
	require.NoError(t, err)
	buf := buffer(t, 8, 8, 1)

	require.True(t, c.Put(0xA, 2.0, buf))
	before := c.Stats()
	require.True(t, c.Put(0xA, 2.0, buf))
	after := c.Stats()
	assert.Equal(t, before.Entries, after.Entries)
	assert.Equal(t, before.Bytes, after.Bytes)
}

func TestQuantizedKeysCollide(t *testing.T) {
	c, err := New(4, 64*MinBytes)
	require.NoError(t, err)
	buf := buffer(t, 8, 8, 1)

	require.True(t, c.Put(0xA, 2.25, buf))
	_, ok := c.Get(0xA, 2.3) // same 0.1 bucket
	assert.True(t, ok)
	_, ok = c.Get(0xA, 2.24) // bucket 22, distinct
	assert.False(t, ok)
}

func TestByteBudgetEviction(t *testing.T) {
	// Two ~920KB entries fit in 2MiB; a third forces out the oldest.
	c, err := New(10, 2*MinBytes)
	require.NoError(t, err)
	big := buffer(t, 480, 480, 1)

	require.True(t, c.Put(1, 1.0, big))
	require.True(t, c.Put(2, 1.0, big))
	require.True(t, c.Put(3, 1.0, big))

	st := c.Stats()
	assert.Equal(t, 2, st.Entries)
	assert.LessOrEqual(t, st.Bytes, int64(2*MinBytes))
	assert.Equal(t, uint64(1), st.Evictions)
	_, ok := c.Get(1, 1.0)
	assert.False(t, ok)
}

func TestOversizeEntryRejected(t *testing.T) {
	c, err := New(10, MinBytes)
	require.NoError(t, err)
	require.True(t, c.Put(1, 1.0, buffer(t, 8, 8, 1)))

	// 600x600x4 is ~1.4MB, larger than the whole budget: rejected without
	// disturbing what's already cached.
	huge := buffer(t, 600, 600, 1)
	assert.False(t, c.Put(2, 1.0, huge))

	st := c.Stats()
	assert.Equal(t, 1, st.Entries)
	_, ok := c.Get(1, 1.0)
	assert.True(t, ok)
}

func TestRemoveDropsAllIntensitiesForImage(t *testing.T) {
	c, err := New(10, 64*MinBytes)
	require.NoError(t, err)
	buf := buffer(t, 8, 8, 1)

	require.True(t, c.Put(0xA, 1.0, buf))
	require.True(t, c.Put(0xA, 2.0, buf))
	require.True(t, c.Put(0xA, 3.0, buf))
	require.True(t, c.Put(0xB, 1.0, buf))

	assert.Equal(t, 3, c.Remove(0xA))
	st := c.Stats()
	assert.Equal(t, 1, st.Entries)
	_, ok := c.Get(0xB, 1.0)
	assert.True(t, ok)
}

func TestClearEmptiesButKeepsCounters(t *testing.T) {
	c, err := New(10, 64*MinBytes)
	require.NoError(t, err)
	buf := buffer(t, 8, 8, 1)

	require.True(t, c.Put(0xA, 1.0, buf))
	_, _ = c.Get(0xA, 1.0)
	_, _ = c.Get(0xB, 1.0)
	c.Clear()

	st := c.Stats()
	assert.Equal(t, 0, st.Entries)
	assert.Equal(t, int64(0), st.Bytes)
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
}

func TestBoundsHoldAfterEveryOperation(t *testing.T) {
	c, err := New(3, 2*MinBytes)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		c.Put(uint64(i), float64(i%10), buffer(t, 200, 200, uint8(i)))
		st := c.Stats()
		require.LessOrEqual(t, st.Entries, 3, "iteration %d", i)
		require.LessOrEqual(t, st.Bytes, int64(2*MinBytes), "iteration %d", i)
	}
}
