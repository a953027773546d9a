package fluent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	v, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, c.Set(ctx, "a|1", []byte("one"), time.Minute))
	require.NoError(t, c.Set(ctx, "a|2", []byte("two"), 0))
	require.NoError(t, c.Set(ctx, "b|1", []byte("three"), 0))

	v, err = c.Get(ctx, "a|1")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), v)

	t.Run("expiry", func(t *testing.T) {
		now = now.Add(time.Minute)
		v, err := c.Get(ctx, "a|1")
		require.NoError(t, err)
		assert.Nil(t, v)
		v, err = c.Get(ctx, "a|2")
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), v)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "a|3", []byte("x"), 0))
		require.NoError(t, c.Delete(ctx, "a|3"))
		v, err := c.Get(ctx, "a|3")
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("delete_prefix", func(t *testing.T) {
		require.NoError(t, c.DeletePrefix(ctx, "a|"))
		assert.Equal(t, 1, c.Len())
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, c.Clear(ctx))
		assert.Zero(t, c.Len())
	})
}

func TestMemoryCacheCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	value := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", value, 0))
	value[0] = 'x'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
	got[0] = 'y'

	again, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestCacheKey(t *testing.T) {
	a := CacheKey{Profile: "main:shop", Query: "SELECT *\n  FROM t WHERE id = ?", Args: []any{1}}
	b := CacheKey{Profile: "main:shop", Query: "SELECT * FROM t WHERE id = ?", Args: []any{1}}
	assert.Equal(t, a.String(), b.String())
	assert.Contains(t, a.String(), "main:shop|")

	c := CacheKey{Profile: "main:shop", Query: b.Query, Args: []any{"1"}}
	assert.NotEqual(t, b.String(), c.String())
	d := CacheKey{Profile: "main:audit", Query: b.Query, Args: b.Args}
	assert.NotEqual(t, b.String(), d.String())
}

func TestResultEncoding(t *testing.T) {
	rows := []Row{
		{"id": int64(1), "name": "a8m", "score": 1.5, "team": nil},
		{"id": int64(-2), "name": "nati", "score": 0.25, "team": "core"},
	}
	data, err := encodeResult([]string{"id", "name", "score", "team"}, rows)
	require.NoError(t, err)

	r, err := decodeResult(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "score", "team"}, r.Columns)
	assert.Equal(t, rows, r.Rows)

	_, err = decodeResult([]byte{0xc1})
	assert.Error(t, err)
}
