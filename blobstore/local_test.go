package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, newStore func(t *testing.T) BlobStore) {
	ctx := context.Background()

	t.Run("PutGet", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "snapshots/latest", []byte("hello")))

		data, err := s.Get(ctx, "snapshots/latest")
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), data)
	})

	t.Run("PutReplaces", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "a", []byte("one")))
		require.NoError(t, s.Put(ctx, "a", []byte("two")))

		data, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), data)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "nope")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "a", []byte("x")))
		require.NoError(t, s.Delete(ctx, "a"))

		_, err := s.Get(ctx, "a")
		require.ErrorIs(t, err, ErrNotFound)

		// Deleting a missing blob is not an error.
		require.NoError(t, s.Delete(ctx, "a"))
	})

	t.Run("List", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "snapshots/a", []byte("1")))
		require.NoError(t, s.Put(ctx, "snapshots/b", []byte("2")))
		require.NoError(t, s.Put(ctx, "other/c", []byte("3")))

		names, err := s.List(ctx, "snapshots/")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"snapshots/a", "snapshots/b"}, names)
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, func(t *testing.T) BlobStore {
		return NewMemoryStore()
	})
}

func TestLocalStore(t *testing.T) {
	testStore(t, func(t *testing.T) BlobStore {
		s, err := NewLocalStore(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	in := []byte("original")
	require.NoError(t, s.Put(ctx, "a", in))
	in[0] = 'X'

	out, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), out)

	out[0] = 'Y'
	again, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}
