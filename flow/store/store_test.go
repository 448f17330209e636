package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowfile-wasm/engine/flow/store"
)

// TestStoreContractConsistency verifies that every Store backend behaves
// identically for the core contract (spec property 6: large-content
// routing round-trips exactly, regardless of backend).
func TestStoreContractConsistency(t *testing.T) {
	scenarios := []struct {
		name  string
		build func(t *testing.T) store.Store
	}{
		{"MemStore", func(t *testing.T) store.Store { return store.NewMemStore() }},
		{"SQLiteStore", func(t *testing.T) store.Store {
			path := filepath.Join(t.TempDir(), "test.db")
			st, err := store.NewSQLiteStore(path)
			require.NoError(t, err)
			t.Cleanup(func() { _ = st.Close() })
			return st
		}},
		{"MySQLStore", func(t *testing.T) store.Store {
			dsn := os.Getenv("TEST_MYSQL_DSN")
			if dsn == "" {
				t.Skip("TEST_MYSQL_DSN not set")
			}
			st, err := store.NewMySQLStore(dsn)
			require.NoError(t, err)
			t.Cleanup(func() { _ = st.Close() })
			return st
		}},
	}

	for _, sc := range scenarios {
		t.Run(sc.name+"/PutGetDelete", func(t *testing.T) {
			ctx := context.Background()
			st := sc.build(t)

			_, err := st.Get(ctx, 1)
			require.ErrorIs(t, err, store.ErrNotFound)

			require.NoError(t, st.Put(ctx, 1, []byte("hello")))
			got, err := st.Get(ctx, 1)
			require.NoError(t, err)
			require.Equal(t, []byte("hello"), got)

			// Overwrite.
			require.NoError(t, st.Put(ctx, 1, []byte("world")))
			got, err = st.Get(ctx, 1)
			require.NoError(t, err)
			require.Equal(t, []byte("world"), got)

			keys, err := st.Keys(ctx)
			require.NoError(t, err)
			require.ElementsMatch(t, []int64{1}, keys)

			// Idempotent delete.
			require.NoError(t, st.Delete(ctx, 1))
			require.NoError(t, st.Delete(ctx, 1))
			_, err = st.Get(ctx, 1)
			require.ErrorIs(t, err, store.ErrNotFound)
		})

		t.Run(sc.name+"/Clear", func(t *testing.T) {
			ctx := context.Background()
			st := sc.build(t)
			require.NoError(t, st.Put(ctx, 1, []byte("a")))
			require.NoError(t, st.Put(ctx, 2, []byte("b")))
			require.NoError(t, st.Clear(ctx))
			keys, err := st.Keys(ctx)
			require.NoError(t, err)
			require.Empty(t, keys)
		})

		t.Run(sc.name+"/LargeContentRoundTrip", func(t *testing.T) {
			ctx := context.Background()
			st := sc.build(t)

			below := make([]byte, store.InlineThreshold-1)
			at := make([]byte, store.InlineThreshold)
			for i := range below {
				below[i] = byte('a' + i%26)
			}
			for i := range at {
				at[i] = byte('b' + i%26)
			}

			require.Equal(t, store.Inline, store.PolicyFor(below))
			require.Equal(t, store.Persistent, store.PolicyFor(at))

			require.NoError(t, st.Put(ctx, 10, below))
			require.NoError(t, st.Put(ctx, 11, at))

			got, err := st.Get(ctx, 10)
			require.NoError(t, err)
			require.Equal(t, below, got)

			got, err = st.Get(ctx, 11)
			require.NoError(t, err)
			require.Equal(t, at, got)
		})
	}
}

func TestPolicyBoundary(t *testing.T) {
	require.Equal(t, store.Inline, store.PolicyFor(make([]byte, 0)))
	require.Equal(t, store.Inline, store.PolicyFor(make([]byte, store.InlineThreshold-1)))
	require.Equal(t, store.Persistent, store.PolicyFor(make([]byte, store.InlineThreshold)))
}

func TestErrNotFoundIsSentinel(t *testing.T) {
	require.True(t, errors.Is(store.ErrNotFound, store.ErrNotFound))
}
