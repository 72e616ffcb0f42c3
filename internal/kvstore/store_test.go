package kvstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreContracts(t *testing.T) {
	backends := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "blocus.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			require.NoError(t, s.InitSchema(context.Background()))
			return s
		},
	}

	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := build(t)

			_, ok, err := store.Get(ctx, "gym-storage")
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, store.Set(ctx, "gym-storage", []byte(`{"selection":null}`)))
			require.NoError(t, store.Set(ctx, "gym-storage", []byte(`{"selection":{"id":"gym-1"}}`)))

			value, ok, err := store.Get(ctx, "gym-storage")
			require.NoError(t, err)
			require.True(t, ok)
			require.JSONEq(t, `{"selection":{"id":"gym-1"}}`, string(value))

			require.NoError(t, store.Delete(ctx, "gym-storage"))
			_, ok, err = store.Get(ctx, "gym-storage")
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value))
	value[0] = 'z'

	got, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))

	got[1] = 'z'
	again, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(again))
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "blocus.db")

	first, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.InitSchema(ctx))
	require.NoError(t, first.Set(ctx, "gym-storage", []byte("payload")))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })
	require.NoError(t, second.InitSchema(ctx))

	value, ok, err := second.Get(ctx, "gym-storage")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "payload", string(value))
}

func TestPersistenceErrorOnClosedDatabase(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "blocus.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema(ctx))
	require.NoError(t, store.Close())

	err = store.Set(ctx, "gym-storage", []byte("x"))
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, "set", perr.Op)
	require.Equal(t, "gym-storage", perr.Key)
}

func TestMemoryStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMemoryStore().Set(ctx, "k", nil)
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	require.ErrorIs(t, err, context.Canceled)
}
