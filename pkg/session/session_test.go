package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	file, err := NewFile(filepath.Join(dir, "nested", "session.json"))
	require.NoError(t, err)

	db, err := NewSQLite(filepath.Join(dir, "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"file":   file,
		"sqlite": db,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Load(ctx)
			require.NoError(t, err)
			assert.False(t, ok, "fresh store must be empty")

			blob := Blob{
				Token:     "tok-1",
				Saved:     map[string]map[string]string{"profile": {"fullName": "Asha"}},
				UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			}
			require.NoError(t, store.Save(ctx, blob))

			got, ok, err := store.Load(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "tok-1", got.Token)
			assert.True(t, got.SavedStep("profile"))
			assert.Equal(t, "Asha", got.Saved["profile"]["fullName"])
			assert.True(t, blob.UpdatedAt.Equal(got.UpdatedAt))

			blob.Onboarded = true
			require.NoError(t, store.Save(ctx, blob))
			got, _, err = store.Load(ctx)
			require.NoError(t, err)
			assert.True(t, got.Onboarded)

			require.NoError(t, store.Clear(ctx))
			_, ok, err = store.Load(ctx)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestMemoryStoreCopiesBlob(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	blob := Blob{Saved: map[string]map[string]string{"profile": {"email": "a@b.co"}}}
	require.NoError(t, m.Save(ctx, blob))
	blob.Saved["profile"]["email"] = "changed"

	got, _, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.co", got.Saved["profile"]["email"])
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("redis", "")
	assert.Error(t, err)

	s, err := Open("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
}
