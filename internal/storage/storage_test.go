package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "pp_tab", []byte("home")))
	require.NoError(t, s.Set(ctx, "pp_tab", []byte("reels")))
	got, err := s.Get(ctx, "pp_tab")
	require.NoError(t, err)
	assert.Equal(t, "reels", string(got))

	require.NoError(t, s.Delete(ctx, "pp_tab"))
	require.NoError(t, s.Delete(ctx, "pp_tab"))
	_, err = s.Get(ctx, "pp_tab")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage())
}

func TestMemoryStorageCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	value := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestSQLiteStorage(t *testing.T) {
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	defer s.Close()

	exerciseStorage(t, s)
}

func TestSQLiteStorageSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mirror.db")

	s, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "pp_user", []byte(`{"name":"Ana"}`)))
	require.NoError(t, s.Close())

	s2, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, "pp_user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ana"}`, string(got))
}

func TestWithPrefix(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStorage()
	a := WithPrefix(base, "tg:1:")
	b := WithPrefix(base, "tg:2:")

	require.NoError(t, a.Set(ctx, "pp_tab", []byte("reels")))

	_, err := b.Get(ctx, "pp_tab")
	assert.ErrorIs(t, err, ErrNotFound)

	raw, err := base.Get(ctx, "tg:1:pp_tab")
	require.NoError(t, err)
	assert.Equal(t, "reels", string(raw))

	require.NoError(t, a.Close())
	assert.Equal(t, 1, base.Keys())
}
