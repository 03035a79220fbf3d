package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newGormBackend(t *testing.T) *GormBackend {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "ids.db")), &gorm.Config{})
	require.NoError(t, err)
	b, err := NewGormBackend(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func backends(t *testing.T) map[string]Backend {
	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"file":   NewFileBackend(filepath.Join(t.TempDir(), "nested", "identity.json")),
		"gorm":   newGormBackend(t),
	}
}

func TestStore_SaveLoadResolve(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewStore(b, zaptest.NewLogger(t))

			_, ok := s.Load(ctx)
			assert.False(t, ok, "empty store should load as absent")

			require.NoError(t, s.Save(ctx, "gameA", "u1"))
			id, ok := s.Load(ctx)
			require.True(t, ok)
			assert.Equal(t, Identity{GameID: "gameA", UserID: "u1"}, *id)

			id, ok = s.Resolve(ctx, "gameA")
			require.True(t, ok)
			assert.Equal(t, "u1", id.UserID)

			// saving for another game replaces the only record
			require.NoError(t, s.Save(ctx, "gameB", "u1"))
			_, ok = s.Resolve(ctx, "gameA")
			assert.False(t, ok, "identity for gameB must not resolve for gameA")
			_, ok = s.Resolve(ctx, "gameB")
			assert.True(t, ok)
		})
	}
}

func TestStore_MalformedRecordIsAbsent(t *testing.T) {
	ctx := context.Background()
	cases := []string{`{not json`, `"just a string"`, `{"gameId":"g"}`, ``}
	for _, raw := range cases {
		b := NewMemoryBackend()
		require.NoError(t, b.Put(ctx, Key, raw))
		s := NewStore(b, nil)
		_, ok := s.Load(ctx)
		assert.False(t, ok, "record %q should load as absent", raw)
		_, ok = s.Resolve(ctx, "g")
		assert.False(t, ok)
	}
}

func TestStore_RejectsEmptyIdentity(t *testing.T) {
	s := NewStore(NewMemoryBackend(), nil)
	assert.ErrorIs(t, s.Save(context.Background(), "", "u1"), ErrEmptyIdentity)
	assert.ErrorIs(t, s.Save(context.Background(), "g", ""), ErrEmptyIdentity)
}

func TestStore_ResolveEmptyGameID(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryBackend(), nil)
	require.NoError(t, s.Save(ctx, "g", "u"))
	_, ok := s.Resolve(ctx, "")
	assert.False(t, ok)
}

func TestFileBackend_DurableAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "identity.json")

	first := NewStore(NewFileBackend(path), nil)
	require.NoError(t, first.Save(ctx, "g1", "u9"))

	second := NewStore(NewFileBackend(path), nil)
	id, ok := second.Resolve(ctx, "g1")
	require.True(t, ok)
	assert.Equal(t, "u9", id.UserID)
}

func TestFileBackend_CorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "identity.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	s := NewStore(NewFileBackend(path), zaptest.NewLogger(t))
	_, ok := s.Load(ctx)
	assert.False(t, ok)

	// a fresh save recovers the file
	require.NoError(t, s.Save(ctx, "g", "u"))
	_, ok = s.Resolve(ctx, "g")
	assert.True(t, ok)
}
