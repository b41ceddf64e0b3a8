package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// kvSuite runs the same contract against every backend.
type kvSuite struct {
	suite.Suite
	open  func(t *testing.T) Namespaced
	store Namespaced
	ctx   context.Context
}

func (s *kvSuite) SetupTest() {
	s.store = s.open(s.T())
	s.ctx = context.Background()
}

func (s *kvSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func (s *kvSuite) TestMissingKey() {
	v, ok, err := s.store.Namespace("a").Get(s.ctx, KeyToken)
	s.Require().NoError(err)
	s.False(ok)
	s.Empty(v)
}

func (s *kvSuite) TestSetGetOverwrite() {
	kv := s.store.Namespace("a")
	s.Require().NoError(kv.Set(s.ctx, KeyToken, "first"))
	s.Require().NoError(kv.Set(s.ctx, KeyToken, "second"))

	v, ok, err := kv.Get(s.ctx, KeyToken)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("second", v)
}

func (s *kvSuite) TestNamespacesAreIsolated() {
	a, b := s.store.Namespace("a"), s.store.Namespace("b")
	s.Require().NoError(a.Set(s.ctx, KeyUser, `{"id":"1"}`))

	_, ok, err := b.Get(s.ctx, KeyUser)
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(b.Delete(s.ctx, KeyUser))
	v, ok, err := a.Get(s.ctx, KeyUser)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(`{"id":"1"}`, v)
}

func (s *kvSuite) TestDeleteIsIdempotent() {
	kv := s.store.Namespace("a")
	s.Require().NoError(kv.Set(s.ctx, KeyToken, "t"))
	s.Require().NoError(kv.Set(s.ctx, KeyUser, "u"))

	s.Require().NoError(kv.Delete(s.ctx, KeyToken, KeyUser))
	s.Require().NoError(kv.Delete(s.ctx, KeyToken, KeyUser))
	s.Require().NoError(kv.Delete(s.ctx))

	for _, key := range []string{KeyToken, KeyUser} {
		_, ok, err := kv.Get(s.ctx, key)
		s.Require().NoError(err)
		s.False(ok, key)
	}
}

func TestMemoryKV(t *testing.T) {
	suite.Run(t, &kvSuite{open: func(*testing.T) Namespaced { return NewMemory() }})
}

func TestFileKV(t *testing.T) {
	suite.Run(t, &kvSuite{open: func(t *testing.T) Namespaced {
		f, err := NewFile(filepath.Join(t.TempDir(), "cfg", "state.json"))
		require.NoError(t, err)
		return f
	}})
}

func TestSQLiteKV(t *testing.T) {
	suite.Run(t, &kvSuite{open: func(t *testing.T) Namespaced {
		db, err := NewSQLite(filepath.Join(t.TempDir(), "state.db"))
		require.NoError(t, err)
		return db
	}})
}

func TestFilePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	f1, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, f1.Namespace("work").Set(ctx, KeyToken, "abc.def.ghi"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	f2, err := NewFile(path)
	require.NoError(t, err)
	v, ok, err := f2.Namespace("work").Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", v)
}

func TestFileRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	f, err := NewFile(path)
	require.NoError(t, err)
	_, _, err = f.Namespace("default").Get(context.Background(), KeyToken)
	assert.Error(t, err)
}

func TestSQLiteReopenKeepsState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	db, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, db.Namespace("sid-1").Set(ctx, KeyToken, "tok"))
	require.NoError(t, db.Close())

	db, err = NewSQLite(path)
	require.NoError(t, err)
	defer db.Close()
	v, ok, err := db.Namespace("sid-1").Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
}

func TestSQLitePurgeIdle(t *testing.T) {
	ctx := context.Background()
	db, err := NewSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Namespace("web:old").Set(ctx, KeyToken, "t"))
	require.NoError(t, db.Namespace("cli:old").Set(ctx, KeyToken, "t"))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, db.Namespace("web:fresh").Set(ctx, KeyToken, "t"))

	n, err := db.PurgeIdle(ctx, "web:", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err := db.Namespace("web:old").Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = db.Namespace("web:fresh").Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = db.Namespace("cli:old").Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.True(t, ok, "other prefixes untouched")
}
