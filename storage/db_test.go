package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Database {
	t.Helper()
	dir := t.TempDir()

	level, err := NewLevelDB(filepath.Join(dir, "level"))
	require.NoError(t, err)
	t.Cleanup(level.Close)

	bolt, err := NewBoltDB(filepath.Join(dir, "market.bolt"), nil)
	require.NoError(t, err)
	t.Cleanup(bolt.Close)

	return map[string]Database{
		"memory":  NewMemDB(),
		"leveldb": level,
		"bolt":    bolt,
	}
}

func TestDatabaseGetPutDelete(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := db.Get([]byte("missing"))
			require.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)

			require.NoError(t, db.Put([]byte("a"), []byte("1")))
			got, err := db.Get([]byte("a"))
			require.NoError(t, err)
			require.Equal(t, []byte("1"), got)

			ok, err := db.Has([]byte("a"))
			require.NoError(t, err)
			require.True(t, ok)

			require.NoError(t, db.Delete([]byte("a")))
			ok, err = db.Has([]byte("a"))
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestDatabaseIteratePrefixOrdered(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("p/2"), []byte("two")))
			require.NoError(t, db.Put([]byte("p/1"), []byte("one")))
			require.NoError(t, db.Put([]byte("q/1"), []byte("other")))

			var keys []string
			require.NoError(t, db.Iterate([]byte("p/"), func(key, value []byte) error {
				keys = append(keys, string(key))
				return nil
			}))
			require.Equal(t, []string{"p/1", "p/2"}, keys)

			stop := errors.New("stop")
			visited := 0
			err := db.Iterate([]byte("p/"), func(key, value []byte) error {
				visited++
				return stop
			})
			require.ErrorIs(t, err, stop)
			require.Equal(t, 1, visited)
		})
	}
}

func TestBatchAppliesAllWrites(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, db.Put([]byte("gone"), []byte("x")))

			batch := db.NewBatch()
			batch.Put([]byte("k1"), []byte("v1"))
			batch.Put([]byte("k2"), []byte("v2"))
			batch.Delete([]byte("gone"))
			require.Equal(t, 3, batch.Len())
			require.NoError(t, batch.Write())

			for _, key := range []string{"k1", "k2"} {
				ok, err := db.Has([]byte(key))
				require.NoError(t, err)
				require.True(t, ok, key)
			}
			ok, err := db.Has([]byte("gone"))
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open("cassandra", t.TempDir())
	require.Error(t, err)

	db, err := Open(BackendMemory, "")
	require.NoError(t, err)
	db.Close()
}
