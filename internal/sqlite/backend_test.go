package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/narwhal/pkg/types"
)

func TestOpen_OnDisk(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "nested", "data")
	config := types.Config{Backend: types.BackendSQLite, DataDir: dataDir}

	db, err := Open(config)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("create table scratch (id integer primary key, v text)")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dataDir, DBFileName))
	assert.NoError(t, err, "database file should exist")
	assert.Equal(t, filepath.Join(dataDir, DBFileName), Path(config))
}

func TestOpen_InMemory(t *testing.T) {
	db, err := Open(types.Config{Backend: types.BackendSQLite, InMemory: true})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("create table scratch (id integer primary key autoincrement, v text)")
	require.NoError(t, err)

	res, err := db.Exec("insert into scratch (v) values (?)", "x")
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	// A second statement must see the same in-memory database.
	var n int
	require.NoError(t, db.Get(&n, "select count(1) from scratch"))
	assert.Equal(t, 1, n)
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(types.Config{Backend: "postgres", DataDir: t.TempDir()})
	assert.ErrorIs(t, err, types.ErrBackendUnknown)

	_, err = Open(types.Config{Backend: types.BackendSQLite})
	assert.ErrorIs(t, err, types.ErrDataDirEmpty)
}
