package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Key  int64  `json:"key"`
	Name string `json:"name"`
}

func TestWriteJSONL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crew.jsonl")

	require.NoError(t, WriteJSONL(path, []row{{1, "Ana"}, {2, "Bo"}}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"key\":1,\"name\":\"Ana\"}\n{\"key\":2,\"name\":\"Bo\"}\n", string(data))

	// A rewrite replaces the file and leaves no temp files behind.
	require.NoError(t, WriteJSONL(path, []row{{3, "Cy"}}))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"key\":3,\"name\":\"Cy\"}\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteJSONL_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.jsonl")
	require.NoError(t, WriteJSONL[row](path, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestWriteJSONL_MissingDir(t *testing.T) {
	err := WriteJSONL(filepath.Join(t.TempDir(), "missing", "x.jsonl"), []row{{1, "Ana"}})
	assert.Error(t, err)
}

func TestWriteJSONL_Unencodable(t *testing.T) {
	dir := t.TempDir()
	err := WriteJSONL(filepath.Join(dir, "bad.jsonl"), []any{func() {}})
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "the temp file is removed on failure")
}
