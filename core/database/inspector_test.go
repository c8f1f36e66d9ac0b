package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTableColumns(t *testing.T) {
	db, err := Connect(Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)

	err = db.Exec("CREATE TABLE entities (path TEXT PRIMARY KEY, kind TEXT, pos_x REAL)").Error
	require.NoError(t, err)

	columns, err := GetTableColumns(db, "entities")
	require.NoError(t, err)
	require.Len(t, columns, 3)

	colMap := make(map[string]string)
	for _, col := range columns {
		colMap[col.Field] = col.Type
	}
	assert.Equal(t, "text", colMap["path"])
	assert.Equal(t, "text", colMap["kind"])
	assert.Equal(t, "real", colMap["pos_x"])

	// PRAGMA table_info yields no rows for an unknown table, not an
	// error.
	cols, err := GetTableColumns(db, "non_existent")
	assert.NoError(t, err)
	assert.Empty(t, cols)
}

func TestHasColumns(t *testing.T) {
	db, err := Connect(Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)

	require.NoError(t, db.Exec("CREATE TABLE entities (path TEXT, kind TEXT)").Error)

	ok, err := HasColumns(db, "entities", "path", "kind")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasColumns(db, "entities", "path", "confidence")
	require.NoError(t, err)
	assert.False(t, ok)
}
