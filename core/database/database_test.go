package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	t.Run("Sqlite", func(t *testing.T) {
		cfg := Config{
			Driver: "sqlite",
			Name:   filepath.Join(t.TempDir(), "arx.db"),
		}
		db, err := Connect(cfg)
		require.NoError(t, err)
		assert.NotNil(t, db)
	})

	t.Run("Sqlite Is Default", func(t *testing.T) {
		db, err := Connect(Config{Name: ":memory:"})
		require.NoError(t, err)
		assert.NotNil(t, db)
	})

	t.Run("Unknown Driver", func(t *testing.T) {
		db, err := Connect(Config{Driver: "oracle"})
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("Invalid MySQL Connection", func(t *testing.T) {
		cfg := Config{
			Driver:         "mysql",
			Host:           "localhost",
			Port:           9999, // Unused port
			User:           "root",
			Password:       "wrongpassword",
			Name:           "arxcore",
			TimeoutSeconds: 1,
		}

		// Connect should fail (timeout or refused)
		db, err := Connect(cfg)
		assert.Error(t, err)
		assert.Nil(t, db)
	})
}
