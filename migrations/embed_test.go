package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"00001_users.sql",
		"00002_subscriptions.sql",
		"00003_exercises.sql",
		"00004_dialog_states.sql",
	}, names)

	for _, n := range names {
		body, err := fs.ReadFile(FS, n)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(body), "-- +goose Up"), n)
		assert.True(t, strings.Contains(string(body), "-- +goose Down"), n)
	}
}
