package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issuers.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"code":"ALK","name":"Alkaloid"}]`), 0o600))

	records, err := readRecords(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"code":"ALK","name":"Alkaloid"}]`, string(records))

	_, err = readRecords(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "migrate", "ingest"} {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}

	assert.NotNil(t, ingestCmd.Flags().Lookup("kind"))
	assert.NotNil(t, ingestCmd.Flags().Lookup("key"))
}
