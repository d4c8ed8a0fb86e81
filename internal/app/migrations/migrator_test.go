package migrations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLFiles_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_jobs.sql", "001_init.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o700))

	files, err := sqlFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql", "002_jobs.sql"}, files)
}

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, "001", migrationVersion("001_init.sql"))
	assert.Equal(t, "010", migrationVersion("010.sql"))
}
