package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, path, err := LoadConfig(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, "sqlite", cfg.Dialect)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Empty(t, cfg.Database.DSN)
	assert.Empty(t, cfg.Schema)
}

func TestLoadConfigFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	config := `
schema: schema/blog.cue
scenarios: testdata/scenarios
dialect: mysql
database:
  driver: mysql
  dsn: "user:pw@/blog"
`
	require.NoError(t, afero.WriteFile(fs, "/proj/drel.yaml", []byte(config), 0644))

	cfg, path, err := LoadConfig(fs, "/proj/drel.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/proj/drel.yaml", path)
	assert.Equal(t, filepath.Join("/proj", "schema", "blog.cue"), cfg.Schema, "relative to the config file")
	assert.Equal(t, filepath.Join("/proj", "testdata", "scenarios"), cfg.Scenarios)
	assert.Equal(t, "mysql", cfg.Dialect)
	assert.Equal(t, DatabaseConfig{Driver: "mysql", DSN: "user:pw@/blog"}, cfg.Database)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/drel.yaml", []byte("database:\n  dsn: file.db\n"), 0644))
	t.Setenv("DREL_DATABASE_DSN", "env.db")

	cfg, _, err := LoadConfig(fs, "/proj/drel.yaml")
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Database.DSN)
}

func TestLoadConfigDotEnv(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/drel.yaml", []byte("dialect: sqlite\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/proj/.env", []byte("DREL_DIALECT=postgres\nDREL_DATABASE_DRIVER=pgx\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/proj/.env.local", []byte("DREL_DATABASE_DRIVER=postgres\n"), 0644))

	// Register the variables so t.Setenv restores them afterwards.
	t.Setenv("DREL_DIALECT", "")
	t.Setenv("DREL_DATABASE_DRIVER", "")
	os.Unsetenv("DREL_DIALECT")
	os.Unsetenv("DREL_DATABASE_DRIVER")

	cfg, _, err := LoadConfig(fs, "/proj/drel.yaml")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Dialect, ".env beats the config file")
	assert.Equal(t, "postgres", cfg.Database.Driver, ".env.local beats .env")
}

func TestLoadConfigDotEnvKeepsEnvironment(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/drel.yaml", []byte("{}\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/proj/.env", []byte("DREL_DIALECT=postgres\n"), 0644))
	t.Setenv("DREL_DIALECT", "mysql")

	cfg, _, err := LoadConfig(fs, "/proj/drel.yaml")
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Dialect)
}

func TestFindConfigFileWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "drel.yml"), []byte("dialect: mysql\n"), 0644))
	t.Chdir(nested)

	path, err := findConfigFile(afero.NewOsFs(), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "drel.yml"), path)
}

func TestFindConfigFileStopsAtGitRoot(t *testing.T) {
	root := t.TempDir()
	repo := filepath.Join(root, "repo")
	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "drel.yaml"), []byte("{}\n"), 0644))
	t.Chdir(repo)

	path, err := findConfigFile(afero.NewOsFs(), "")
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestLoadConfigErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/drel.yaml", []byte("database: [\n"), 0644))

	_, _, err := LoadConfig(fs, "/missing.yaml")
	assert.ErrorContains(t, err, "config file not found")

	_, _, err = LoadConfig(fs, "/proj/drel.yaml")
	assert.ErrorContains(t, err, "reading config file")
}
