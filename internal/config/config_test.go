package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Default(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvDB, "")
	os.Unsetenv(EnvDB)

	cfg := Load()
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvDB, "/tmp/custom.db")

	cfg := Load()
	assert.Equal(t, "/tmp/custom.db", cfg.DBPath)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(EnvDB+"=from_dotenv.db\n"), 0o644))
	t.Chdir(dir)
	t.Setenv(EnvDB, "")
	os.Unsetenv(EnvDB)

	cfg := Load()
	assert.Equal(t, "from_dotenv.db", cfg.DBPath)
}

func TestLoad_RealEnvWinsOverDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(EnvDB+"=from_dotenv.db\n"), 0o644))
	t.Chdir(dir)
	t.Setenv(EnvDB, "from_env.db")

	cfg := Load()
	assert.Equal(t, "from_env.db", cfg.DBPath)
}
