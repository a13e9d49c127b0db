package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	v := viper.New()
	require.NoError(t, Init(v))

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".skillrow"), cfg.DataDir)
	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, 60*time.Second, cfg.Sync.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Detect.Timeout)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_ConfigFileAndEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".skillrow"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".skillrow", "config.yaml"), []byte(`
store:
  backend: sqlite
sync:
  timeout: 90s
log:
  level: debug
`), 0o644))
	t.Setenv("SKILLROW_DATA_DIR", filepath.Join(home, "data"))

	v := viper.New()
	require.NoError(t, Init(v))

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "data"), cfg.DataDir)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, filepath.Join(home, "data", "state.db"), cfg.Store.Path)
	assert.Equal(t, 90*time.Second, cfg.Sync.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	v := viper.New()
	require.NoError(t, Init(v))
	v.Set("store.backend", "etcd")

	_, err := Load(v)
	assert.Error(t, err)
}
