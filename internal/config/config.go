// Package config loads skillrow settings from ~/.skillrow/config.yaml,
// SKILLROW_* environment variables and command-line flags via viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix for environment overrides (SKILLROW_DATA_DIR, ...).
	EnvPrefix = "SKILLROW"

	defaultDirName = ".skillrow"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config is the full skillrow configuration.
type Config struct {
	DataDir string       `mapstructure:"data_dir"`
	Store   StoreConfig  `mapstructure:"store"`
	Sync    SyncConfig   `mapstructure:"sync"`
	Unzip   UnzipConfig  `mapstructure:"unzip"`
	Detect  DetectConfig `mapstructure:"detect"`
	Log     LogConfig    `mapstructure:"log"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"` // sqlite file; defaults to <data_dir>/state.db
}

// SyncConfig bounds git operations.
type SyncConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// UnzipConfig bounds archive extraction.
type UnzipConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// DetectConfig bounds agent detection probes that spawn processes.
type DetectConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig controls the logrus logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "")
	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.path", "")
	v.SetDefault("sync.timeout", 60*time.Second)
	v.SetDefault("unzip.timeout", 60*time.Second)
	v.SetDefault("detect.timeout", 5*time.Second)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
}

// Init wires env handling and the config file search path into v and reads
// the config file if one exists. A missing file is not an error.
func Init(v *viper.Viper) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, defaultDirName))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading config file: %w", err)
		}
	}
	return nil
}

// Load decodes v into a Config and fills derived defaults.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) error {
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, defaultDirName)
	}

	switch cfg.Store.Backend {
	case "":
		cfg.Store.Backend = BackendFile
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q (want %s or %s)", cfg.Store.Backend, BackendFile, BackendSQLite)
	}
	if cfg.Store.Backend == BackendSQLite && cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(cfg.DataDir, "state.db")
	}

	if cfg.Sync.Timeout <= 0 {
		cfg.Sync.Timeout = 60 * time.Second
	}
	if cfg.Unzip.Timeout <= 0 {
		cfg.Unzip.Timeout = 60 * time.Second
	}
	if cfg.Detect.Timeout <= 0 {
		cfg.Detect.Timeout = 5 * time.Second
	}
	return nil
}
