package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/barysiuk/skillrow/internal/config"
	"github.com/barysiuk/skillrow/internal/core"
	"github.com/barysiuk/skillrow/internal/logger"
	"github.com/barysiuk/skillrow/internal/store"
)

// deps holds shared dependencies for CLI commands.
type deps struct {
	cfg     *config.Config
	store   store.Store
	manager *core.Manager
}

// newDeps loads configuration, opens the state store and loads the engine.
// Called lazily by commands that need them; callers must Close the result.
func newDeps(ctx context.Context) (*deps, error) {
	if err := config.Init(v); err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	if err := logger.SetLogLevel(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	logger.SetLogFormat(cfg.Log.Format)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	m, err := core.Open(ctx, st,
		core.WithDataDir(cfg.DataDir),
		core.WithSyncTimeout(cfg.Sync.Timeout),
		core.WithUnzipTimeout(cfg.Unzip.Timeout),
		core.WithDetectTimeout(cfg.Detect.Timeout),
	)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("loading state: %w", err)
	}

	return &deps{cfg: cfg, store: st, manager: m}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		st, err := store.OpenSQLite(ctx, cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("opening state database: %w", err)
		}
		return st, nil
	default:
		return store.NewFileStore(filepath.Join(cfg.DataDir, "state")), nil
	}
}

// Close releases the state store.
func (d *deps) Close() error {
	return d.store.Close()
}
