package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/roastery/internal/catalog"
	"github.com/roach88/roastery/internal/config"
	"github.com/roach88/roastery/internal/engine"
	"github.com/roach88/roastery/internal/store"
)

// app holds what a command needs to reach the engine.
type app struct {
	cfg    config.Config
	store  *store.Store
	cat    *catalog.Catalog
	engine *engine.Engine
	logger *slog.Logger
}

// loadConfig reads the config file and environment, then applies flag overrides.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath, o.EnvFile)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	if o.Catalog != "" {
		cfg.Catalog = o.Catalog
	}
	return cfg, nil
}

// newLogger writes text logs to the command's stderr. --verbose forces debug.
func (o *RootOptions) newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	level := cfg.LogLevel()
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// loadCatalog resolves config and loads the catalog without opening the store.
func (o *RootOptions) loadCatalog() (config.Config, *catalog.Catalog, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	cat, err := catalog.LoadDir(cfg.Catalog)
	if err != nil {
		return config.Config{}, nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
	}
	return cfg, cat, nil
}

// openApp loads config and catalog, opens the database and builds the engine.
// The caller must Close the app.
func (o *RootOptions) openApp(cmd *cobra.Command) (*app, error) {
	cfg, cat, err := o.loadCatalog()
	if err != nil {
		return nil, err
	}
	logger := o.newLogger(cmd, cfg)

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database, cfg.StoreOptions()...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	engineOpts := append([]engine.Option{engine.WithLogger(logger)}, o.EngineOptions...)
	return &app{
		cfg:    cfg,
		store:  st,
		cat:    cat,
		engine: engine.New(st, cat, cfg.EngineConfig(), engineOpts...),
		logger: logger,
	}, nil
}

// Close closes the database.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

// commandContext returns the command's context, or Background outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
