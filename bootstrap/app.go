package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"shrike/config"
	"shrike/core"
	"shrike/detect"
	"shrike/malconf"
	"shrike/mitre"
	"shrike/storage"

	"go.uber.org/zap"
)

// Options selects per-invocation overrides, usually sourced from CLI flags.
type Options struct {
	// ConfigFile loads an explicit config file instead of the search paths.
	ConfigFile string
	// Debug forces debug logging regardless of the config file.
	Debug bool
}

// App represents the analyzer application with all its components.
type App struct {
	// Configuration
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	// Storage
	SQLite  *storage.SQLite
	Reports storage.ReportStorageInterface
	Mongo   *storage.MongoDB
	Mirror  *storage.MongoReportStorage

	// Detection
	Catalog *detect.Catalog
	TTPs    *mitre.Dictionary
	Matcher *detect.Matcher

	metricsServer *http.Server
}

// NewApp creates a new application instance and initializes all components.
func NewApp(ctx context.Context, opts Options) (*App, error) {
	app := &App{}

	// Load configuration first: the log level comes from it
	cfg, err := InitConfig(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	app.Config = cfg

	logger, sugar, err := InitLogger(cfg.Debug || opts.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = sugar

	LogConfig(cfg, sugar)

	// Pre-flight checks
	dirs := DataDirectoriesFromConfig(cfg)
	if err := EnsureDataDirectories(dirs, sugar); err != nil {
		return nil, fmt.Errorf("pre-flight check failed: %w", err)
	}

	// Report storage
	sqlite, err := InitSQLite(dirs, sugar)
	if err != nil {
		return nil, err
	}
	app.SQLite = sqlite
	app.Reports = storage.NewSQLiteReportStorage(sqlite, sugar)

	mongoDB, mirror, err := InitMongoMirror(cfg, sugar)
	if err != nil {
		_ = sqlite.Close()
		return nil, err
	}
	app.Mongo = mongoDB
	app.Mirror = mirror

	// Detection components
	catalog, err := InitCatalog(cfg, sugar)
	if err != nil {
		_ = app.closeStores(ctx)
		return nil, err
	}
	app.Catalog = catalog

	ttps, err := InitTTPs(cfg, sugar)
	if err != nil {
		_ = app.closeStores(ctx)
		return nil, err
	}
	app.TTPs = ttps

	matcher, err := NewMatcher(cfg, sugar)
	if err != nil {
		_ = app.closeStores(ctx)
		return nil, err
	}
	app.Matcher = matcher

	// Optional Prometheus endpoint
	if cfg.Metrics.Enabled {
		app.metricsServer = StartMetricsServer(cfg.Metrics.Listen, sugar)
	}

	return app, nil
}

// NewEngine builds a fresh engine bound to this App's catalog, matcher
// and dictionaries. Engines are single-use: one per analysis.
func (a *App) NewEngine() (*detect.Engine, error) {
	engine, err := detect.NewEngine(detect.EngineConfig{
		Catalog:  a.Catalog,
		Config:   malconf.NewRegistry(a.Sugar),
		TTPs:     a.TTPs,
		Matcher:  a.Matcher,
		Platform: a.Config.Signatures.Platform,
		MarkCap:  a.Config.Signatures.MarkCap,
		Logger:   a.Sugar,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}
	return engine, nil
}

// SaveReport persists through the primary store and, when configured,
// mirrors into MongoDB. A mirror failure is logged, not fatal: the
// primary record already exists.
func (a *App) SaveReport(ctx context.Context, report *core.Report) error {
	if err := a.Reports.SaveReport(ctx, report); err != nil {
		return err
	}
	if a.Mirror != nil {
		if err := a.Mirror.SaveReport(ctx, report); err != nil {
			a.Sugar.Warnf("Failed to mirror report %s to MongoDB: %v", report.ID, err)
		}
	}
	return nil
}

func (a *App) closeStores(ctx context.Context) error {
	var firstErr error
	if a.SQLite != nil {
		if err := a.SQLite.Close(); err != nil {
			firstErr = err
		}
	}
	if a.Mongo != nil {
		if err := a.Mongo.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Shutdown gracefully releases all components.
func (a *App) Shutdown(ctx context.Context) {
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.Sugar.Warnf("Metrics server shutdown: %v", err)
		}
	}

	if err := a.closeStores(ctx); err != nil {
		a.Sugar.Warnf("Store shutdown: %v", err)
	}

	_ = a.Logger.Sync()
}
