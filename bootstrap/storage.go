package bootstrap

import (
	"context"
	"fmt"
	"os"

	"shrike/config"
	"shrike/storage"

	"go.uber.org/zap"
)

// InitSQLite initializes the report database.
func InitSQLite(dirs DataDirectories, sugar *zap.SugaredLogger) (*storage.SQLite, error) {
	sqlite, err := storage.NewSQLite(dirs.SQLite, sugar)
	if err != nil {
		errMsg := ClassifySQLiteError(err, dirs.SQLite)
		fmt.Fprintf(os.Stderr, "\n========================================\n")
		fmt.Fprintf(os.Stderr, "FATAL: SQLite Initialization Failed\n")
		fmt.Fprintf(os.Stderr, "========================================\n")
		fmt.Fprintf(os.Stderr, "%s\n", errMsg)
		fmt.Fprintf(os.Stderr, "========================================\n\n")
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}

	sugar.Debug("SQLite initialized successfully")
	return sqlite, nil
}

// InitMongoMirror connects the optional MongoDB report mirror. Returns
// nils when the mirror is disabled in configuration.
func InitMongoMirror(cfg *config.Config, sugar *zap.SugaredLogger) (*storage.MongoDB, *storage.MongoReportStorage, error) {
	if !cfg.MongoDB.Enabled {
		return nil, nil, nil
	}

	mongoDB, err := storage.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.MaxPoolSize, sugar)
	if err != nil {
		errMsg := ClassifyMongoError(err, cfg.MongoDB.URI)
		fmt.Fprintf(os.Stderr, "\n========================================\n")
		fmt.Fprintf(os.Stderr, "FATAL: MongoDB Connection Failed\n")
		fmt.Fprintf(os.Stderr, "========================================\n")
		fmt.Fprintf(os.Stderr, "%s\n", errMsg)
		fmt.Fprintf(os.Stderr, "========================================\n\n")
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	mirror := storage.NewMongoReportStorage(mongoDB, cfg.MongoDB.Collection, sugar)
	if err := mirror.EnsureIndexes(context.Background()); err != nil {
		sugar.Warnf("Failed to ensure MongoDB report indexes: %v", err)
	}

	return mongoDB, mirror, nil
}
