package storage

import (
	"context"
	"fmt"
)

// Supported engine kinds.
const (
	EngineFilesystem = "fs"
	EngineMinio      = "minio"
	EngineS3         = "s3"
	EngineSQLite     = "sqlite"
)

// EngineConfig selects and configures a StorageEngine.
type EngineConfig struct {
	Kind string

	// DataDir is the directory used by the filesystem engine.
	DataDir string

	// DBPath is the database file used by the SQLite engine.
	DBPath string

	// ObjectStore configures the MinIO and S3 engines.
	ObjectStore ObjectStoreOptions
}

// NewEngine builds the engine named by cfg.Kind. Object store engines make
// sure their bucket exists before returning.
func NewEngine(ctx context.Context, cfg EngineConfig) (StorageEngine, error) {
	switch cfg.Kind {
	case EngineFilesystem, "":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("%w: data directory is required", ErrStorageUnavailable)
		}
		return NewLocalFileStorage(cfg.DataDir), nil

	case EngineSQLite:
		if cfg.DBPath == "" {
			return nil, fmt.Errorf("%w: database path is required", ErrStorageUnavailable)
		}
		return NewSQLiteStorage(ctx, cfg.DBPath)

	case EngineMinio:
		engine, err := NewMinioStorage(cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		if err := engine.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return engine, nil

	case EngineS3:
		engine, err := NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		if err := engine.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return engine, nil
	}

	return nil, fmt.Errorf("unknown storage engine %q", cfg.Kind)
}
