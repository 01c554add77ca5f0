package core

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"herdbook/internal/blob"
	"herdbook/internal/config"
	"herdbook/internal/infra/persistence/memory"
	"herdbook/internal/infra/persistence/postgres"
	"herdbook/internal/infra/persistence/sqlite"
	"herdbook/internal/species"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore opens the backend selected by cfg.StorageDriver
// (default sqlite).
func OpenPersistentStore(ctx context.Context, cfg *config.Config, engine *RulesEngine) (PersistentStore, error) {
	driver := StorageDriver(cfg.StorageDriver)
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// OpenLitterArchive returns the archive selected by cfg.BlobDriver, or nil
// when archiving is disabled.
func OpenLitterArchive(ctx context.Context, cfg *config.Config) (*LitterArchive, error) {
	if cfg.BlobDriver == "" || cfg.BlobDriver == "none" {
		return nil, nil
	}
	store, err := blob.Open(ctx, blob.Options{
		Driver: blob.Driver(cfg.BlobDriver),
		FSRoot: cfg.BlobFSRoot,
		S3: blob.S3Config{
			Bucket:    cfg.BlobS3Bucket,
			Region:    cfg.BlobS3Region,
			Endpoint:  cfg.BlobS3Endpoint,
			PathStyle: cfg.BlobS3PathStyle,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open litter archive: %w", err)
	}
	return NewLitterArchive(store), nil
}

// OpenService wires a Service from cfg: store, species catalog, litter
// archive, relationship cache and random source. reg receives the
// relationship cache and operation metrics when non-nil.
func OpenService(ctx context.Context, cfg *config.Config, logger Logger, reg prometheus.Registerer, opts ...Option) (*Service, error) {
	catalog, err := species.Load(cfg.SpeciesFile)
	if err != nil {
		return nil, err
	}
	store, err := OpenPersistentStore(ctx, cfg, NewDefaultRulesEngine())
	if err != nil {
		return nil, err
	}
	archive, err := OpenLitterArchive(ctx, cfg)
	if err != nil {
		return nil, err
	}
	base := []Option{
		WithLogger(logger),
		WithSpecies(catalog),
		WithLitterArchive(archive),
		WithRandomSource(NewRandomSource(cfg.RandomSeed)),
	}
	if reg != nil {
		base = append(base, WithMetricsRecorder(NewPrometheusMetricsRecorder(reg)))
	}
	if cfg.RelationshipCacheSize > 0 {
		ttl := cfg.RelationshipCacheTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		base = append(base, WithRelationshipCache(NewRelationshipCache(cfg.RelationshipCacheSize, ttl, reg)))
	}
	return NewService(store, append(base, opts...)...), nil
}
