package cmd

import (
	"fmt"

	"arxcore/core/config"
	"arxcore/core/driver"
	"arxcore/core/logger"
	"arxcore/core/objectstore"
	"arxcore/core/pending"
	"arxcore/core/storage"
	"arxcore/feature/bimjson"
	"arxcore/feature/bucket"
	"arxcore/feature/fieldscan"

	"go.uber.org/zap"
)

// session bundles what every repository command needs: configuration,
// a logger and the opened object store.
type session struct {
	cfg   *config.Config
	log   *zap.Logger
	store *objectstore.Store
}

// openSession loads configuration, builds the logger and opens the
// repository at the configured directory.
func openSession() (*session, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := objectstore.Open(cfg.Repo.Dir, l)
	if err != nil {
		return nil, fmt.Errorf("no repository at %s (run 'arxcore init' first): %w", cfg.Repo.Dir, err)
	}
	return &session{cfg: cfg, log: l, store: store}, nil
}

// buildRegistry registers every available driver. Low-confidence field
// captures route into the pending registry instead of the merge path.
func buildRegistry(cfg *config.Config, reg *pending.Registry, l *zap.Logger) (*driver.Registry, error) {
	registry := driver.NewRegistry()

	if err := registry.Register(bimjson.New(l), driver.Metadata{
		Priority:    10,
		Description: "filesystem BIM JSON export",
	}); err != nil {
		return nil, err
	}
	if err := registry.Register(fieldscan.New(reg, l), driver.Metadata{
		Priority:    10,
		Description: "field capture JSONL feed",
	}); err != nil {
		return nil, err
	}

	client, err := storage.NewClient(cfg.Storage)
	if err != nil {
		return nil, withCode(exitIO, fmt.Errorf("failed to create storage client: %w", err))
	}
	if err := registry.Register(bucket.New(client, l), driver.Metadata{
		Priority:    10,
		Description: "object storage bucket export",
	}); err != nil {
		return nil, err
	}
	return registry, nil
}
