// Package app wires settings, the metastore, the engine, storage, and the
// services into one application value shared by the CLI and the server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"tfl-lake/internal/config"
	"tfl-lake/internal/db"
	"tfl-lake/internal/db/crypto"
	"tfl-lake/internal/db/repository"
	"tfl-lake/internal/engine"
	"tfl-lake/internal/lakepath"
	"tfl-lake/internal/service/ingestion"
	"tfl-lake/internal/service/pipeline"
	"tfl-lake/internal/service/setup"
	"tfl-lake/internal/storage"
)

// Deps holds what main() must provide.
type Deps struct {
	Settings *config.Settings
	Logger   *slog.Logger
}

// Repositories groups the metastore repositories.
type Repositories struct {
	Credentials *repository.StorageCredentialRepo
	Locations   *repository.ExternalLocationRepo
	Catalogs    *repository.CatalogRepo
	Volumes     *repository.VolumeRepo
	Runs        *repository.PipelineRunRepo
}

// App is the fully wired application.
type App struct {
	Settings     *config.Settings
	Config       *config.LakeConfig
	Paths        *lakepath.Builder
	Metastore    *db.Metastore
	Engine       *engine.Engine
	Storage      *storage.Resolver
	Repos        Repositories
	Setup        *setup.Service
	Ingestion    *ingestion.Service
	Orchestrator *pipeline.Orchestrator
	Logger       *slog.Logger
}

// New loads the lake configuration for the resolved environment, opens the
// metastore and the engine, and wires the services. Nothing is attached to
// the engine yet; call Connect before ingesting.
func New(ctx context.Context, deps Deps) (*App, error) {
	s := deps.Settings
	logger := deps.Logger

	cfg, err := config.LoadLakeConfig(s.ConfigPath, s.Environment)
	if err != nil {
		return nil, err
	}
	paths := lakepath.New(cfg)

	enc, err := crypto.NewEncryptor(s.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("init encryptor: %w", err)
	}

	meta, err := db.OpenMetastore(ctx, s.MetaDBPath)
	if err != nil {
		return nil, err
	}

	eng, err := engine.Open(ctx, engine.Options{
		Backend:     s.CatalogBackend,
		MetadataDir: s.LakeMetadataDir,
		Cloud:       !s.LocalStorage(),
	}, logger)
	if err != nil {
		_ = meta.Close()
		return nil, err
	}

	repos := Repositories{
		Credentials: repository.NewStorageCredentialRepo(meta.Write, enc),
		Locations:   repository.NewExternalLocationRepo(meta.Write),
		Catalogs:    repository.NewCatalogRepo(meta.Write),
		Volumes:     repository.NewVolumeRepo(meta.Write),
		Runs:        repository.NewPipelineRunRepo(meta.Write),
	}

	var localRoot string
	if s.LocalStorage() {
		if localRoot, err = filepath.Abs(s.LocalStorageRoot); err != nil {
			_ = eng.Close()
			_ = meta.Close()
			return nil, fmt.Errorf("resolve LOCAL_STORAGE_ROOT: %w", err)
		}
	}
	resolver := storage.NewResolver(storage.ResolverOptions{
		LocalRoot:         localRoot,
		DefaultCredential: cfg.Storage.StorageCredential,
		Locations:         repos.Locations,
		Credentials:       repos.Credentials,
	}, logger)

	setupSvc := setup.New(setup.Deps{
		Paths:       paths,
		Engine:      eng,
		Storage:     resolver,
		Credentials: repos.Credentials,
		Locations:   repos.Locations,
		Catalogs:    repos.Catalogs,
		Volumes:     repos.Volumes,
	}, logger)
	ingestSvc := ingestion.NewService(eng, resolver, repos.Volumes, paths, logger)
	orch := pipeline.NewOrchestrator(ingestSvc, eng, repos.Runs, paths, s.JobTimeout, logger)

	logger.Info("application wired",
		"environment", cfg.Environment,
		"catalog", cfg.Catalog,
		"backend", eng.Backend(),
		"local_storage", s.LocalStorage(),
		"metastore_version", meta.Version,
	)

	return &App{
		Settings:     s,
		Config:       cfg,
		Paths:        paths,
		Metastore:    meta,
		Engine:       eng,
		Storage:      resolver,
		Repos:        repos,
		Setup:        setupSvc,
		Ingestion:    ingestSvc,
		Orchestrator: orch,
		Logger:       logger,
	}, nil
}

// Connect attaches the provisioned catalog to the engine. Attachments and
// secrets live in memory, so every process calls this once before ingesting.
func (a *App) Connect(ctx context.Context) error {
	return a.Setup.Connect(ctx)
}

// Close cancels background runs and waits for them to be recorded, then
// closes the engine and the metastore.
func (a *App) Close() error {
	a.Orchestrator.Shutdown()
	return errors.Join(a.Engine.Close(), a.Metastore.Close())
}
