// Package laketest builds a self-contained lake workspace for tests: a
// migrated SQLite metastore, a DuckDB engine with a file-backed catalog, and
// cloud storage emulated under a temporary directory.
package laketest

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tfl-lake/internal/config"
	internaldb "tfl-lake/internal/db"
	"tfl-lake/internal/db/crypto"
	"tfl-lake/internal/db/repository"
	"tfl-lake/internal/engine"
	"tfl-lake/internal/lakepath"
	"tfl-lake/internal/service/setup"
	"tfl-lake/internal/storage"
)

// EncryptionKey is the credential encryption key used by test workspaces.
const EncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// Workspace bundles the collaborators of a provisioned test lake.
type Workspace struct {
	Config      *config.LakeConfig
	Paths       *lakepath.Builder
	Engine      *engine.Engine
	Storage     *storage.Resolver
	Local       *storage.LocalStore
	Credentials *repository.StorageCredentialRepo
	Locations   *repository.ExternalLocationRepo
	Catalogs    *repository.CatalogRepo
	Volumes     *repository.VolumeRepo
	Runs        *repository.PipelineRunRepo
	Setup       *setup.Service
	Logger      *slog.Logger
}

// Config returns a dev environment configuration.
func Config() *config.LakeConfig {
	return &config.LakeConfig{
		Environment: "dev",
		Catalog:     "tfl_dev",
		Schemas:     config.SchemaNames{Bronze: "bronze", Silver: "silver", Gold: "gold"},
		Storage: config.StorageConfig{
			AccountName:       "tflstorage",
			StorageCredential: "tfl_cred",
			Containers: map[string]string{
				"landing":     "landing",
				"bronze":      "bronze",
				"silver":      "silver",
				"gold":        "gold",
				"checkpoints": "chkpts",
			},
			ExternalLocations: map[string]string{
				"landing": "tfl_landing",
				"bronze":  "tfl_bronze",
				"silver":  "tfl_silver",
				"gold":    "tfl_gold",
			},
		},
	}
}

// New builds an unprovisioned workspace on the DuckDB file backend, which
// needs no extension downloads.
func New(t *testing.T) *Workspace {
	t.Helper()
	w, err := newWorkspace(t, engine.BackendDuckDB)
	require.NoError(t, err)
	return w
}

// NewDuckLake builds an unprovisioned workspace on the DuckLake backend. The
// test is skipped when the extension cannot be installed.
func NewDuckLake(t *testing.T) *Workspace {
	t.Helper()
	w, err := newWorkspace(t, engine.BackendDuckLake)
	if err != nil {
		t.Skipf("ducklake extension unavailable: %v", err)
	}
	return w
}

func newWorkspace(t *testing.T, backend string) (*Workspace, error) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)

	writeDB := internaldb.OpenTestMetastore(t).Write
	enc, err := crypto.NewEncryptor(EncryptionKey)
	require.NoError(t, err)

	eng, err := engine.Open(ctx, engine.Options{
		Backend:     backend,
		MetadataDir: filepath.Join(dir, "meta"),
	}, logger)
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { _ = eng.Close() })

	cfg := Config()
	w := &Workspace{
		Config:      cfg,
		Paths:       lakepath.New(cfg),
		Engine:      eng,
		Local:       storage.NewLocalStore(filepath.Join(dir, "storage")),
		Credentials: repository.NewStorageCredentialRepo(writeDB, enc),
		Locations:   repository.NewExternalLocationRepo(writeDB),
		Catalogs:    repository.NewCatalogRepo(writeDB),
		Volumes:     repository.NewVolumeRepo(writeDB),
		Runs:        repository.NewPipelineRunRepo(writeDB),
		Logger:      logger,
	}
	w.Storage = storage.NewResolver(storage.ResolverOptions{
		LocalRoot:         w.Local.Root,
		DefaultCredential: cfg.Storage.StorageCredential,
		Locations:         w.Locations,
		Credentials:       w.Credentials,
	}, logger)
	w.Setup = setup.New(setup.Deps{
		Paths:       w.Paths,
		Engine:      eng,
		Storage:     w.Storage,
		Credentials: w.Credentials,
		Locations:   w.Locations,
		Catalogs:    w.Catalogs,
		Volumes:     w.Volumes,
	}, logger)
	return w, nil
}

// Provisioned builds a workspace and runs setup on it.
func Provisioned(t *testing.T) *Workspace {
	t.Helper()
	return provision(t, New(t))
}

// ProvisionedDuckLake is Provisioned on the DuckLake backend.
func ProvisionedDuckLake(t *testing.T) *Workspace {
	t.Helper()
	return provision(t, NewDuckLake(t))
}

func provision(t *testing.T, w *Workspace) *Workspace {
	t.Helper()
	_, err := w.Setup.Provision(context.Background())
	require.NoError(t, err)
	return w
}

// LandingURL returns the storage URL of a file in the landing volume.
func (w *Workspace) LandingURL(rel string) string {
	return w.Paths.StoragePath(config.LayerLanding, rel)
}

// WriteLanding drops a raw file into the landing volume.
func (w *Workspace) WriteLanding(t *testing.T, rel, content string) string {
	t.Helper()
	url := w.LandingURL(rel)
	require.NoError(t, w.Local.Write(context.Background(), url, []byte(content)))
	return url
}
