// Package setup provisions the lake workspace for one environment: governance
// records in the metastore plus the attached catalog, its schemas, and the
// landing volume. Every step creates only what is missing.
package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tfl-lake/internal/config"
	"tfl-lake/internal/domain"
	"tfl-lake/internal/engine"
	"tfl-lake/internal/lakepath"
	"tfl-lake/internal/storage"
)

// Engine is the subset of *engine.Engine the setup service drives.
type Engine interface {
	AttachCatalog(ctx context.Context, name, dataPath string) error
	CreateSchema(ctx context.Context, catalog, schema string) (bool, error)
	CreateSecret(ctx context.Context, name string, cred *domain.StorageCredential, scope string) error
}

var _ Engine = (*engine.Engine)(nil)

// Deps are the collaborators of a Service.
type Deps struct {
	Paths       *lakepath.Builder
	Engine      Engine
	Storage     *storage.Resolver
	Credentials domain.StorageCredentialRepository
	Locations   domain.ExternalLocationRepository
	Catalogs    domain.CatalogRepository
	Volumes     domain.VolumeRepository
}

// Service provisions and connects the lake workspace.
type Service struct {
	Deps
	cfg    *config.LakeConfig
	logger *slog.Logger
}

// New creates a setup Service.
func New(deps Deps, logger *slog.Logger) *Service {
	return &Service{
		Deps:   deps,
		cfg:    deps.Paths.Config(),
		logger: logger.With("component", "setup"),
	}
}

// Object reports one provisioned object.
type Object struct {
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
	Created  bool   `json:"created"`
}

// Report summarizes a Provision call.
type Report struct {
	Environment        string   `json:"environment"`
	CredentialVerified bool     `json:"credential_verified"`
	Locations          []Object `json:"external_locations"`
	Catalog            Object   `json:"catalog"`
	Schemas            []Object `json:"schemas"`
	Volume             Object   `json:"volume"`
}

// CatalogComment is recorded with the catalog on creation.
func CatalogComment(env string) string {
	return fmt.Sprintf("TFL Analytics Pipeline catalog for %s environment", env)
}

// Provision creates whatever is missing of the environment's workspace.
// Running it again changes nothing.
func (s *Service) Provision(ctx context.Context) (*Report, error) {
	report := &Report{Environment: s.cfg.Environment}

	cred, err := s.verifyCredential(ctx)
	if err != nil {
		return nil, err
	}
	report.CredentialVerified = cred != nil

	if cred != nil {
		if report.Locations, err = s.registerLocations(ctx); err != nil {
			return nil, err
		}
	}

	if report.Catalog, err = s.ensureCatalog(ctx); err != nil {
		return nil, err
	}
	if err := s.attach(ctx, cred); err != nil {
		return nil, err
	}

	catalog := s.Paths.Catalog()
	for _, layer := range []string{config.LayerLanding, config.LayerBronze, config.LayerSilver, config.LayerGold} {
		schema := s.Paths.Schema(layer)
		created, err := s.Engine.CreateSchema(ctx, catalog, schema)
		if err != nil {
			return nil, err
		}
		if created {
			s.logger.Info("schema created", "schema", catalog+"."+schema)
		}
		report.Schemas = append(report.Schemas, Object{Name: catalog + "." + schema, Created: created})
	}

	if report.Volume, err = s.ensureVolume(ctx); err != nil {
		return nil, err
	}
	return report, nil
}

// Connect prepares the engine for ingestion against an already provisioned
// workspace: storage secrets are registered and the catalog is attached.
func (s *Service) Connect(ctx context.Context) error {
	catalog := s.Paths.Catalog()
	if _, err := s.Catalogs.GetByName(ctx, catalog); err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return fmt.Errorf("catalog %q is not provisioned; run setup first: %w", catalog, err)
		}
		return err
	}
	cred, err := s.verifyCredential(ctx)
	if err != nil {
		return err
	}
	return s.attach(ctx, cred)
}

// verifyCredential checks that the environment's storage credential exists.
// In local storage mode a missing credential is tolerated and nil returned.
func (s *Service) verifyCredential(ctx context.Context) (*domain.StorageCredential, error) {
	name := s.cfg.Storage.StorageCredential
	cred, err := s.Credentials.GetByName(ctx, name)
	if err == nil {
		return cred, nil
	}
	var nf *domain.NotFoundError
	if errors.As(err, &nf) && s.Storage.Local() {
		s.logger.Warn("storage credential not registered; continuing with local storage", "credential", name)
		return nil, nil
	}
	return nil, fmt.Errorf("verify storage credential %q: %w", name, err)
}

func (s *Service) registerLocations(ctx context.Context) ([]Object, error) {
	var out []Object
	for _, layer := range s.cfg.Layers() {
		name := s.cfg.Storage.ExternalLocations[layer]
		url := s.Paths.LayerLocation(layer)

		existing, err := s.Locations.GetByName(ctx, name)
		if err == nil {
			if existing.URL != url {
				s.logger.Warn("external location points elsewhere; leaving it untouched",
					"location", name, "url", existing.URL, "expected", url)
			}
			out = append(out, Object{Name: name, Location: existing.URL})
			continue
		}
		if !isNotFound(err) {
			return nil, fmt.Errorf("lookup external location %q: %w", name, err)
		}

		_, err = s.Locations.Create(ctx, &domain.ExternalLocation{
			Name:           name,
			URL:            url,
			CredentialName: s.cfg.Storage.StorageCredential,
			Comment:        fmt.Sprintf("%s layer for %s", layer, s.cfg.Environment),
		})
		created := err == nil
		if err != nil && !isConflict(err) {
			return nil, fmt.Errorf("create external location %q: %w", name, err)
		}
		if created {
			s.logger.Info("external location created", "location", name, "url", url)
		}
		out = append(out, Object{Name: name, Location: url, Created: created})
	}
	return out, nil
}

func (s *Service) ensureCatalog(ctx context.Context) (Object, error) {
	name := s.Paths.Catalog()
	obj := Object{Name: name, Location: s.Paths.LayerLocation(config.LayerBronze)}

	if _, err := s.Catalogs.GetByName(ctx, name); err == nil {
		return obj, nil
	} else if !isNotFound(err) {
		return obj, fmt.Errorf("lookup catalog %q: %w", name, err)
	}

	_, err := s.Catalogs.Create(ctx, &domain.Catalog{Name: name, Comment: CatalogComment(s.cfg.Environment)})
	if err != nil && !isConflict(err) {
		return obj, fmt.Errorf("create catalog %q: %w", name, err)
	}
	obj.Created = err == nil
	if obj.Created {
		s.logger.Info("catalog created", "catalog", name)
	}
	return obj, nil
}

// attach registers secrets for cloud access and attaches the catalog with its
// data files in the bronze layer location.
func (s *Service) attach(ctx context.Context, cred *domain.StorageCredential) error {
	if !s.Storage.Local() && cred != nil {
		if err := s.Engine.CreateSecret(ctx, secretName(cred.Name), cred, ""); err != nil {
			return err
		}
	}
	dataPath, err := s.Storage.EnginePath(s.Paths.LayerLocation(config.LayerBronze))
	if err != nil {
		return fmt.Errorf("resolve catalog data path: %w", err)
	}
	return s.Engine.AttachCatalog(ctx, s.Paths.Catalog(), dataPath)
}

func (s *Service) ensureVolume(ctx context.Context) (Object, error) {
	catalog := s.Paths.Catalog()
	ident := s.Paths.VolumeIdentifier(domain.LandingVolumeSchema, domain.LandingVolumeName)
	url := s.Paths.LayerLocation(config.LayerLanding)

	existing, err := s.Volumes.GetByName(ctx, catalog, domain.LandingVolumeSchema, domain.LandingVolumeName)
	if err == nil {
		return Object{Name: ident, Location: existing.StorageLocation}, nil
	}
	if !isNotFound(err) {
		return Object{}, fmt.Errorf("lookup volume %s: %w", ident, err)
	}

	_, err = s.Volumes.Create(ctx, &domain.Volume{
		Name:            domain.LandingVolumeName,
		CatalogName:     catalog,
		SchemaName:      domain.LandingVolumeSchema,
		VolumeType:      domain.VolumeTypeExternal,
		StorageLocation: url,
		Comment:         "Raw TfL feed files",
	})
	if err != nil && !isConflict(err) {
		return Object{}, fmt.Errorf("create volume %s: %w", ident, err)
	}
	if err == nil {
		s.logger.Info("volume created", "volume", ident, "location", url)
	}
	return Object{Name: ident, Location: url, Created: err == nil}, nil
}

func secretName(credential string) string { return "cred_" + credential }

func isNotFound(err error) bool {
	var nf *domain.NotFoundError
	return errors.As(err, &nf)
}

func isConflict(err error) bool {
	var c *domain.ConflictError
	return errors.As(err, &c)
}
