// Package ingestion runs the bronze ingestion jobs: incremental discovery of
// raw feed files in the landing volume, schema inference and evolution, and
// checkpointed exactly-once appends into the bronze tables.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"tfl-lake/internal/domain"
	"tfl-lake/internal/engine"
	"tfl-lake/internal/lakepath"
	"tfl-lake/internal/storage"
)

// Service runs ingestion jobs against an attached catalog.
type Service struct {
	engine  *engine.Engine
	storage *storage.Resolver
	volumes domain.VolumeRepository
	paths   *lakepath.Builder
	jobs    []domain.IngestionJob
	logger  *slog.Logger
}

// NewService creates a Service for the environment described by paths.
func NewService(
	eng *engine.Engine,
	resolver *storage.Resolver,
	volumes domain.VolumeRepository,
	paths *lakepath.Builder,
	logger *slog.Logger,
) *Service {
	return &Service{
		engine:  eng,
		storage: resolver,
		volumes: volumes,
		paths:   paths,
		jobs:    BronzeJobs(paths),
		logger:  logger.With("component", "ingestion"),
	}
}

// Jobs returns the bronze jobs in orchestration order.
func (s *Service) Jobs() []domain.IngestionJob {
	return append([]domain.IngestionJob(nil), s.jobs...)
}

// Job returns the job of one feed.
func (s *Service) Job(feed string) (domain.IngestionJob, error) {
	return JobByName(s.jobs, feed)
}

// SourceURL returns the directory a job reads: the landing volume's location
// plus the job's subdirectory.
func (s *Service) SourceURL(ctx context.Context, job domain.IngestionJob) (string, error) {
	vol, err := s.volumes.GetByName(ctx, s.paths.Catalog(), domain.LandingVolumeSchema, domain.LandingVolumeName)
	if err != nil {
		return "", fmt.Errorf("landing volume: %w", err)
	}
	loc, err := storage.ParseLocation(vol.StorageLocation)
	if err != nil {
		return "", err
	}
	return loc.Child(job.SourceSubdir).String(), nil
}

// Run executes one job under trigger. With AvailableNow it returns once every
// file present at start is committed; with ProcessingTime it runs until ctx
// ends, which is not an error.
func (s *Service) Run(ctx context.Context, job domain.IngestionJob, trigger domain.Trigger) (*domain.StreamResult, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	source, err := s.SourceURL(ctx, job)
	if err != nil {
		return nil, err
	}

	srcStore, err := s.storage.Store(ctx, source)
	if err != nil {
		return nil, err
	}
	chkStore, err := s.storage.Store(ctx, job.CheckpointPath)
	if err != nil {
		return nil, err
	}
	cp, err := NewCheckpoint(chkStore, job.CheckpointPath)
	if err != nil {
		return nil, err
	}
	schStore, err := s.storage.Store(ctx, job.SchemaPath)
	if err != nil {
		return nil, err
	}
	tracker, err := NewSchemaTracker(schStore, job.SchemaPath)
	if err != nil {
		return nil, err
	}

	st := &stream{
		job:        job,
		catalog:    s.paths.Catalog(),
		table:      s.paths.TableIdentifier(job.TargetSchema, job.TargetTable),
		source:     source,
		sources:    srcStore,
		checkpoint: cp,
		schemas:    tracker,
		engine:     s.engine,
		storage:    s.storage,
		logger:     s.logger.With("job", job.Name, "trigger", trigger.String()),
	}
	return st.run(ctx, trigger)
}

// RunAll runs every job concurrently, each on its own connection, and
// returns the results in job order. The first failure cancels the others.
func (s *Service) RunAll(ctx context.Context, trigger domain.Trigger) ([]*domain.StreamResult, error) {
	results := make([]*domain.StreamResult, len(s.jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, job := range s.jobs {
		g.Go(func() error {
			res, err := s.Run(gctx, job, trigger)
			results[i] = res
			if err != nil {
				return fmt.Errorf("job %s: %w", job.Name, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return results, err
}
