// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase.
package testutil

import (
	"context"
	"sort"
	"sync"

	"tfl-lake/internal/domain"
)

// === Storage Credential Repository Mock ===

// MockStorageCredentialRepo implements domain.StorageCredentialRepository.
type MockStorageCredentialRepo struct {
	CreateFn    func(ctx context.Context, cred *domain.StorageCredential) (*domain.StorageCredential, error)
	GetByNameFn func(ctx context.Context, name string) (*domain.StorageCredential, error)
	ListFn      func(ctx context.Context, page domain.PageRequest) ([]domain.StorageCredential, int64, error)
}

// Create implements the interface method for testing.
func (m *MockStorageCredentialRepo) Create(ctx context.Context, cred *domain.StorageCredential) (*domain.StorageCredential, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, cred)
	}
	panic("unexpected call to MockStorageCredentialRepo.Create")
}

// GetByName implements the interface method for testing.
func (m *MockStorageCredentialRepo) GetByName(ctx context.Context, name string) (*domain.StorageCredential, error) {
	if m.GetByNameFn != nil {
		return m.GetByNameFn(ctx, name)
	}
	panic("unexpected call to MockStorageCredentialRepo.GetByName")
}

// List implements the interface method for testing.
func (m *MockStorageCredentialRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.StorageCredential, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, page)
	}
	panic("unexpected call to MockStorageCredentialRepo.List")
}

var _ domain.StorageCredentialRepository = (*MockStorageCredentialRepo)(nil)

// CredentialsByName returns a GetByNameFn serving the given credentials.
func CredentialsByName(creds ...domain.StorageCredential) func(context.Context, string) (*domain.StorageCredential, error) {
	return func(_ context.Context, name string) (*domain.StorageCredential, error) {
		for i := range creds {
			if creds[i].Name == name {
				c := creds[i]
				return &c, nil
			}
		}
		return nil, domain.ErrNotFound("storage credential %q not found", name)
	}
}

// === External Location Repository Mock ===

// MockExternalLocationRepo implements domain.ExternalLocationRepository.
type MockExternalLocationRepo struct {
	CreateFn    func(ctx context.Context, loc *domain.ExternalLocation) (*domain.ExternalLocation, error)
	GetByNameFn func(ctx context.Context, name string) (*domain.ExternalLocation, error)
	ListFn      func(ctx context.Context, page domain.PageRequest) ([]domain.ExternalLocation, int64, error)
}

// Create implements the interface method for testing.
func (m *MockExternalLocationRepo) Create(ctx context.Context, loc *domain.ExternalLocation) (*domain.ExternalLocation, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, loc)
	}
	panic("unexpected call to MockExternalLocationRepo.Create")
}

// GetByName implements the interface method for testing.
func (m *MockExternalLocationRepo) GetByName(ctx context.Context, name string) (*domain.ExternalLocation, error) {
	if m.GetByNameFn != nil {
		return m.GetByNameFn(ctx, name)
	}
	panic("unexpected call to MockExternalLocationRepo.GetByName")
}

// List implements the interface method for testing.
func (m *MockExternalLocationRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.ExternalLocation, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, page)
	}
	panic("unexpected call to MockExternalLocationRepo.List")
}

var _ domain.ExternalLocationRepository = (*MockExternalLocationRepo)(nil)

// LocationList returns a ListFn serving the given locations.
func LocationList(locs ...domain.ExternalLocation) func(context.Context, domain.PageRequest) ([]domain.ExternalLocation, int64, error) {
	return func(context.Context, domain.PageRequest) ([]domain.ExternalLocation, int64, error) {
		return locs, int64(len(locs)), nil
	}
}

// === Catalog Repository Mock ===

// MockCatalogRepo implements domain.CatalogRepository.
type MockCatalogRepo struct {
	CreateFn    func(ctx context.Context, cat *domain.Catalog) (*domain.Catalog, error)
	GetByNameFn func(ctx context.Context, name string) (*domain.Catalog, error)
}

// Create implements the interface method for testing.
func (m *MockCatalogRepo) Create(ctx context.Context, cat *domain.Catalog) (*domain.Catalog, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, cat)
	}
	panic("unexpected call to MockCatalogRepo.Create")
}

// GetByName implements the interface method for testing.
func (m *MockCatalogRepo) GetByName(ctx context.Context, name string) (*domain.Catalog, error) {
	if m.GetByNameFn != nil {
		return m.GetByNameFn(ctx, name)
	}
	panic("unexpected call to MockCatalogRepo.GetByName")
}

var _ domain.CatalogRepository = (*MockCatalogRepo)(nil)

// === Volume Repository Mock ===

// MockVolumeRepo implements domain.VolumeRepository.
type MockVolumeRepo struct {
	CreateFn    func(ctx context.Context, vol *domain.Volume) (*domain.Volume, error)
	GetByNameFn func(ctx context.Context, catalogName, schemaName, name string) (*domain.Volume, error)
	ListFn      func(ctx context.Context, catalogName string, page domain.PageRequest) ([]domain.Volume, int64, error)
}

// Create implements the interface method for testing.
func (m *MockVolumeRepo) Create(ctx context.Context, vol *domain.Volume) (*domain.Volume, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, vol)
	}
	panic("unexpected call to MockVolumeRepo.Create")
}

// GetByName implements the interface method for testing.
func (m *MockVolumeRepo) GetByName(ctx context.Context, catalogName, schemaName, name string) (*domain.Volume, error) {
	if m.GetByNameFn != nil {
		return m.GetByNameFn(ctx, catalogName, schemaName, name)
	}
	panic("unexpected call to MockVolumeRepo.GetByName")
}

// List implements the interface method for testing.
func (m *MockVolumeRepo) List(ctx context.Context, catalogName string, page domain.PageRequest) ([]domain.Volume, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, catalogName, page)
	}
	panic("unexpected call to MockVolumeRepo.List")
}

var _ domain.VolumeRepository = (*MockVolumeRepo)(nil)

// === Pipeline Run Repository Mock ===

// MemoryPipelineRunRepo is an in-memory domain.PipelineRunRepository that
// records every transition so tests can assert on the final state.
type MemoryPipelineRunRepo struct {
	mu   sync.Mutex
	runs map[string]*domain.PipelineRun
	jobs map[string]*domain.PipelineJobRun

	// CreateRunErr, when set, is returned by CreateRun.
	CreateRunErr error
}

// NewMemoryPipelineRunRepo creates an empty repository.
func NewMemoryPipelineRunRepo() *MemoryPipelineRunRepo {
	return &MemoryPipelineRunRepo{
		runs: make(map[string]*domain.PipelineRun),
		jobs: make(map[string]*domain.PipelineJobRun),
	}
}

// CreateRun implements the interface method for testing.
func (m *MemoryPipelineRunRepo) CreateRun(_ context.Context, run *domain.PipelineRun) (*domain.PipelineRun, error) {
	if m.CreateRunErr != nil {
		return nil, m.CreateRunErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *run
	if r.ID == "" {
		r.ID = domain.NewID()
	}
	r.Jobs = nil
	m.runs[r.ID] = &r
	out := r
	return &out, nil
}

// GetRunByID implements the interface method for testing.
func (m *MemoryPipelineRunRepo) GetRunByID(_ context.Context, id string) (*domain.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, domain.ErrNotFound("pipeline run %q not found", id)
	}
	out := *r
	out.Jobs = m.jobsOf(id)
	return &out, nil
}

// ListRuns implements the interface method for testing.
func (m *MemoryPipelineRunRepo) ListRuns(_ context.Context, filter domain.PipelineRunFilter) ([]domain.PipelineRun, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PipelineRun
	for _, r := range m.runs {
		if filter.Pipeline != nil && r.Pipeline != *filter.Pipeline {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

// UpdateRunStarted implements the interface method for testing.
func (m *MemoryPipelineRunRepo) UpdateRunStarted(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return domain.ErrNotFound("pipeline run %q not found", id)
	}
	r.Status = domain.PipelineRunStatusRunning
	return nil
}

// UpdateRunFinished implements the interface method for testing.
func (m *MemoryPipelineRunRepo) UpdateRunFinished(_ context.Context, id, status string, errMsg *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return domain.ErrNotFound("pipeline run %q not found", id)
	}
	r.Status = status
	r.ErrorMessage = errMsg
	return nil
}

// CreateJobRun implements the interface method for testing.
func (m *MemoryPipelineRunRepo) CreateJobRun(_ context.Context, jr *domain.PipelineJobRun) (*domain.PipelineJobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := *jr
	if j.ID == "" {
		j.ID = domain.NewID()
	}
	m.jobs[j.ID] = &j
	out := j
	return &out, nil
}

// ListJobRunsByRun implements the interface method for testing.
func (m *MemoryPipelineRunRepo) ListJobRunsByRun(_ context.Context, runID string) ([]domain.PipelineJobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobsOf(runID), nil
}

// UpdateJobRunStarted implements the interface method for testing.
func (m *MemoryPipelineRunRepo) UpdateJobRunStarted(_ context.Context, id string) error {
	return m.updateJob(id, func(j *domain.PipelineJobRun) { j.Status = domain.PipelineJobRunStatusRunning })
}

// UpdateJobRunFinished implements the interface method for testing.
func (m *MemoryPipelineRunRepo) UpdateJobRunFinished(_ context.Context, id, status string, outcome domain.JobRunOutcome, errMsg *string) error {
	return m.updateJob(id, func(j *domain.PipelineJobRun) {
		j.Status = status
		j.FilesProcessed = outcome.FilesProcessed
		j.RowsAppended = outcome.RowsAppended
		j.ErrorMessage = errMsg
	})
}

// UpdateJobRunRowCount implements the interface method for testing.
func (m *MemoryPipelineRunRepo) UpdateJobRunRowCount(_ context.Context, id string, rowCount int64) error {
	return m.updateJob(id, func(j *domain.PipelineJobRun) { j.RowCount = &rowCount })
}

func (m *MemoryPipelineRunRepo) updateJob(id string, fn func(*domain.PipelineJobRun)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrNotFound("job run %q not found", id)
	}
	fn(j)
	return nil
}

func (m *MemoryPipelineRunRepo) jobsOf(runID string) []domain.PipelineJobRun {
	var out []domain.PipelineJobRun
	for _, j := range m.jobs {
		if j.RunID == runID {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobOrder < out[j].JobOrder })
	return out
}

var _ domain.PipelineRunRepository = (*MemoryPipelineRunRepo)(nil)
