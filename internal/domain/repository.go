package domain

import "context"

// StorageCredentialRepository persists storage credentials.
type StorageCredentialRepository interface {
	Create(ctx context.Context, cred *StorageCredential) (*StorageCredential, error)
	GetByName(ctx context.Context, name string) (*StorageCredential, error)
	List(ctx context.Context, page PageRequest) ([]StorageCredential, int64, error)
}

// ExternalLocationRepository persists external locations.
type ExternalLocationRepository interface {
	Create(ctx context.Context, loc *ExternalLocation) (*ExternalLocation, error)
	GetByName(ctx context.Context, name string) (*ExternalLocation, error)
	List(ctx context.Context, page PageRequest) ([]ExternalLocation, int64, error)
}

// VolumeRepository persists volumes.
type VolumeRepository interface {
	Create(ctx context.Context, vol *Volume) (*Volume, error)
	GetByName(ctx context.Context, catalogName, schemaName, name string) (*Volume, error)
	List(ctx context.Context, catalogName string, page PageRequest) ([]Volume, int64, error)
}

// CatalogRepository persists catalog registrations.
type CatalogRepository interface {
	Create(ctx context.Context, cat *Catalog) (*Catalog, error)
	GetByName(ctx context.Context, name string) (*Catalog, error)
}

// PipelineRunRepository persists pipeline run history.
type PipelineRunRepository interface {
	CreateRun(ctx context.Context, run *PipelineRun) (*PipelineRun, error)
	GetRunByID(ctx context.Context, id string) (*PipelineRun, error)
	ListRuns(ctx context.Context, filter PipelineRunFilter) ([]PipelineRun, int64, error)
	UpdateRunStarted(ctx context.Context, id string) error
	UpdateRunFinished(ctx context.Context, id, status string, errMsg *string) error

	CreateJobRun(ctx context.Context, jr *PipelineJobRun) (*PipelineJobRun, error)
	ListJobRunsByRun(ctx context.Context, runID string) ([]PipelineJobRun, error)
	UpdateJobRunStarted(ctx context.Context, id string) error
	UpdateJobRunFinished(ctx context.Context, id, status string, outcome JobRunOutcome, errMsg *string) error
	UpdateJobRunRowCount(ctx context.Context, id string, rowCount int64) error
}
