package api

import (
	"time"

	"tfl-lake/internal/domain"
	"tfl-lake/internal/lakepath"
)

// Environment describes the resolved deployment environment.
type Environment struct {
	Environment       string            `json:"environment"`
	Catalog           string            `json:"catalog"`
	Schemas           map[string]string `json:"schemas"`
	StorageAccount    string            `json:"storage_account"`
	StorageCredential string            `json:"storage_credential"`
	Locations         map[string]string `json:"locations"`
	LocalStorage      bool              `json:"local_storage"`
}

// Job is the read model of an ingestion job.
type Job struct {
	Name               string `json:"name"`
	SourceSubdir       string `json:"source_subdir"`
	Target             string `json:"target"`
	Format             string `json:"format"`
	CheckpointPath     string `json:"checkpoint_path"`
	SchemaPath         string `json:"schema_path"`
	MaxFilesPerTrigger int    `json:"max_files_per_trigger"`
	SchemaEvolution    string `json:"schema_evolution"`
}

// Run is the read model of a pipeline run.
type Run struct {
	ID           string     `json:"id"`
	Pipeline     string     `json:"pipeline"`
	Environment  string     `json:"environment"`
	Status       string     `json:"status"`
	TriggerType  string     `json:"trigger_type"`
	Trigger      string     `json:"trigger,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Jobs         []JobRun   `json:"jobs,omitempty"`
}

// JobRun is the read model of one job within a run.
type JobRun struct {
	JobName        string     `json:"job_name"`
	TargetTable    string     `json:"target_table"`
	Order          int        `json:"order"`
	Status         string     `json:"status"`
	FilesProcessed int        `json:"files_processed"`
	RowsAppended   int64      `json:"rows_appended"`
	RowCount       *int64     `json:"row_count,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
}

// RunList is a page of runs.
type RunList struct {
	Runs          []Run  `json:"runs"`
	Total         int64  `json:"total"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

func environmentToAPI(paths *lakepath.Builder, local bool) Environment {
	cfg := paths.Config()
	locations := make(map[string]string, len(cfg.Layers()))
	for _, layer := range cfg.Layers() {
		locations[layer] = paths.LayerLocation(layer)
	}
	return Environment{
		Environment: cfg.Environment,
		Catalog:     cfg.Catalog,
		Schemas: map[string]string{
			"bronze": cfg.Schemas.Bronze,
			"silver": cfg.Schemas.Silver,
			"gold":   cfg.Schemas.Gold,
		},
		StorageAccount:    cfg.Storage.AccountName,
		StorageCredential: cfg.Storage.StorageCredential,
		Locations:         locations,
		LocalStorage:      local,
	}
}

func jobToAPI(paths *lakepath.Builder, j domain.IngestionJob) Job {
	return Job{
		Name:               j.Name,
		SourceSubdir:       j.SourceSubdir,
		Target:             paths.TableIdentifier(j.TargetSchema, j.TargetTable),
		Format:             string(j.Format),
		CheckpointPath:     j.CheckpointPath,
		SchemaPath:         j.SchemaPath,
		MaxFilesPerTrigger: j.MaxFilesPerTrigger,
		SchemaEvolution:    j.SchemaEvolution,
	}
}

func runToAPI(r domain.PipelineRun) Run {
	out := Run{
		ID:           r.ID,
		Pipeline:     r.Pipeline,
		Environment:  r.Environment,
		Status:       r.Status,
		TriggerType:  r.TriggerType,
		Trigger:      r.Trigger,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
	}
	for _, jr := range r.Jobs {
		out.Jobs = append(out.Jobs, JobRun{
			JobName:        jr.JobName,
			TargetTable:    jr.TargetTable,
			Order:          jr.JobOrder,
			Status:         jr.Status,
			FilesProcessed: jr.FilesProcessed,
			RowsAppended:   jr.RowsAppended,
			RowCount:       jr.RowCount,
			StartedAt:      jr.StartedAt,
			FinishedAt:     jr.FinishedAt,
			ErrorMessage:   jr.ErrorMessage,
		})
	}
	return out
}
