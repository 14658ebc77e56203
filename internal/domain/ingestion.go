package domain

import "time"

// FileFormat is the on-disk format of a raw feed.
type FileFormat string

// Supported raw file formats.
const (
	FileFormatJSON    FileFormat = "json"
	FileFormatCSV     FileFormat = "csv"
	FileFormatParquet FileFormat = "parquet"
)

// Extensions returns the file suffixes discovered for the format.
func (f FileFormat) Extensions() []string {
	switch f {
	case FileFormatCSV:
		return []string{".csv"}
	case FileFormatParquet:
		return []string{".parquet"}
	default:
		return []string{".json", ".jsonl", ".ndjson"}
	}
}

// System columns appended to every bronze row.
const (
	ColumnIngestTime = "_ingest_time"
	ColumnSourceFile = "_source_file"
	// ColumnRescuedData holds, as a JSON object, values whose type no longer
	// matches their column. It is added on the first such value.
	ColumnRescuedData = "_rescued_data"
)

// Schema evolution modes.
const (
	SchemaEvolutionAddNewColumns = "addNewColumns"
	SchemaEvolutionNone          = "none"
)

// IngestionJob describes one raw feed and where it lands. Jobs are static,
// derived in code from the lake configuration, and never persisted.
type IngestionJob struct {
	Name               string
	SourceSubdir       string // subdirectory of the landing volume
	TargetSchema       string
	TargetTable        string
	Format             FileFormat
	CheckpointPath     string
	SchemaPath         string
	MaxFilesPerTrigger int
	SchemaEvolution    string
}

// Validate checks that the descriptor is complete.
func (j IngestionJob) Validate() error {
	if j.Name == "" {
		return ErrValidation("job name is required")
	}
	if j.SourceSubdir == "" {
		return ErrValidation("job %q: source subdirectory is required", j.Name)
	}
	if j.TargetSchema == "" || j.TargetTable == "" {
		return ErrValidation("job %q: target schema and table are required", j.Name)
	}
	if j.CheckpointPath == "" || j.SchemaPath == "" {
		return ErrValidation("job %q: checkpoint and schema paths are required", j.Name)
	}
	if j.CheckpointPath == j.SchemaPath {
		return ErrValidation("job %q: checkpoint and schema paths must differ", j.Name)
	}
	if j.MaxFilesPerTrigger < 0 {
		return ErrValidation("job %q: max files per trigger must be non-negative", j.Name)
	}
	return nil
}

// TriggerMode selects how a stream is driven.
type TriggerMode string

// Trigger modes.
const (
	TriggerAvailableNow   TriggerMode = "AVAILABLE_NOW"
	TriggerProcessingTime TriggerMode = "PROCESSING_TIME"
)

// DefaultProcessingInterval is the micro-batch interval of continuous runs.
const DefaultProcessingInterval = 5 * time.Second

// Trigger is the execution mode of an ingestion run: run once until caught up,
// or run continuously on a fixed interval.
type Trigger struct {
	Mode     TriggerMode
	Interval time.Duration
}

// AvailableNow processes every file present at start and then stops.
func AvailableNow() Trigger { return Trigger{Mode: TriggerAvailableNow} }

// ProcessingTime runs one micro-batch per interval until cancelled.
func ProcessingTime(interval time.Duration) Trigger {
	if interval <= 0 {
		interval = DefaultProcessingInterval
	}
	return Trigger{Mode: TriggerProcessingTime, Interval: interval}
}

// TriggerFor maps the binary "once" flag to a trigger.
func TriggerFor(once bool, interval time.Duration) Trigger {
	if once {
		return AvailableNow()
	}
	return ProcessingTime(interval)
}

func (t Trigger) String() string {
	if t.Mode == TriggerProcessingTime {
		return string(t.Mode) + "(" + t.Interval.String() + ")"
	}
	return string(t.Mode)
}

// BatchResult summarizes one committed micro-batch.
type BatchResult struct {
	BatchID        int64
	Files          []string
	RowsAppended   int64
	AddedColumns   []string
	RescuedColumns []string // columns whose values were checked against a changed type
}

// StreamResult summarizes a stream execution.
type StreamResult struct {
	Job            string
	Table          string
	Batches        int
	FilesProcessed int
	RowsAppended   int64
	Recovered      bool // an uncommitted batch was rolled back and replayed
	Commits        []BatchResult
}
