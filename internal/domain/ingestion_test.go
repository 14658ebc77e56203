package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestionJob_Validate(t *testing.T) {
	valid := IngestionJob{
		Name:           "lines",
		SourceSubdir:   "lines",
		TargetSchema:   "bronze",
		TargetTable:    "lines_bz",
		Format:         FileFormatJSON,
		CheckpointPath: "abfss://chk@acct.dfs.core.windows.net/bronze/lines_bz",
		SchemaPath:     "abfss://chk@acct.dfs.core.windows.net/schema/lines_bz",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(j *IngestionJob)
		wantErr string
	}{
		{"missing name", func(j *IngestionJob) { j.Name = "" }, "job name is required"},
		{"missing subdir", func(j *IngestionJob) { j.SourceSubdir = "" }, "source subdirectory"},
		{"missing table", func(j *IngestionJob) { j.TargetTable = "" }, "target schema and table"},
		{"missing checkpoint", func(j *IngestionJob) { j.CheckpointPath = "" }, "checkpoint and schema paths are required"},
		{"shared paths", func(j *IngestionJob) { j.SchemaPath = j.CheckpointPath }, "must differ"},
		{"negative batch size", func(j *IngestionJob) { j.MaxFilesPerTrigger = -1 }, "non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := valid
			tt.mutate(&j)
			err := j.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTriggerFor(t *testing.T) {
	once := TriggerFor(true, time.Minute)
	assert.Equal(t, TriggerAvailableNow, once.Mode)
	assert.Equal(t, "AVAILABLE_NOW", once.String())

	continuous := TriggerFor(false, 0)
	assert.Equal(t, TriggerProcessingTime, continuous.Mode)
	assert.Equal(t, DefaultProcessingInterval, continuous.Interval)
	assert.Equal(t, "PROCESSING_TIME(5s)", continuous.String())
}

func TestFileFormat_Extensions(t *testing.T) {
	assert.Equal(t, []string{".json", ".jsonl", ".ndjson"}, FileFormatJSON.Extensions())
	assert.Equal(t, []string{".csv"}, FileFormatCSV.Extensions())
	assert.Equal(t, []string{".parquet"}, FileFormatParquet.Extensions())
}

func TestErrorMessages(t *testing.T) {
	notFound := &ConfigurationNotFoundError{Environment: "qa", Available: []string{"dev", "prod"}}
	assert.Equal(t, `environment "qa" not found in config. Available: [dev, prod]`, notFound.Error())

	cause := errors.New("unexpected end of JSON input")
	unreadable := &ConfigurationUnreadableError{Path: "env-config.json", Err: cause}
	assert.ErrorIs(t, unreadable, cause)
	assert.Contains(t, unreadable.Error(), "env-config.json")

	assert.Equal(t, "lines_bz is empty", (&EmptyTableError{Table: "lines_bz"}).Error())
	assert.Contains(t, (&JobTimeoutError{Job: "lines", Timeout: time.Hour}).Error(), "1h0m0s")
}
