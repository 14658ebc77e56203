package ddl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSchema(t *testing.T) {
	tests := []struct {
		name    string
		catalog string
		schema  string
		want    string
		wantErr string
	}{
		{
			name:    "valid",
			catalog: "tfl_dev",
			schema:  "bronze",
			want:    `CREATE SCHEMA IF NOT EXISTS "tfl_dev"."bronze"`,
		},
		{
			name:    "empty_catalog",
			catalog: "",
			schema:  "bronze",
			wantErr: "invalid catalog name",
		},
		{
			name:    "empty_name",
			catalog: "tfl_dev",
			schema:  "",
			wantErr: "invalid schema name",
		},
		{
			name:    "invalid_name",
			catalog: "tfl_dev",
			schema:  "my-schema",
			wantErr: "invalid schema name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CreateSchema(tt.catalog, tt.schema)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateTable(t *testing.T) {
	tests := []struct {
		name    string
		columns []ColumnDef
		want    string
		wantErr string
	}{
		{
			name: "feed_columns",
			columns: []ColumnDef{
				{Name: "$type", Type: "VARCHAR"},
				{Name: "id", Type: "VARCHAR"},
				{Name: "timeToStation", Type: "BIGINT"},
			},
			want: `CREATE TABLE IF NOT EXISTS "tfl_dev"."bronze"."arrivals_bz" ("$type" VARCHAR, "id" VARCHAR, "timeToStation" BIGINT)`,
		},
		{
			name:    "nested_type",
			columns: []ColumnDef{{Name: "lineStatuses", Type: `STRUCT("$type" VARCHAR, statusSeverity BIGINT)[]`}},
			want:    `CREATE TABLE IF NOT EXISTS "tfl_dev"."bronze"."arrivals_bz" ("lineStatuses" STRUCT("$type" VARCHAR, statusSeverity BIGINT)[])`,
		},
		{
			name:    "no_columns",
			wantErr: "at least one column",
		},
		{
			name:    "empty_column_name",
			columns: []ColumnDef{{Name: "", Type: "VARCHAR"}},
			wantErr: "invalid column name",
		},
		{
			name:    "injected_type",
			columns: []ColumnDef{{Name: "id", Type: "VARCHAR); DROP TABLE x; --"}},
			wantErr: "invalid column type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CreateTable("tfl_dev", "bronze", "arrivals_bz", tt.columns)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateTable_InvalidNames(t *testing.T) {
	cols := []ColumnDef{{Name: "id", Type: "VARCHAR"}}

	_, err := CreateTable("bad-cat", "bronze", "t", cols)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid catalog name")

	_, err = CreateTable("cat", "bronze", "t.x", cols)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}

func TestAddColumn(t *testing.T) {
	got, err := AddColumn("tfl_dev", "bronze", "lines_bz", ColumnDef{Name: "disruptions", Type: "VARCHAR[]"})
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE "tfl_dev"."bronze"."lines_bz" ADD COLUMN "disruptions" VARCHAR[]`, got)

	_, err = AddColumn("tfl_dev", "bronze", "lines_bz", ColumnDef{Name: "x", Type: ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid column type")
}

func TestReadFiles(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		opts    ReadOptions
		want    string
		wantErr string
	}{
		{
			name:  "json_default",
			files: []string{"/lake/a.json"},
			opts:  ReadOptions{},
			want:  "read_json_auto(['/lake/a.json'], union_by_name = true)",
		},
		{
			name:  "json_with_filename",
			files: []string{"/lake/a.json", "/lake/it's.json"},
			opts:  ReadOptions{Format: "json", WithFilename: true},
			want:  "read_json_auto(['/lake/a.json', '/lake/it''s.json'], union_by_name = true, filename = true)",
		},
		{
			name:  "csv",
			files: []string{"s3://b/k.csv"},
			opts:  ReadOptions{Format: "CSV"},
			want:  "read_csv_auto(['s3://b/k.csv'], union_by_name = true)",
		},
		{
			name:  "parquet",
			files: []string{"abfss://c@a.dfs.core.windows.net/p.parquet"},
			opts:  ReadOptions{Format: "parquet"},
			want:  "read_parquet(['abfss://c@a.dfs.core.windows.net/p.parquet'], union_by_name = true)",
		},
		{
			name:    "no_files",
			opts:    ReadOptions{Format: "json"},
			wantErr: "at least one file",
		},
		{
			name:    "bad_format",
			files:   []string{"a.xml"},
			opts:    ReadOptions{Format: "xml"},
			wantErr: "unsupported file format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadFiles(tt.files, tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescribeFiles(t *testing.T) {
	got, err := DescribeFiles([]string{"/lake/a.json"}, "json")
	require.NoError(t, err)
	assert.Equal(t, "DESCRIBE SELECT * FROM read_json_auto(['/lake/a.json'], union_by_name = true)", got)
}

func TestCountFileRows(t *testing.T) {
	got, err := CountFileRows([]string{"/lake/a.json", "/lake/b.json"}, "json")
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT filename, count(*) FROM read_json_auto(['/lake/a.json', '/lake/b.json'], union_by_name = true, filename = true) GROUP BY filename",
		got)

	_, err = CountFileRows(nil, "json")
	require.Error(t, err)
}

func stopsAppend(files ...string) Append {
	return Append{
		Catalog:          "tfl_dev",
		Schema:           "bronze",
		Table:            "stops_bz",
		Files:            files,
		Format:           "json",
		IngestTimeColumn: "_ingest_time",
		SourceFileColumn: "_source_file",
	}
}

func TestAppendFiles(t *testing.T) {
	got, err := AppendFiles(stopsAppend("/lake/s1.json", "/lake/s2.json"))
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "tfl_dev"."bronze"."stops_bz" BY NAME SELECT * EXCLUDE (filename), current_timestamp AS "_ingest_time", filename AS "_source_file" `+
			`FROM read_json_auto(['/lake/s1.json', '/lake/s2.json'], union_by_name = true, filename = true)`,
		got)

	_, err = AppendFiles(stopsAppend())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one file")

	bad := stopsAppend("a")
	bad.IngestTimeColumn = "bad col"
	_, err = AppendFiles(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ingest time column")
}

func TestAppendFiles_Coerce(t *testing.T) {
	a := stopsAppend("/lake/s3.json")
	a.Coerce = []ColumnDef{{Name: "zone", Type: "BIGINT"}}
	a.RescueColumn = "_rescued_data"

	got, err := AppendFiles(a)
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "tfl_dev"."bronze"."stops_bz" BY NAME SELECT * EXCLUDE (filename, "zone"), `+
			`TRY_CAST("zone"::VARCHAR AS BIGINT) AS "zone", `+
			`CASE WHEN ("zone" IS NOT NULL AND TRY_CAST("zone"::VARCHAR AS BIGINT) IS NULL) `+
			`THEN json_object('zone', CASE WHEN ("zone" IS NOT NULL AND TRY_CAST("zone"::VARCHAR AS BIGINT) IS NULL) THEN "zone" END)::VARCHAR END AS "_rescued_data", `+
			`current_timestamp AS "_ingest_time", filename AS "_source_file" `+
			`FROM read_json_auto(['/lake/s3.json'], union_by_name = true, filename = true)`,
		got)

	a.Coerce = []ColumnDef{{Name: "zone", Type: "BIGINT; DROP TABLE x"}}
	_, err = AppendFiles(a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid column type")
}

func TestDeleteBySourceFiles(t *testing.T) {
	got, err := DeleteBySourceFiles("tfl_dev", "bronze", "lines_bz", "_source_file", []string{"/a.json", "/b.json"})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "tfl_dev"."bronze"."lines_bz" WHERE "_source_file" IN ('/a.json', '/b.json')`, got)

	_, err = DeleteBySourceFiles("tfl_dev", "bronze", "lines_bz", "_source_file", nil)
	require.Error(t, err)
}

func TestCountRows(t *testing.T) {
	got, err := CountRows("tfl_dev", "bronze", "boroughs_bz")
	require.NoError(t, err)
	assert.Equal(t, `SELECT count(*) FROM "tfl_dev"."bronze"."boroughs_bz"`, got)

	_, err = CountRows("tfl_dev", "bronze", "")
	require.Error(t, err)
}

func TestCreateS3Secret(t *testing.T) {
	got, err := CreateS3Secret("loc_s3", "AKIA", "se'cret", "s3.amazonaws.com", "eu-west-2", "path", "s3://bucket/prefix")
	require.NoError(t, err)
	assert.Contains(t, got, `CREATE OR REPLACE SECRET "loc_s3" (`)
	assert.Contains(t, got, "TYPE S3")
	assert.Contains(t, got, "KEY_ID 'AKIA'")
	assert.Contains(t, got, "SECRET 'se''cret'")
	assert.Contains(t, got, "REGION 'eu-west-2'")
	assert.Contains(t, got, "URL_STYLE 'path'")
	assert.Contains(t, got, "SCOPE 's3://bucket/prefix'")

	minimal, err := CreateS3Secret("s", "k", "v", "", "", "", "")
	require.NoError(t, err)
	assert.NotContains(t, minimal, "ENDPOINT")
	assert.NotContains(t, minimal, "SCOPE")

	_, err = CreateS3Secret("", "k", "v", "", "", "", "")
	require.Error(t, err)
}

func TestCreateAzureSecret(t *testing.T) {
	t.Run("account_key", func(t *testing.T) {
		got, err := CreateAzureSecret("tfl_cred", "tflstorage", "a2V5", "abfss://landing@tflstorage.dfs.core.windows.net")
		require.NoError(t, err)
		assert.Contains(t, got, "TYPE AZURE")
		assert.Contains(t, got, "AccountName=tflstorage;AccountKey=a2V5")
		assert.Contains(t, got, "SCOPE 'abfss://landing@tflstorage.dfs.core.windows.net'")
	})
	t.Run("credential_chain", func(t *testing.T) {
		got, err := CreateAzureSecret("tfl_cred", "tflstorage", "", "")
		require.NoError(t, err)
		assert.Contains(t, got, "PROVIDER CREDENTIAL_CHAIN")
		assert.Contains(t, got, "ACCOUNT_NAME 'tflstorage'")
	})
	t.Run("missing_account", func(t *testing.T) {
		_, err := CreateAzureSecret("tfl_cred", "", "", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "account name is required")
	})
}

func TestCreateGCSSecret(t *testing.T) {
	got, err := CreateGCSSecret("g", "/keys/sa.json", "gs://bucket")
	require.NoError(t, err)
	assert.Contains(t, got, "TYPE GCS")
	assert.Contains(t, got, "KEY_FILE_PATH '/keys/sa.json'")
	assert.Contains(t, got, "SCOPE 'gs://bucket'")

	chain, err := CreateGCSSecret("g", "", "")
	require.NoError(t, err)
	assert.Contains(t, chain, "PROVIDER CREDENTIAL_CHAIN")
}

func TestAttachDuckLake(t *testing.T) {
	tests := []struct {
		name     string
		catalog  string
		metaPath string
		dataPath string
		want     string
		wantErr  string
	}{
		{
			name:     "valid",
			catalog:  "tfl_dev",
			metaPath: "/var/lake/tfl_dev.ducklake",
			dataPath: "abfss://bronze@tflstorage.dfs.core.windows.net",
			want:     "ATTACH IF NOT EXISTS 'ducklake:sqlite:/var/lake/tfl_dev.ducklake' AS \"tfl_dev\" (\n\tDATA_PATH 'abfss://bronze@tflstorage.dfs.core.windows.net'\n)",
		},
		{
			name:     "escapes_paths",
			catalog:  "lake",
			metaPath: "/it's/meta",
			dataPath: "/o'neil/data",
			want:     "ATTACH IF NOT EXISTS 'ducklake:sqlite:/it''s/meta' AS \"lake\" (\n\tDATA_PATH '/o''neil/data'\n)",
		},
		{name: "bad_catalog", catalog: "a b", metaPath: "m", dataPath: "d", wantErr: "invalid catalog name"},
		{name: "no_meta", catalog: "lake", dataPath: "d", wantErr: "metastore path is required"},
		{name: "no_data", catalog: "lake", metaPath: "m", wantErr: "data path is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AttachDuckLake(tt.catalog, tt.metaPath, tt.dataPath)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAttachDuckDB(t *testing.T) {
	got, err := AttachDuckDB("tfl_dev", "/tmp/tfl_dev.duckdb")
	require.NoError(t, err)
	assert.Equal(t, `ATTACH IF NOT EXISTS '/tmp/tfl_dev.duckdb' AS "tfl_dev"`, got)

	_, err = AttachDuckDB("tfl_dev", "")
	require.Error(t, err)
}
