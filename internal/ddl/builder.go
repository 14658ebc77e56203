// Package ddl builds DuckDB statements for catalogs, schemas, bronze tables,
// secrets, and file-backed batch appends.
package ddl

import (
	"fmt"
	"strings"
)

// ColumnDef describes a column for CREATE TABLE or ALTER TABLE ADD COLUMN.
type ColumnDef struct {
	Name string
	Type string
}

// ReadOptions controls how a batch of source files is scanned.
type ReadOptions struct {
	// Format is "json", "csv", or "parquet".
	Format string
	// WithFilename adds DuckDB's filename column to the scan.
	WithFilename bool
}

// CreateSchema returns: CREATE SCHEMA IF NOT EXISTS "<catalog>"."<name>".
func CreateSchema(catalog, name string) (string, error) {
	if err := ValidateIdentifier(catalog); err != nil {
		return "", fmt.Errorf("invalid catalog name: %w", err)
	}
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid schema name: %w", err)
	}
	return fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s.%s", QuoteIdentifier(catalog), QuoteIdentifier(name)), nil
}

// CreateTable returns:
// CREATE TABLE IF NOT EXISTS "<catalog>"."<schema>"."<table>" ("<col1>" TYPE1, ...).
func CreateTable(catalog, schema, table string, columns []ColumnDef) (string, error) {
	qualified, err := QualifiedName(catalog, schema, table)
	if err != nil {
		return "", err
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("at least one column is required")
	}

	colDefs := make([]string, 0, len(columns))
	for _, c := range columns {
		def, err := columnDef(c)
		if err != nil {
			return "", err
		}
		colDefs = append(colDefs, def)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", qualified, strings.Join(colDefs, ", ")), nil
}

// AddColumn returns: ALTER TABLE "<catalog>"."<schema>"."<table>" ADD COLUMN "<col>" TYPE.
func AddColumn(catalog, schema, table string, column ColumnDef) (string, error) {
	qualified, err := QualifiedName(catalog, schema, table)
	if err != nil {
		return "", err
	}
	def, err := columnDef(column)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", qualified, def), nil
}

func columnDef(c ColumnDef) (string, error) {
	if err := ValidateColumnName(c.Name); err != nil {
		return "", fmt.Errorf("invalid column name %q: %w", c.Name, err)
	}
	if err := ValidateColumnType(c.Type); err != nil {
		return "", fmt.Errorf("invalid column type for %q: %w", c.Name, err)
	}
	return QuoteIdentifier(c.Name) + " " + c.Type, nil
}

// ReadFiles returns the table function that scans files in the given format,
// e.g. read_json_auto(['a.json', 'b.json'], union_by_name = true).
func ReadFiles(files []string, opts ReadOptions) (string, error) {
	if len(files) == 0 {
		return "", fmt.Errorf("at least one file is required")
	}

	var readFunc string
	switch strings.ToLower(opts.Format) {
	case "json", "":
		readFunc = "read_json_auto"
	case "csv":
		readFunc = "read_csv_auto"
	case "parquet":
		readFunc = "read_parquet"
	default:
		return "", fmt.Errorf("unsupported file format: %q", opts.Format)
	}

	args := []string{literalList(files), "union_by_name = true"}
	if opts.WithFilename {
		args = append(args, "filename = true")
	}
	return fmt.Sprintf("%s(%s)", readFunc, strings.Join(args, ", ")), nil
}

// DescribeFiles returns a DESCRIBE statement that reports the inferred
// column names and types of a batch of files.
func DescribeFiles(files []string, format string) (string, error) {
	src, err := ReadFiles(files, ReadOptions{Format: format})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("DESCRIBE SELECT * FROM %s", src), nil
}

// CountFileRows returns a query yielding (filename, row count) for every file
// of the batch that holds at least one row. Files without rows are absent.
func CountFileRows(files []string, format string) (string, error) {
	src, err := ReadFiles(files, ReadOptions{Format: format, WithFilename: true})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT filename, count(*) FROM %s GROUP BY filename", src), nil
}

// Append describes an INSERT of a batch of files into a bronze table.
type Append struct {
	Catalog          string
	Schema           string
	Table            string
	Files            []string
	Format           string
	IngestTimeColumn string
	SourceFileColumn string
	// Coerce lists columns the files carry under a type other than the
	// table's. Each value is converted through its text form with TRY_CAST, so
	// a value that does not fit becomes NULL instead of failing the batch.
	Coerce []ColumnDef
	// RescueColumn receives, as a JSON object keyed by column name, the
	// coerced values that did not fit. Used only when Coerce is non-empty.
	RescueColumn string
}

// AppendFiles returns an INSERT ... BY NAME statement that appends every row of
// the files to the table, stamping the ingest time column with the current
// timestamp and the source file column with the file each row came from.
// Table columns absent from the files are filled with NULL.
func AppendFiles(a Append) (string, error) {
	qualified, err := QualifiedName(a.Catalog, a.Schema, a.Table)
	if err != nil {
		return "", err
	}
	if err := ValidateIdentifier(a.IngestTimeColumn); err != nil {
		return "", fmt.Errorf("invalid ingest time column: %w", err)
	}
	if err := ValidateIdentifier(a.SourceFileColumn); err != nil {
		return "", fmt.Errorf("invalid source file column: %w", err)
	}
	src, err := ReadFiles(a.Files, ReadOptions{Format: a.Format, WithFilename: true})
	if err != nil {
		return "", err
	}

	exclude := []string{"filename"}
	var exprs, misfits, rescued []string
	for _, c := range a.Coerce {
		if err := ValidateColumnName(c.Name); err != nil {
			return "", fmt.Errorf("invalid column name %q: %w", c.Name, err)
		}
		if err := ValidateColumnType(c.Type); err != nil {
			return "", fmt.Errorf("invalid column type for %q: %w", c.Name, err)
		}
		col := QuoteIdentifier(c.Name)
		cast := fmt.Sprintf("TRY_CAST(%s::VARCHAR AS %s)", col, c.Type)
		misfit := fmt.Sprintf("(%s IS NOT NULL AND %s IS NULL)", col, cast)
		exclude = append(exclude, col)
		exprs = append(exprs, fmt.Sprintf("%s AS %s", cast, col))
		misfits = append(misfits, misfit)
		rescued = append(rescued, fmt.Sprintf("%s, CASE WHEN %s THEN %s END", QuoteLiteral(c.Name), misfit, col))
	}
	if len(a.Coerce) > 0 && a.RescueColumn != "" {
		if err := ValidateIdentifier(a.RescueColumn); err != nil {
			return "", fmt.Errorf("invalid rescue column: %w", err)
		}
		exprs = append(exprs, fmt.Sprintf("CASE WHEN %s THEN json_object(%s)::VARCHAR END AS %s",
			strings.Join(misfits, " OR "), strings.Join(rescued, ", "), QuoteIdentifier(a.RescueColumn)))
	}
	exprs = append(exprs,
		"current_timestamp AS "+QuoteIdentifier(a.IngestTimeColumn),
		"filename AS "+QuoteIdentifier(a.SourceFileColumn),
	)

	return fmt.Sprintf("INSERT INTO %s BY NAME SELECT * EXCLUDE (%s), %s FROM %s",
		qualified, strings.Join(exclude, ", "), strings.Join(exprs, ", "), src,
	), nil
}

// DeleteBySourceFiles returns a DELETE removing rows loaded from any of files.
func DeleteBySourceFiles(catalog, schema, table, sourceFileCol string, files []string) (string, error) {
	qualified, err := QualifiedName(catalog, schema, table)
	if err != nil {
		return "", err
	}
	if err := ValidateIdentifier(sourceFileCol); err != nil {
		return "", fmt.Errorf("invalid source file column: %w", err)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("at least one file is required")
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
		qualified, QuoteIdentifier(sourceFileCol), strings.Join(quoteAll(files), ", "),
	), nil
}

// CountRows returns: SELECT count(*) FROM "<catalog>"."<schema>"."<table>".
func CountRows(catalog, schema, table string) (string, error) {
	qualified, err := QualifiedName(catalog, schema, table)
	if err != nil {
		return "", err
	}
	return "SELECT count(*) FROM " + qualified, nil
}

// CreateS3Secret returns a DuckDB DDL statement to create an S3 secret.
// A non-empty scope restricts the secret to URLs under that prefix.
func CreateS3Secret(name, keyID, secret, endpoint, region, urlStyle, scope string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	opts := []string{
		"TYPE S3",
		"KEY_ID " + QuoteLiteral(keyID),
		"SECRET " + QuoteLiteral(secret),
	}
	if endpoint != "" {
		opts = append(opts, "ENDPOINT "+QuoteLiteral(endpoint))
	}
	if region != "" {
		opts = append(opts, "REGION "+QuoteLiteral(region))
	}
	if urlStyle != "" {
		opts = append(opts, "URL_STYLE "+QuoteLiteral(urlStyle))
	}
	return createSecret(name, opts, scope), nil
}

// CreateAzureSecret returns a DuckDB DDL statement to create an Azure secret.
// With an empty account key the credential chain provider is used.
func CreateAzureSecret(name, accountName, accountKey, scope string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	if accountName == "" {
		return "", fmt.Errorf("account name is required")
	}
	var opts []string
	if accountKey == "" {
		opts = []string{
			"TYPE AZURE",
			"PROVIDER CREDENTIAL_CHAIN",
			"ACCOUNT_NAME " + QuoteLiteral(accountName),
		}
	} else {
		conn := fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
			accountName, accountKey)
		opts = []string{
			"TYPE AZURE",
			"CONNECTION_STRING " + QuoteLiteral(conn),
		}
	}
	return createSecret(name, opts, scope), nil
}

// CreateGCSSecret returns a DuckDB DDL statement to create a GCS secret.
func CreateGCSSecret(name, keyFilePath, scope string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	opts := []string{"TYPE GCS"}
	if keyFilePath == "" {
		opts = append(opts, "PROVIDER CREDENTIAL_CHAIN")
	} else {
		opts = append(opts, "KEY_FILE_PATH "+QuoteLiteral(keyFilePath))
	}
	return createSecret(name, opts, scope), nil
}

func createSecret(name string, opts []string, scope string) string {
	if scope != "" {
		opts = append(opts, "SCOPE "+QuoteLiteral(scope))
	}
	return fmt.Sprintf("CREATE OR REPLACE SECRET %s (\n\t%s\n)", QuoteIdentifier(name), strings.Join(opts, ",\n\t"))
}

// AttachDuckLake returns a DuckDB statement that attaches a DuckLake catalog
// whose metadata lives in a SQLite file. Attaching an already attached
// catalog is a no-op.
func AttachDuckLake(catalogName, metaDBPath, dataPath string) (string, error) {
	if err := ValidateIdentifier(catalogName); err != nil {
		return "", fmt.Errorf("invalid catalog name: %w", err)
	}
	if metaDBPath == "" {
		return "", fmt.Errorf("metastore path is required")
	}
	if dataPath == "" {
		return "", fmt.Errorf("data path is required")
	}
	// The ATTACH connection string format is: 'ducklake:sqlite:<path>'
	connStr := QuoteLiteral("ducklake:sqlite:" + metaDBPath)
	return fmt.Sprintf("ATTACH IF NOT EXISTS %s AS %s (\n\tDATA_PATH %s\n)",
		connStr,
		QuoteIdentifier(catalogName),
		QuoteLiteral(dataPath),
	), nil
}

// AttachDuckDB returns a DuckDB statement that attaches a plain DuckDB
// database file as a catalog.
func AttachDuckDB(catalogName, dbPath string) (string, error) {
	if err := ValidateIdentifier(catalogName); err != nil {
		return "", fmt.Errorf("invalid catalog name: %w", err)
	}
	if dbPath == "" {
		return "", fmt.Errorf("database path is required")
	}
	return fmt.Sprintf("ATTACH IF NOT EXISTS %s AS %s", QuoteLiteral(dbPath), QuoteIdentifier(catalogName)), nil
}

func literalList(values []string) string {
	return "[" + strings.Join(quoteAll(values), ", ") + "]"
}

func quoteAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = QuoteLiteral(v)
	}
	return out
}
