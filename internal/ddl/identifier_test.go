package ddl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		// Valid cases
		{name: "simple", input: "lines_bz"},
		{name: "underscore_prefix", input: "_temp"},
		{name: "mixed_case", input: "MyTable"},
		{name: "with_digits", input: "tfl_dev2"},
		{name: "max_length", input: strings.Repeat("a", 128)},

		// Invalid cases
		{name: "empty", input: "", wantErr: "name is required"},
		{name: "too_long", input: strings.Repeat("a", 129), wantErr: "at most 128 characters"},
		{name: "starts_with_digit", input: "1table", wantErr: "must match"},
		{name: "contains_space", input: "my table", wantErr: "must match"},
		{name: "contains_hyphen", input: "my-table", wantErr: "must match"},
		{name: "contains_dot", input: "schema.table", wantErr: "must match"},
		{name: "contains_quote", input: `foo"bar`, wantErr: "must match"},
		{name: "sql_injection", input: "foo; DROP TABLE", wantErr: "must match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.input)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateColumnName(t *testing.T) {
	require.NoError(t, ValidateColumnName("$type"))
	require.NoError(t, ValidateColumnName("platform name"))
	require.NoError(t, ValidateColumnName(`we"ird`))

	err := ValidateColumnName("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")

	err = ValidateColumnName("a\x00b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NUL")
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple", input: "users", want: `"users"`},
		{name: "with_double_quote", input: `my"table`, want: `"my""table"`},
		{name: "dollar", input: "$type", want: `"$type"`},
		{name: "empty", input: "", want: `""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QuoteIdentifier(tt.input))
		})
	}
}

func TestQuoteLiteral(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple", input: "hello", want: "'hello'"},
		{name: "with_single_quote", input: "it's", want: "'it''s'"},
		{name: "path", input: "/data/landing/lines/a.json", want: "'/data/landing/lines/a.json'"},
		{name: "empty", input: "", want: "''"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QuoteLiteral(tt.input))
		})
	}
}

func TestQualifiedName(t *testing.T) {
	got, err := QualifiedName("tfl_dev", "bronze", "lines_bz")
	require.NoError(t, err)
	assert.Equal(t, `"tfl_dev"."bronze"."lines_bz"`, got)

	_, err = QualifiedName("tfl-dev", "bronze", "lines_bz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid catalog name")

	_, err = QualifiedName("tfl_dev", "", "lines_bz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schema name")

	_, err = QualifiedName("tfl_dev", "bronze", "x;y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}

func TestValidateColumnType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "simple", input: "VARCHAR"},
		{name: "decimal", input: "DECIMAL(10,2)"},
		{name: "list", input: "BIGINT[]"},
		{name: "timestamp_tz", input: "TIMESTAMP WITH TIME ZONE"},
		{name: "struct", input: `STRUCT("$type" VARCHAR, id VARCHAR, "name" VARCHAR)`},
		{name: "nested", input: `STRUCT(lines STRUCT(id VARCHAR, modes VARCHAR[])[], lat DOUBLE)`},
		{name: "map", input: "MAP(VARCHAR, BIGINT)"},
		{name: "quoted_semicolon_ok", input: `STRUCT("a;b" VARCHAR)`},

		{name: "empty", input: "", wantErr: "required"},
		{name: "too_long", input: strings.Repeat("A", 8193), wantErr: "at most"},
		{name: "semicolon", input: "INTEGER; DROP TABLE x", wantErr: "invalid characters"},
		{name: "comment", input: "INTEGER -- x", wantErr: "invalid characters"},
		{name: "block_comment", input: "INTEGER /* x */", wantErr: "invalid characters"},
		{name: "literal", input: "VARCHAR DEFAULT 'x'", wantErr: "invalid characters"},
		{name: "unbalanced_open", input: "STRUCT(a VARCHAR", wantErr: "unbalanced"},
		{name: "unbalanced_close", input: "VARCHAR)", wantErr: "unbalanced"},
		{name: "unterminated_quote", input: `STRUCT("a VARCHAR)`, wantErr: "unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateColumnType(tt.input)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestStorageType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "JSON", want: "VARCHAR"},
		{input: "NULL", want: "VARCHAR"},
		{input: "BIGINT", want: "BIGINT"},
		{input: "JSON[]", want: "VARCHAR[]"},
		{input: "STRUCT(reason JSON, id VARCHAR)", want: "STRUCT(reason VARCHAR, id VARCHAR)"},
		{input: "STRUCT(json JSON)", want: "STRUCT(json VARCHAR)"},
		{input: "MAP(VARCHAR, JSON)", want: "MAP(VARCHAR, VARCHAR)"},
		{input: `STRUCT("JSON" JSON, "a""JSON" BIGINT)`, want: `STRUCT("JSON" VARCHAR, "a""JSON" BIGINT)`},
		{input: "STRUCT(jsonish BIGINT)", want: "STRUCT(jsonish BIGINT)"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, StorageType(tt.input))
		})
	}
}
