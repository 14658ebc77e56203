package ddl

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierRe allows alphanumeric + underscores, starting with a letter or underscore.
var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// maxIdentifierLen is the maximum length allowed for a SQL identifier.
const maxIdentifierLen = 128

// maxColumnTypeLen bounds inferred types; nested STRUCTs from JSON feeds get long.
const maxColumnTypeLen = 8192

// ValidateIdentifier checks that name is a safe SQL identifier:
//   - Non-empty
//   - At most 128 characters
//   - Matches [a-zA-Z_][a-zA-Z0-9_]*
//
// Catalog, schema, and table names go through this check. Column names come
// from source files and only go through ValidateColumnName.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("name must be at most %d characters", maxIdentifierLen)
	}
	if !identifierRe.MatchString(name) {
		return fmt.Errorf("name must match [a-zA-Z_][a-zA-Z0-9_]*")
	}
	return nil
}

// ValidateColumnName accepts any non-empty name without NUL bytes. Feed
// payloads carry keys such as "$type", so column names are always quoted.
func ValidateColumnName(name string) error {
	if name == "" {
		return fmt.Errorf("column name is required")
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("column name must be at most %d characters", maxIdentifierLen)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("column name contains a NUL byte")
	}
	return nil
}

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double-quote characters by doubling them (standard SQL).
//
// Always quotes unconditionally; callers should validate first if needed.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral wraps a string value in single quotes, escaping any
// embedded single-quote characters by doubling them (standard SQL).
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// QualifiedName returns "catalog"."schema"."table" after validating each part.
func QualifiedName(catalog, schema, table string) (string, error) {
	if err := ValidateIdentifier(catalog); err != nil {
		return "", fmt.Errorf("invalid catalog name: %w", err)
	}
	if err := ValidateIdentifier(schema); err != nil {
		return "", fmt.Errorf("invalid schema name: %w", err)
	}
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	return QuoteIdentifier(catalog) + "." + QuoteIdentifier(schema) + "." + QuoteIdentifier(table), nil
}

// ValidateColumnType checks a DuckDB type as reported by DESCRIBE. Nested
// types (STRUCT, MAP, LIST, arrays) are allowed, and quoted field names inside
// them may contain any character. Outside quotes, statement terminators,
// comments, and string literals are rejected and parentheses must balance.
func ValidateColumnType(typeName string) error {
	if strings.TrimSpace(typeName) == "" {
		return fmt.Errorf("column type is required")
	}
	if len(typeName) > maxColumnTypeLen {
		return fmt.Errorf("column type must be at most %d characters", maxColumnTypeLen)
	}

	depth := 0
	inQuote := false
	for i := 0; i < len(typeName); i++ {
		c := typeName[i]
		if inQuote {
			if c == '"' {
				if i+1 < len(typeName) && typeName[i+1] == '"' {
					i++
					continue
				}
				inQuote = false
			}
			continue
		}
		switch c {
		case '"':
			inQuote = true
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("column type %q has unbalanced parentheses", typeName)
			}
		case ';', '\'', '\\', 0:
			return fmt.Errorf("column type contains invalid characters")
		case '-', '/':
			if i+1 < len(typeName) && (typeName[i+1] == '-' || typeName[i+1] == '*') {
				return fmt.Errorf("column type contains invalid characters")
			}
		}
	}
	if inQuote {
		return fmt.Errorf("column type %q has an unterminated quoted name", typeName)
	}
	if depth != 0 {
		return fmt.Errorf("column type %q has unbalanced parentheses", typeName)
	}
	return nil
}

// StorageType returns the type a bronze column is stored as for an inferred
// type. JSON and NULL, which DuckDB infers for fields that are null or mixed
// in a sample, become VARCHAR wherever they appear, including inside nested
// types. Struct field names are left untouched.
func StorageType(inferred string) string {
	var b strings.Builder
	inQuote := false
	for i := 0; i < len(inferred); {
		c := inferred[i]
		switch {
		case inQuote:
			inQuote = c != '"'
			b.WriteByte(c)
			i++
		case c == '"':
			inQuote = true
			b.WriteByte(c)
			i++
		case isTypeWordByte(c):
			j := i
			for j < len(inferred) && isTypeWordByte(inferred[j]) {
				j++
			}
			word := inferred[i:j]
			// A type name is followed by a separator; a field name by its type.
			atTypeEnd := j == len(inferred) || strings.IndexByte(",)[", inferred[j]) >= 0
			if atTypeEnd && (strings.EqualFold(word, "JSON") || strings.EqualFold(word, "NULL")) {
				word = "VARCHAR"
			}
			b.WriteString(word)
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

func isTypeWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
