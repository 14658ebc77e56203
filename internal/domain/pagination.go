package domain

import (
	"encoding/base64"
	"errors"
	"strconv"
)

// Page sizes of list operations.
const (
	DefaultMaxResults = 100
	MaxMaxResults     = 1000
)

// PageRequest holds pagination parameters for list operations. PageToken is
// the NextPageToken of the previous page; clients treat it as opaque.
type PageRequest struct {
	MaxResults int
	PageToken  string
}

// Validate rejects a negative page size or a token NextPageToken did not issue.
func (p PageRequest) Validate() error {
	if p.MaxResults < 0 {
		return ErrValidation("max_results must be non-negative, got %d", p.MaxResults)
	}
	if _, err := decodePageToken(p.PageToken); err != nil {
		return ErrValidation("invalid page_token %q", p.PageToken)
	}
	return nil
}

// Offset returns the row offset the page starts at. An empty or malformed
// token starts at the first row.
func (p PageRequest) Offset() int {
	offset, _ := decodePageToken(p.PageToken)
	return offset
}

// Limit returns the effective page size, clamped to [1, MaxMaxResults].
func (p PageRequest) Limit() int {
	if p.MaxResults <= 0 {
		return DefaultMaxResults
	}
	return min(p.MaxResults, MaxMaxResults)
}

// EncodePageToken returns the token of the page starting at offset, or ""
// for the first page. Tokens are URL-safe.
func EncodePageToken(offset int) string {
	if offset <= 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

// NextPageToken returns the token of the page after [offset, offset+limit),
// or "" when that page holds the last of total rows.
func NextPageToken(offset, limit int, total int64) string {
	next := offset + limit
	if int64(next) >= total {
		return ""
	}
	return EncodePageToken(next)
}

func decodePageToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, err
	}
	offset, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, errors.New("negative offset")
	}
	return offset, nil
}
