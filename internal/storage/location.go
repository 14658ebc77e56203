// Package storage lists, reads, and writes objects behind the lake's storage
// URLs (abfss, az, s3, gs, or plain filesystem paths) and maps those URLs to
// the paths DuckDB reads.
package storage

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Supported URL schemes. SchemeFile covers file:// URLs and bare paths.
const (
	SchemeABFSS = "abfss"
	SchemeAz    = "az"
	SchemeS3    = "s3"
	SchemeGS    = "gs"
	SchemeFile  = ""
)

// Location is a parsed storage URL.
type Location struct {
	Scheme string
	Host   string // abfss only: <account>.dfs.core.windows.net
	Bucket string // container or bucket
	Key    string // object key without leading slash; the path for SchemeFile
}

// ParseLocation parses a storage URL. Anything without a recognised scheme is
// treated as a filesystem path.
func ParseLocation(raw string) (Location, error) {
	if raw == "" {
		return Location{}, fmt.Errorf("empty storage location")
	}
	if !strings.Contains(raw, "://") {
		return Location{Scheme: SchemeFile, Key: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse storage location %q: %w", raw, err)
	}
	key := strings.Trim(u.Path, "/")

	switch u.Scheme {
	case "file":
		return Location{Scheme: SchemeFile, Key: u.Path}, nil
	case SchemeABFSS:
		// abfss://container@account.dfs.core.windows.net/path: url.Parse puts
		// the container in userinfo.
		if u.User == nil || u.User.Username() == "" {
			return Location{}, fmt.Errorf("abfss location %q missing container@account component", raw)
		}
		if u.Host == "" {
			return Location{}, fmt.Errorf("abfss location %q missing account host", raw)
		}
		return Location{Scheme: SchemeABFSS, Host: u.Host, Bucket: u.User.Username(), Key: key}, nil
	case SchemeAz, "azure":
		if u.Host == "" {
			return Location{}, fmt.Errorf("empty container in %q", raw)
		}
		return Location{Scheme: SchemeAz, Bucket: u.Host, Key: key}, nil
	case SchemeS3:
		if u.Host == "" {
			return Location{}, fmt.Errorf("empty bucket in %q", raw)
		}
		return Location{Scheme: SchemeS3, Bucket: u.Host, Key: key}, nil
	case SchemeGS, "gcs":
		if u.Host == "" {
			return Location{}, fmt.Errorf("empty bucket in %q", raw)
		}
		return Location{Scheme: SchemeGS, Bucket: u.Host, Key: key}, nil
	default:
		return Location{}, fmt.Errorf("unsupported storage scheme %q in %q", u.Scheme, raw)
	}
}

// Account returns the storage account of an abfss location.
func (l Location) Account() string {
	account, _, _ := strings.Cut(l.Host, ".")
	return account
}

// String renders the location back to its URL form.
func (l Location) String() string {
	var base string
	switch l.Scheme {
	case SchemeFile:
		return l.Key
	case SchemeABFSS:
		base = "abfss://" + l.Bucket + "@" + l.Host
	default:
		base = l.Scheme + "://" + l.Bucket
	}
	if l.Key == "" {
		return base
	}
	return base + "/" + l.Key
}

// Child returns the location rel beneath l.
func (l Location) Child(rel string) Location {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" {
		return l
	}
	c := l
	if l.Scheme == SchemeFile {
		c.Key = filepath.Join(l.Key, filepath.FromSlash(rel))
		return c
	}
	if l.Key == "" {
		c.Key = rel
	} else {
		c.Key = path.Join(l.Key, rel)
	}
	return c
}

// ContainerKey identifies the container or bucket a location lives in.
func (l Location) ContainerKey() string {
	return l.Scheme + "://" + l.Bucket + "@" + l.Host
}

// LocalPath maps a location under root:
//
//	abfss://c@acct.dfs.core.windows.net/k -> <root>/acct/c/k
//	az://c/k                              -> <root>/az/c/k
//	s3://b/k                              -> <root>/s3/b/k
//	gs://b/k                              -> <root>/gs/b/k
//
// Filesystem paths are returned unchanged.
func LocalPath(root string, l Location) string {
	var parts []string
	switch l.Scheme {
	case SchemeFile:
		return l.Key
	case SchemeABFSS:
		parts = []string{root, l.Account(), l.Bucket}
	default:
		parts = []string{root, l.Scheme, l.Bucket}
	}
	if l.Key != "" {
		parts = append(parts, filepath.FromSlash(l.Key))
	}
	return filepath.Join(parts...)
}
