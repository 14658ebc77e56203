package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Location
	}{
		{"abfss", "abfss://landing@tflstorage.dfs.core.windows.net/tfl_raw/lines",
			Location{Scheme: SchemeABFSS, Host: "tflstorage.dfs.core.windows.net", Bucket: "landing", Key: "tfl_raw/lines"}},
		{"abfss root", "abfss://landing@tflstorage.dfs.core.windows.net",
			Location{Scheme: SchemeABFSS, Host: "tflstorage.dfs.core.windows.net", Bucket: "landing"}},
		{"az", "az://bronze/x/y.json", Location{Scheme: SchemeAz, Bucket: "bronze", Key: "x/y.json"}},
		{"azure alias", "azure://bronze/x", Location{Scheme: SchemeAz, Bucket: "bronze", Key: "x"}},
		{"s3", "s3://bucket/a/b", Location{Scheme: SchemeS3, Bucket: "bucket", Key: "a/b"}},
		{"gs", "gs://bucket/a", Location{Scheme: SchemeGS, Bucket: "bucket", Key: "a"}},
		{"gcs alias", "gcs://bucket/a", Location{Scheme: SchemeGS, Bucket: "bucket", Key: "a"}},
		{"file url", "file:///tmp/lake", Location{Scheme: SchemeFile, Key: "/tmp/lake"}},
		{"bare path", "/tmp/lake/x", Location{Scheme: SchemeFile, Key: "/tmp/lake/x"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseLocation(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseLocation_Errors(t *testing.T) {
	for _, raw := range []string{"", "ftp://host/x", "s3:///key", "abfss://tflstorage.dfs.core.windows.net/x"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseLocation(raw)
			require.Error(t, err)
		})
	}
}

func TestLocation_RoundTrip(t *testing.T) {
	for _, raw := range []string{
		"abfss://chkpts@tflstorage.dfs.core.windows.net/bronze/lines_bz",
		"abfss://landing@tflstorage.dfs.core.windows.net",
		"s3://bucket/a/b.json",
		"gs://bucket",
	} {
		loc, err := ParseLocation(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, loc.String())
	}
}

func TestLocation_Child(t *testing.T) {
	loc, err := ParseLocation("abfss://landing@tflstorage.dfs.core.windows.net")
	require.NoError(t, err)

	assert.Equal(t, "abfss://landing@tflstorage.dfs.core.windows.net/lines/a.json", loc.Child("lines/a.json").String())
	assert.Equal(t, "abfss://landing@tflstorage.dfs.core.windows.net/lines/a.json", loc.Child("lines").Child("/a.json").String())
	assert.Equal(t, loc, loc.Child(""))
}

func TestLocation_Account(t *testing.T) {
	loc, err := ParseLocation("abfss://landing@tflstorage.dfs.core.windows.net/x")
	require.NoError(t, err)
	assert.Equal(t, "tflstorage", loc.Account())
}

func TestLocalPath(t *testing.T) {
	root := filepath.FromSlash("/data/lake")
	tests := []struct {
		raw  string
		want string
	}{
		{"abfss://chkpts@tflstorage.dfs.core.windows.net/bronze/lines_bz", "/data/lake/tflstorage/chkpts/bronze/lines_bz"},
		{"abfss://landing@tflstorage.dfs.core.windows.net", "/data/lake/tflstorage/landing"},
		{"az://c/k", "/data/lake/az/c/k"},
		{"s3://b/k/x.json", "/data/lake/s3/b/k/x.json"},
		{"gs://b/k", "/data/lake/gs/b/k"},
		{"/already/local", "/already/local"},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			loc, err := ParseLocation(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tc.want), LocalPath(root, loc))
		})
	}
}
