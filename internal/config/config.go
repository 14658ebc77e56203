// Package config handles process settings, environment resolution, and the
// per-environment lake configuration file.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names read by LoadSettings.
const (
	EnvEnvironment = "ENVIRONMENT"
	EnvConfigPath  = "TFL_CONFIG_PATH"
)

// DefaultEnvironment is used when ENVIRONMENT is not set.
const DefaultEnvironment = "dev"

// Catalog backends.
const (
	CatalogBackendDuckLake = "ducklake"
	CatalogBackendDuckDB   = "duckdb"
)

const insecureEncryptionKey = "0000000000000000000000000000000000000000000000000000000000000000"

// Settings holds process-level configuration read from environment variables.
type Settings struct {
	Environment      string        // deployment environment (default "dev")
	ConfigPath       string        // lake configuration file (default config/env-config.json)
	MetaDBPath       string        // SQLite metastore path (default tfl_meta.sqlite)
	LakeMetadataDir  string        // directory holding catalog metadata files (default ".")
	LocalStorageRoot string        // when set, cloud URLs are mapped under this directory
	CatalogBackend   string        // "ducklake" (default) or "duckdb"
	JobTimeout       time.Duration // per-job bound in the orchestrator (default 1h)
	ProcessingTime   time.Duration // continuous trigger interval (default 5s)
	LogLevel         string        // debug, info, warn, error (default "info")
	EncryptionKey    string        // 64-char hex AES key for stored credentials
	ListenAddr       string        // HTTP listen address (default ":8080")

	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string

	// Warnings collects non-fatal warnings generated during loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (s *Settings) SlogLevel() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LocalStorage reports whether cloud storage is emulated on the local filesystem.
func (s *Settings) LocalStorage() bool {
	return s.LocalStorageRoot != ""
}

// ResolveEnvironment returns the deployment environment name from ENVIRONMENT,
// or DefaultEnvironment when it is unset. The value is not validated here;
// an unknown name fails when the lake configuration is looked up.
func ResolveEnvironment() string {
	if v := strings.TrimSpace(os.Getenv(EnvEnvironment)); v != "" {
		return v
	}
	return DefaultEnvironment
}

// LoadSettings loads process settings from environment variables.
func LoadSettings() (*Settings, error) {
	s := &Settings{
		Environment:      ResolveEnvironment(),
		ConfigPath:       os.Getenv(EnvConfigPath),
		MetaDBPath:       os.Getenv("META_DB_PATH"),
		LakeMetadataDir:  os.Getenv("LAKE_METADATA_DIR"),
		LocalStorageRoot: os.Getenv("LOCAL_STORAGE_ROOT"),
		CatalogBackend:   strings.ToLower(os.Getenv("CATALOG_BACKEND")),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		EncryptionKey:    os.Getenv("ENCRYPTION_KEY"),
		ListenAddr:       os.Getenv("LISTEN_ADDR"),
	}

	var err error
	if s.JobTimeout, err = parseDurationEnv("JOB_TIMEOUT", time.Hour); err != nil {
		return nil, err
	}
	if s.ProcessingTime, err = parseDurationEnv("PROCESSING_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			s.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.RateLimitBurst = n
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		s.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if s.ConfigPath == "" {
		s.ConfigPath = "config/env-config.json"
	}
	if s.MetaDBPath == "" {
		s.MetaDBPath = "tfl_meta.sqlite"
	}
	if s.LakeMetadataDir == "" {
		s.LakeMetadataDir = "."
	}
	if s.CatalogBackend == "" {
		s.CatalogBackend = CatalogBackendDuckLake
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.ListenAddr == "" {
		s.ListenAddr = ":8080"
	}
	if s.RateLimitRPS == 0 {
		s.RateLimitRPS = 20
	}
	if s.RateLimitBurst == 0 {
		s.RateLimitBurst = 40
	}
	if len(s.CORSAllowedOrigins) == 0 {
		s.CORSAllowedOrigins = []string{"*"}
	}

	switch s.CatalogBackend {
	case CatalogBackendDuckLake, CatalogBackendDuckDB:
	default:
		return nil, fmt.Errorf("CATALOG_BACKEND must be %q or %q, got %q",
			CatalogBackendDuckLake, CatalogBackendDuckDB, s.CatalogBackend)
	}
	if s.EncryptionKey == "" {
		s.EncryptionKey = insecureEncryptionKey
		s.Warnings = append(s.Warnings, "ENCRYPTION_KEY not set, using insecure default. Set ENCRYPTION_KEY outside dev!")
	}
	if err := s.CheckEncryptionKey(); err != nil {
		return nil, err
	}
	if s.LocalStorage() {
		s.Warnings = append(s.Warnings, fmt.Sprintf("LOCAL_STORAGE_ROOT set: cloud storage is emulated under %s", s.LocalStorageRoot))
	}

	return s, nil
}

// CheckEncryptionKey rejects the insecure default key in prod.
func (s *Settings) CheckEncryptionKey() error {
	if s.Environment == "prod" && s.EncryptionKey == insecureEncryptionKey {
		return fmt.Errorf("ENCRYPTION_KEY must be set when ENVIRONMENT=prod")
	}
	return nil
}

func parseDurationEnv(key string, defaultVal time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal, nil
	}
	// Bare integers are seconds, matching the notebook-era timeout_seconds.
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("%s must be positive, got %d", key, n)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
