package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"tfl-lake/internal/domain"
)

// Logical storage layers and container roles.
const (
	LayerLanding     = "landing"
	LayerBronze      = "bronze"
	LayerSilver      = "silver"
	LayerGold        = "gold"
	LayerCheckpoints = "checkpoints"
)

// requiredContainers are the container roles every environment must map.
var requiredContainers = []string{LayerLanding, LayerBronze, LayerSilver, LayerGold, LayerCheckpoints}

// requiredLocations are the layers every environment must bind to an external location.
var requiredLocations = []string{LayerLanding, LayerBronze, LayerSilver, LayerGold}

// LakeConfig is the configuration of one deployment environment.
// It is loaded once per process and never mutated.
type LakeConfig struct {
	Environment string        `json:"-" yaml:"-"`
	Catalog     string        `json:"catalog" yaml:"catalog"`
	Schemas     SchemaNames   `json:"schemas" yaml:"schemas"`
	Storage     StorageConfig `json:"storage" yaml:"storage"`
}

// SchemaNames holds the medallion schema names.
type SchemaNames struct {
	Bronze string `json:"bronze" yaml:"bronze"`
	Silver string `json:"silver" yaml:"silver"`
	Gold   string `json:"gold" yaml:"gold"`
}

// StorageConfig describes the storage account backing the lake.
type StorageConfig struct {
	AccountName       string            `json:"account_name" yaml:"account_name"`
	StorageCredential string            `json:"storage_credential" yaml:"storage_credential"`
	Containers        map[string]string `json:"containers" yaml:"containers"`
	ExternalLocations map[string]string `json:"external_locations" yaml:"external_locations"`
}

// Schema returns the schema name for a logical layer. The landing layer has
// no configurable schema and is always "landing".
func (c *LakeConfig) Schema(layer string) string {
	switch layer {
	case LayerBronze:
		return c.Schemas.Bronze
	case LayerSilver:
		return c.Schemas.Silver
	case LayerGold:
		return c.Schemas.Gold
	default:
		return layer
	}
}

// Layers returns the logical layers that carry an external location, in
// provisioning order.
func (c *LakeConfig) Layers() []string {
	return append([]string(nil), requiredLocations...)
}

// MissingKeys lists required keys that are absent or empty, as dotted paths.
func (c *LakeConfig) MissingKeys() []string {
	var missing []string
	check := func(key, val string) {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}
	check("catalog", c.Catalog)
	check("schemas.bronze", c.Schemas.Bronze)
	check("schemas.silver", c.Schemas.Silver)
	check("schemas.gold", c.Schemas.Gold)
	check("storage.account_name", c.Storage.AccountName)
	check("storage.storage_credential", c.Storage.StorageCredential)
	for _, role := range requiredContainers {
		check("storage.containers."+role, c.Storage.Containers[role])
	}
	for _, layer := range requiredLocations {
		check("storage.external_locations."+layer, c.Storage.ExternalLocations[layer])
	}
	return missing
}

// LoadLakeConfig reads the configuration file at path and returns the entry
// for env. A missing or malformed file, or an entry lacking required keys,
// yields *domain.ConfigurationUnreadableError. An unknown env yields
// *domain.ConfigurationNotFoundError listing the known environments. Only the
// selected entry is checked for required keys; other entries need only decode.
func LoadLakeConfig(path, env string) (*LakeConfig, error) {
	all, err := readLakeConfigs(path)
	if err != nil {
		return nil, err
	}

	cfg, ok := all[env]
	if !ok {
		return nil, &domain.ConfigurationNotFoundError{Environment: env, Available: Environments(all)}
	}
	if cfg == nil {
		return nil, &domain.ConfigurationUnreadableError{Path: path, Reason: fmt.Sprintf("environment %q has an empty entry", env)}
	}
	if missing := cfg.MissingKeys(); len(missing) > 0 {
		return nil, &domain.ConfigurationUnreadableError{
			Path:   path,
			Reason: fmt.Sprintf("environment %q is missing required keys: %s", env, strings.Join(missing, ", ")),
		}
	}

	cfg.Environment = env
	return cfg, nil
}

// Environments returns the sorted environment names of a decoded configuration.
func Environments(all map[string]*LakeConfig) []string {
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// readLakeConfigs decodes the whole file. JSON is the canonical format; files
// ending in .yaml or .yml are decoded as YAML with the same structure.
func readLakeConfigs(path string) (map[string]*LakeConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		return nil, &domain.ConfigurationUnreadableError{Path: path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &domain.ConfigurationUnreadableError{Path: path, Reason: "file is empty"}
	}

	all := make(map[string]*LakeConfig)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &all); err != nil {
			return nil, &domain.ConfigurationUnreadableError{Path: path, Err: err}
		}
	default:
		if err := json.Unmarshal(data, &all); err != nil {
			return nil, &domain.ConfigurationUnreadableError{Path: path, Err: err}
		}
	}
	if len(all) == 0 {
		return nil, &domain.ConfigurationUnreadableError{Path: path, Reason: "no environments defined"}
	}
	return all, nil
}
