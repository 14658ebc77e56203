// Package lakepath derives table identifiers and storage locations from the
// lake configuration. Every other package builds names through a Builder and
// never formats them by hand.
package lakepath

import (
	"tfl-lake/internal/config"
)

const (
	storageScheme = "abfss://"
	storageSuffix = ".dfs.core.windows.net"
)

// Builder composes identifiers and paths for one environment. It performs no
// I/O; the same configuration and arguments always yield the same strings.
type Builder struct {
	cfg *config.LakeConfig
}

// New returns a Builder over cfg.
func New(cfg *config.LakeConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Config returns the configuration the builder was created with.
func (b *Builder) Config() *config.LakeConfig { return b.cfg }

// Catalog returns the catalog name.
func (b *Builder) Catalog() string { return b.cfg.Catalog }

// Schema returns the schema name for a logical layer.
func (b *Builder) Schema(layer string) string { return b.cfg.Schema(layer) }

// TableIdentifier returns catalog.schema.table. No existence check is made.
func (b *Builder) TableIdentifier(schema, table string) string {
	return b.cfg.Catalog + "." + schema + "." + table
}

// VolumeIdentifier returns catalog.schema.volume.
func (b *Builder) VolumeIdentifier(schema, volume string) string {
	return b.TableIdentifier(schema, volume)
}

// StoragePath resolves a logical container through the container mapping,
// using the logical name verbatim when unmapped, and returns its abfss URL.
// The subdirectory is appended only when non-empty.
func (b *Builder) StoragePath(container, subdir string) string {
	physical, ok := b.cfg.Storage.Containers[container]
	if !ok || physical == "" {
		physical = container
	}
	path := storageScheme + physical + "@" + b.cfg.Storage.AccountName + storageSuffix
	if subdir != "" {
		path += "/" + subdir
	}
	return path
}

// LayerLocation is the root URL of a layer's container.
func (b *Builder) LayerLocation(layer string) string {
	return b.StoragePath(layer, "")
}

// CheckpointPath is where a bronze table's stream keeps its progress.
func (b *Builder) CheckpointPath(table string) string {
	return b.StoragePath(config.LayerCheckpoints, "bronze/"+table)
}

// SchemaTrackingPath is where a bronze table's inferred schema versions live.
func (b *Builder) SchemaTrackingPath(table string) string {
	return b.StoragePath(config.LayerCheckpoints, "schema/"+table)
}
