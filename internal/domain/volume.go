package domain

import "time"

// VolumeType identifies the type of volume.
const (
	VolumeTypeManaged  = "MANAGED"
	VolumeTypeExternal = "EXTERNAL"
)

// Volume represents a governed pointer to a storage location for raw files.
type Volume struct {
	ID              string
	Name            string
	SchemaName      string
	CatalogName     string
	VolumeType      string // "MANAGED" or "EXTERNAL"
	StorageLocation string // abfss/S3/GCS/local URL
	Comment         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ValidateVolume validates a volume before it is persisted.
func ValidateVolume(v Volume) error {
	if v.Name == "" {
		return ErrValidation("volume name is required")
	}
	if len(v.Name) > 128 {
		return ErrValidation("volume name must be at most 128 characters")
	}
	if v.CatalogName == "" || v.SchemaName == "" {
		return ErrValidation("volume %q requires a catalog and schema", v.Name)
	}
	switch v.VolumeType {
	case VolumeTypeManaged, VolumeTypeExternal:
		// ok
	case "":
		return ErrValidation("volume_type is required")
	default:
		return ErrValidation("unsupported volume type %q; supported: MANAGED, EXTERNAL", v.VolumeType)
	}
	if v.VolumeType == VolumeTypeExternal && v.StorageLocation == "" {
		return ErrValidation("storage_location is required for EXTERNAL volumes")
	}
	return nil
}

// The external volume that holds raw feed files.
const (
	LandingVolumeSchema = "landing"
	LandingVolumeName   = "tfl_raw"
)
