package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateVolume(t *testing.T) {
	tests := []struct {
		name    string
		vol     Volume
		wantErr string
	}{
		{
			name: "valid external volume",
			vol: Volume{
				Name: "tfl_raw", CatalogName: "tfl_dev", SchemaName: "landing",
				VolumeType:      VolumeTypeExternal,
				StorageLocation: "abfss://landing@acct.dfs.core.windows.net",
			},
		},
		{
			name: "valid managed volume",
			vol:  Volume{Name: "scratch", CatalogName: "tfl_dev", SchemaName: "landing", VolumeType: VolumeTypeManaged},
		},
		{
			name:    "empty name",
			vol:     Volume{CatalogName: "c", SchemaName: "s", VolumeType: VolumeTypeManaged},
			wantErr: "volume name is required",
		},
		{
			name:    "name too long",
			vol:     Volume{Name: strings.Repeat("a", 129), CatalogName: "c", SchemaName: "s", VolumeType: VolumeTypeManaged},
			wantErr: "at most 128 characters",
		},
		{
			name:    "missing schema",
			vol:     Volume{Name: "v", CatalogName: "c", VolumeType: VolumeTypeManaged},
			wantErr: "requires a catalog and schema",
		},
		{
			name:    "missing volume_type",
			vol:     Volume{Name: "v", CatalogName: "c", SchemaName: "s"},
			wantErr: "volume_type is required",
		},
		{
			name:    "unsupported volume_type",
			vol:     Volume{Name: "v", CatalogName: "c", SchemaName: "s", VolumeType: "UNKNOWN"},
			wantErr: "unsupported volume type",
		},
		{
			name:    "external without location",
			vol:     Volume{Name: "v", CatalogName: "c", SchemaName: "s", VolumeType: VolumeTypeExternal},
			wantErr: "storage_location is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVolume(tt.vol)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
