package domain

import (
	"strings"
	"time"
)

// StorageType identifies the type of cloud storage.
type StorageType string

// Supported storage types for external locations.
const (
	StorageTypeS3    StorageType = "S3"
	StorageTypeAzure StorageType = "AZURE"
	StorageTypeGCS   StorageType = "GCS"
	StorageTypeLocal StorageType = "LOCAL"
)

// StorageTypeForURL infers the storage type from a location URL scheme.
func StorageTypeForURL(u string) StorageType {
	switch {
	case strings.HasPrefix(u, "abfss://"), strings.HasPrefix(u, "az://"),
		strings.HasPrefix(u, "azure://"):
		return StorageTypeAzure
	case strings.HasPrefix(u, "s3://"):
		return StorageTypeS3
	case strings.HasPrefix(u, "gs://"), strings.HasPrefix(u, "gcs://"):
		return StorageTypeGCS
	default:
		return StorageTypeLocal
	}
}

// CredentialType identifies the type of credential.
type CredentialType string

// Supported credential types for storage access.
const (
	CredentialTypeS3    CredentialType = "S3"
	CredentialTypeAzure CredentialType = "AZURE"
	CredentialTypeGCS   CredentialType = "GCS"
)

// StorageCredential holds cloud storage credentials.
// Sensitive fields are stored encrypted at rest and decrypted in memory.
type StorageCredential struct {
	ID             string
	Name           string
	CredentialType CredentialType

	// S3 fields
	KeyID    string // plaintext after decryption
	Secret   string // plaintext after decryption
	Endpoint string
	Region   string
	URLStyle string // "path" or "vhost"

	// Azure fields
	AzureAccountName string
	AzureAccountKey  string // plaintext after decryption

	// GCS fields
	GCSKeyFilePath string

	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExternalLocation is a named pointer from the catalog to a physical storage
// prefix, resolved to a credential when the prefix is accessed.
type ExternalLocation struct {
	ID             string
	Name           string
	URL            string // e.g. "abfss://bronze@acct.dfs.core.windows.net"
	CredentialName string // references StorageCredential.Name
	StorageType    StorageType
	Comment        string
	ReadOnly       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ValidateStorageCredential validates a credential before it is persisted.
func ValidateStorageCredential(c StorageCredential) error {
	if c.Name == "" {
		return ErrValidation("credential name is required")
	}
	if len(c.Name) > 128 {
		return ErrValidation("credential name must be at most 128 characters")
	}

	switch c.CredentialType {
	case CredentialTypeS3:
		if c.KeyID == "" {
			return ErrValidation("key_id is required for S3 credentials")
		}
		if c.Secret == "" {
			return ErrValidation("secret is required for S3 credentials")
		}
		if c.Region == "" {
			return ErrValidation("region is required for S3 credentials")
		}
	case CredentialTypeAzure:
		if c.AzureAccountName == "" {
			return ErrValidation("azure_account_name is required for Azure credentials")
		}
		if c.AzureAccountKey == "" {
			return ErrValidation("azure_account_key is required for Azure credentials")
		}
	case CredentialTypeGCS:
		if c.GCSKeyFilePath == "" {
			return ErrValidation("gcs_key_file_path is required for GCS credentials")
		}
	default:
		return ErrValidation("unsupported credential type %q; supported: S3, AZURE, GCS", string(c.CredentialType))
	}
	return nil
}

// ValidateExternalLocation validates a location before it is persisted.
func ValidateExternalLocation(l ExternalLocation) error {
	if l.Name == "" {
		return ErrValidation("location name is required")
	}
	if len(l.Name) > 128 {
		return ErrValidation("location name must be at most 128 characters")
	}
	if l.URL == "" {
		return ErrValidation("url is required")
	}
	if l.CredentialName == "" {
		return ErrValidation("credential_name is required")
	}
	switch l.StorageType {
	case "", StorageTypeS3, StorageTypeAzure, StorageTypeGCS, StorageTypeLocal:
		return nil
	default:
		return ErrValidation("unsupported storage type %q; supported: S3, AZURE, GCS, LOCAL", string(l.StorageType))
	}
}
