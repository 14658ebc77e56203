package engine

import (
	"context"
	"fmt"

	"tfl-lake/internal/ddl"
	"tfl-lake/internal/domain"
)

// CreateSecret registers a storage credential with DuckDB so remote reads and
// catalog data files can be accessed. A non-empty scope limits the secret to
// URLs under that prefix; DuckDB picks the longest matching scope.
func (e *Engine) CreateSecret(ctx context.Context, name string, cred *domain.StorageCredential, scope string) error {
	var stmt string
	var err error
	switch cred.CredentialType {
	case domain.CredentialTypeS3:
		stmt, err = ddl.CreateS3Secret(name, cred.KeyID, cred.Secret, cred.Endpoint, cred.Region, cred.URLStyle, scope)
	case domain.CredentialTypeAzure:
		stmt, err = ddl.CreateAzureSecret(name, cred.AzureAccountName, cred.AzureAccountKey, scope)
	case domain.CredentialTypeGCS:
		stmt, err = ddl.CreateGCSSecret(name, cred.GCSKeyFilePath, scope)
	default:
		return domain.ErrValidation("unsupported credential type %q", string(cred.CredentialType))
	}
	if err != nil {
		return fmt.Errorf("build DDL: %w", err)
	}
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create secret %q: %w", name, err)
	}
	e.logger.Debug("secret created", "secret", name, "type", cred.CredentialType, "scope", scope)
	return nil
}
