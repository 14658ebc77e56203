package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tfl-lake/internal/db/crypto"
	"tfl-lake/internal/domain"
)

// Compile-time check.
var _ domain.StorageCredentialRepository = (*StorageCredentialRepo)(nil)

const storageCredentialColumns = `id, name, credential_type, key_id_encrypted, secret_encrypted,
	endpoint, region, url_style, azure_account_name, azure_account_key_encrypted,
	gcs_key_file_path, comment, created_at, updated_at`

// StorageCredentialRepo implements StorageCredentialRepository with encrypted storage.
type StorageCredentialRepo struct {
	db  *sql.DB
	enc *crypto.Encryptor
}

// NewStorageCredentialRepo creates a new StorageCredentialRepo.
func NewStorageCredentialRepo(db *sql.DB, enc *crypto.Encryptor) *StorageCredentialRepo {
	return &StorageCredentialRepo{db: db, enc: enc}
}

// Create inserts a new storage credential with encrypted secrets.
func (r *StorageCredentialRepo) Create(ctx context.Context, cred *domain.StorageCredential) (*domain.StorageCredential, error) {
	encKeyID, err := r.enc.Encrypt(cred.KeyID)
	if err != nil {
		return nil, fmt.Errorf("encrypt key_id: %w", err)
	}
	encSecret, err := r.enc.Encrypt(cred.Secret)
	if err != nil {
		return nil, fmt.Errorf("encrypt secret: %w", err)
	}
	encAzureAccountKey, err := r.enc.Encrypt(cred.AzureAccountKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt azure_account_key: %w", err)
	}

	id := domain.NewID()
	ts := now()
	_, err = r.db.ExecContext(ctx, `INSERT INTO storage_credentials (`+storageCredentialColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, cred.Name, string(cred.CredentialType), encKeyID, encSecret,
		cred.Endpoint, cred.Region, cred.URLStyle, cred.AzureAccountName, encAzureAccountKey,
		cred.GCSKeyFilePath, cred.Comment, ts, ts,
	)
	if err != nil {
		return nil, mapConflict(err, "storage credential %q already exists", cred.Name)
	}
	return r.get(ctx, "id", id)
}

// GetByName returns a storage credential by its name, decrypting secrets.
func (r *StorageCredentialRepo) GetByName(ctx context.Context, name string) (*domain.StorageCredential, error) {
	cred, err := r.get(ctx, "name", name)
	if err != nil {
		return nil, mapNotFound(err, "storage credential %q not found", name)
	}
	return cred, nil
}

func (r *StorageCredentialRepo) get(ctx context.Context, column, value string) (*domain.StorageCredential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+storageCredentialColumns+` FROM storage_credentials WHERE `+column+` = ?`, value)
	return r.scan(row)
}

// List returns a paginated list of storage credentials ordered by name.
func (r *StorageCredentialRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.StorageCredential, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM storage_credentials`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+storageCredentialColumns+` FROM storage_credentials ORDER BY name LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	var creds []domain.StorageCredential
	for rows.Next() {
		cred, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		creds = append(creds, *cred)
	}
	return creds, total, rows.Err()
}

func (r *StorageCredentialRepo) scan(row scanner) (*domain.StorageCredential, error) {
	var c domain.StorageCredential
	var credType, keyID, secret, azureKey, createdAt, updatedAt string
	if err := row.Scan(&c.ID, &c.Name, &credType, &keyID, &secret,
		&c.Endpoint, &c.Region, &c.URLStyle, &c.AzureAccountName, &azureKey,
		&c.GCSKeyFilePath, &c.Comment, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.CredentialType = domain.CredentialType(credType)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)

	var err error
	if c.KeyID, err = r.enc.Decrypt(keyID); err != nil {
		return nil, fmt.Errorf("decrypt key_id: %w", err)
	}
	if c.Secret, err = r.enc.Decrypt(secret); err != nil {
		return nil, fmt.Errorf("decrypt secret: %w", err)
	}
	if c.AzureAccountKey, err = r.enc.Decrypt(azureKey); err != nil {
		return nil, fmt.Errorf("decrypt azure_account_key: %w", err)
	}
	return &c, nil
}
