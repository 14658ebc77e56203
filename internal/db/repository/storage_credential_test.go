package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "tfl-lake/internal/db"
	"tfl-lake/internal/db/crypto"
	"tfl-lake/internal/domain"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func setupStorageCredentialRepo(t *testing.T) *StorageCredentialRepo {
	t.Helper()
	writeDB := internaldb.OpenTestMetastore(t).Write
	enc, err := crypto.NewEncryptor(testEncryptionKey)
	require.NoError(t, err)
	return NewStorageCredentialRepo(writeDB, enc)
}

func TestStorageCredentialRepo_Azure(t *testing.T) {
	repo := setupStorageCredentialRepo(t)
	ctx := context.Background()

	cred, err := repo.Create(ctx, &domain.StorageCredential{
		Name:             "tfl_cred",
		CredentialType:   domain.CredentialTypeAzure,
		AzureAccountName: "tflstorage",
		AzureAccountKey:  "c2VjcmV0LWtleQ==",
		Comment:          "lake storage",
	})
	require.NoError(t, err)

	t.Run("fields set correctly after create", func(t *testing.T) {
		assert.NotEmpty(t, cred.ID)
		assert.Equal(t, "tfl_cred", cred.Name)
		assert.Equal(t, domain.CredentialTypeAzure, cred.CredentialType)
		assert.Equal(t, "tflstorage", cred.AzureAccountName)
		assert.Equal(t, "c2VjcmV0LWtleQ==", cred.AzureAccountKey)
		assert.Empty(t, cred.KeyID)
		assert.False(t, cred.CreatedAt.IsZero())
	})

	t.Run("secret encrypted at rest", func(t *testing.T) {
		var stored string
		err := repo.db.QueryRow(`SELECT azure_account_key_encrypted FROM storage_credentials WHERE name = ?`, "tfl_cred").Scan(&stored)
		require.NoError(t, err)
		assert.NotEmpty(t, stored)
		assert.NotContains(t, stored, "c2VjcmV0LWtleQ==")
	})

	t.Run("GetByName decrypts", func(t *testing.T) {
		found, err := repo.GetByName(ctx, "tfl_cred")
		require.NoError(t, err)
		assert.Equal(t, cred.ID, found.ID)
		assert.Equal(t, "c2VjcmV0LWtleQ==", found.AzureAccountKey)
	})

	t.Run("GetByName not found", func(t *testing.T) {
		_, err := repo.GetByName(ctx, "missing")
		require.Error(t, err)
		var notFound *domain.NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Contains(t, err.Error(), `"missing"`)
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		_, err := repo.Create(ctx, &domain.StorageCredential{
			Name: "tfl_cred", CredentialType: domain.CredentialTypeAzure,
			AzureAccountName: "x", AzureAccountKey: "y",
		})
		require.Error(t, err)
		var conflict *domain.ConflictError
		assert.ErrorAs(t, err, &conflict)
	})
}

func TestStorageCredentialRepo_List(t *testing.T) {
	repo := setupStorageCredentialRepo(t)
	ctx := context.Background()

	for _, name := range []string{"c_cred", "a_cred", "b_cred"} {
		_, err := repo.Create(ctx, &domain.StorageCredential{
			Name: name, CredentialType: domain.CredentialTypeS3,
			KeyID: "AKIA", Secret: "s", Region: "eu-west-2",
		})
		require.NoError(t, err)
	}

	creds, total, err := repo.List(ctx, domain.PageRequest{MaxResults: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, creds, 2)
	assert.Equal(t, "a_cred", creds[0].Name)
	assert.Equal(t, "b_cred", creds[1].Name)
	assert.Equal(t, "AKIA", creds[0].KeyID)

	next, _, err := repo.List(ctx, domain.PageRequest{MaxResults: 2, PageToken: domain.EncodePageToken(2)})
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "c_cred", next[0].Name)
}
