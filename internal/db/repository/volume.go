package repository

import (
	"context"
	"database/sql"

	"tfl-lake/internal/domain"
)

// Compile-time check.
var _ domain.VolumeRepository = (*VolumeRepo)(nil)

const volumeColumns = `id, name, catalog_name, schema_name, volume_type, storage_location, comment, created_at, updated_at`

// VolumeRepo implements VolumeRepository using SQLite.
type VolumeRepo struct {
	db *sql.DB
}

// NewVolumeRepo creates a new VolumeRepo.
func NewVolumeRepo(db *sql.DB) *VolumeRepo {
	return &VolumeRepo{db: db}
}

// Create inserts a new volume.
func (r *VolumeRepo) Create(ctx context.Context, vol *domain.Volume) (*domain.Volume, error) {
	id := domain.NewID()
	ts := now()
	_, err := r.db.ExecContext(ctx, `INSERT INTO volumes (`+volumeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, vol.Name, vol.CatalogName, vol.SchemaName, vol.VolumeType, vol.StorageLocation,
		vol.Comment, ts, ts,
	)
	if err != nil {
		return nil, mapConflict(err, "volume %s.%s.%s already exists", vol.CatalogName, vol.SchemaName, vol.Name)
	}
	return scanVolume(r.db.QueryRowContext(ctx, `SELECT `+volumeColumns+` FROM volumes WHERE id = ?`, id))
}

// GetByName returns a volume by its three-part name.
func (r *VolumeRepo) GetByName(ctx context.Context, catalogName, schemaName, name string) (*domain.Volume, error) {
	vol, err := scanVolume(r.db.QueryRowContext(ctx,
		`SELECT `+volumeColumns+` FROM volumes WHERE catalog_name = ? AND schema_name = ? AND name = ?`,
		catalogName, schemaName, name))
	if err != nil {
		return nil, mapNotFound(err, "volume %s.%s.%s not found", catalogName, schemaName, name)
	}
	return vol, nil
}

// List returns a paginated list of volumes in a catalog.
func (r *VolumeRepo) List(ctx context.Context, catalogName string, page domain.PageRequest) ([]domain.Volume, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM volumes WHERE catalog_name = ?`, catalogName).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+volumeColumns+` FROM volumes WHERE catalog_name = ? ORDER BY schema_name, name LIMIT ? OFFSET ?`,
		catalogName, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	var vols []domain.Volume
	for rows.Next() {
		vol, err := scanVolume(rows)
		if err != nil {
			return nil, 0, err
		}
		vols = append(vols, *vol)
	}
	return vols, total, rows.Err()
}

func scanVolume(row scanner) (*domain.Volume, error) {
	var v domain.Volume
	var createdAt, updatedAt string
	if err := row.Scan(&v.ID, &v.Name, &v.CatalogName, &v.SchemaName, &v.VolumeType,
		&v.StorageLocation, &v.Comment, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	v.CreatedAt = parseTime(createdAt)
	v.UpdatedAt = parseTime(updatedAt)
	return &v, nil
}
