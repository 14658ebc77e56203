package repository

import (
	"context"
	"database/sql"

	"tfl-lake/internal/domain"
)

// Compile-time check.
var _ domain.ExternalLocationRepository = (*ExternalLocationRepo)(nil)

const externalLocationColumns = `id, name, url, credential_name, storage_type, comment, read_only, created_at, updated_at`

// ExternalLocationRepo implements ExternalLocationRepository.
type ExternalLocationRepo struct {
	db *sql.DB
}

// NewExternalLocationRepo creates a new ExternalLocationRepo.
func NewExternalLocationRepo(db *sql.DB) *ExternalLocationRepo {
	return &ExternalLocationRepo{db: db}
}

// Create inserts a new external location. The storage type is inferred from
// the URL when not set.
func (r *ExternalLocationRepo) Create(ctx context.Context, loc *domain.ExternalLocation) (*domain.ExternalLocation, error) {
	storageType := loc.StorageType
	if storageType == "" {
		storageType = domain.StorageTypeForURL(loc.URL)
	}

	id := domain.NewID()
	ts := now()
	_, err := r.db.ExecContext(ctx, `INSERT INTO external_locations (`+externalLocationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, loc.Name, loc.URL, loc.CredentialName, string(storageType), loc.Comment,
		boolToInt(loc.ReadOnly), ts, ts,
	)
	if err != nil {
		return nil, mapConflict(err, "external location %q already exists", loc.Name)
	}
	return scanLocation(r.db.QueryRowContext(ctx,
		`SELECT `+externalLocationColumns+` FROM external_locations WHERE id = ?`, id))
}

// GetByName returns an external location by its name.
func (r *ExternalLocationRepo) GetByName(ctx context.Context, name string) (*domain.ExternalLocation, error) {
	loc, err := scanLocation(r.db.QueryRowContext(ctx,
		`SELECT `+externalLocationColumns+` FROM external_locations WHERE name = ?`, name))
	if err != nil {
		return nil, mapNotFound(err, "external location %q not found", name)
	}
	return loc, nil
}

// List returns a paginated list of external locations ordered by name.
func (r *ExternalLocationRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.ExternalLocation, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM external_locations`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+externalLocationColumns+` FROM external_locations ORDER BY name LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	var locs []domain.ExternalLocation
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, 0, err
		}
		locs = append(locs, *loc)
	}
	return locs, total, rows.Err()
}

func scanLocation(row scanner) (*domain.ExternalLocation, error) {
	var l domain.ExternalLocation
	var storageType, createdAt, updatedAt string
	var readOnly int64
	if err := row.Scan(&l.ID, &l.Name, &l.URL, &l.CredentialName, &storageType, &l.Comment,
		&readOnly, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	l.StorageType = domain.StorageType(storageType)
	l.ReadOnly = readOnly != 0
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return &l, nil
}
