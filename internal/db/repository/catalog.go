package repository

import (
	"context"
	"database/sql"

	"tfl-lake/internal/domain"
)

// Compile-time check.
var _ domain.CatalogRepository = (*CatalogRepo)(nil)

// CatalogRepo records which lake catalogs have been provisioned.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo creates a new CatalogRepo.
func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

// Create records a catalog.
func (r *CatalogRepo) Create(ctx context.Context, cat *domain.Catalog) (*domain.Catalog, error) {
	id := domain.NewID()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO catalogs (id, name, comment, created_at) VALUES (?, ?, ?, ?)`,
		id, cat.Name, cat.Comment, now())
	if err != nil {
		return nil, mapConflict(err, "catalog %q already exists", cat.Name)
	}
	return r.GetByName(ctx, cat.Name)
}

// GetByName returns a catalog by name.
func (r *CatalogRepo) GetByName(ctx context.Context, name string) (*domain.Catalog, error) {
	var c domain.Catalog
	var createdAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, comment, created_at FROM catalogs WHERE name = ?`, name).
		Scan(&c.ID, &c.Name, &c.Comment, &createdAt)
	if err != nil {
		return nil, mapNotFound(err, "catalog %q not found", name)
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}
