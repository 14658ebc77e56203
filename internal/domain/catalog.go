package domain

import "time"

// Catalog is a top-level namespace registered in the metastore.
type Catalog struct {
	ID        string
	Name      string
	Comment   string
	CreatedAt time.Time
}
