// Package catalog serves the stored characters, films and starships.
package catalog

import (
	"context"

	"swapiapi/internal/entity"
)

//go:generate mockgen -source=catalog.go -destination=mock_repository_test.go -package=catalog

// Repository is the read side of the store.
type Repository interface {
	List(ctx context.Context, kind entity.Kind, skip, limit int) ([]entity.Entity, error)
	Search(ctx context.Context, kind entity.Kind, term string) ([]entity.Entity, error)
	GetByID(ctx context.Context, kind entity.Kind, id int64) (entity.Entity, error)
}

// PageParams selects a window of a listing.
type PageParams struct {
	Skip  int
	Limit int
}
