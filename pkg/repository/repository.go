// Package repository provides a thin generic store over gorm. Entity stores
// compose it for the identity lookups behind their get-or-create-or-update
// upsert discipline.
package repository

import (
	"context"

	"github.com/autogenerations/printsync/pkg/db/option"
	"gorm.io/gorm"
)

type Repository[T any] interface {
	// WithTrx returns a view of the repository bound to tx, so callers can
	// stage several entity kinds inside one unit of work.
	WithTrx(tx *gorm.DB) Repository[T]

	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	// FindOne returns nil, nil when no row matches.
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Save(ctx context.Context, resource *T) error
	Count(ctx context.Context, query *T) (int64, error)
}
