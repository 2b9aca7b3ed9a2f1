package repository

import (
	"context"
	"fmt"
	"reflect"

	"github.com/autogenerations/printsync/pkg/db"
)

// CreateChecked inserts a row and converts a unique-constraint violation
// into db.ErrConflict so concurrent writers racing on the same external
// identity surface a retryable error instead of a silent duplicate.
func CreateChecked[T any](ctx context.Context, repo Repository[T], row *T) error {
	if err := repo.Create(ctx, row); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return fmt.Errorf("%w: %v", db.ErrConflict, err)
		}
		return err
	}
	return nil
}

// Changed reports whether desired differs from existing by whole-record
// comparison. Upserts build the desired row from the stored one and save
// only on a real difference, avoiding spurious dirty writes without
// per-field compare-and-set blocks.
func Changed[T any](existing, desired *T) bool {
	return !reflect.DeepEqual(existing, desired)
}
