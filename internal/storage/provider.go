// Package storage defines the recipe collection store and its backends.
package storage

import (
	"context"

	"github.com/starford/recipebox/internal/models"
)

// Provider is the whole-collection capability the service depends on.
//
// Backends return errors wrapping apperr.ErrStorageRead when the collection
// cannot be loaded, apperr.ErrStorageWrite when it cannot be saved, and
// apperr.ErrNotFound when an id lookup matches nothing.
type Provider interface {
	// List returns every recipe in stored order.
	List(ctx context.Context) ([]models.Recipe, error)
	// Upsert replaces the first recipe with the same id in place, or appends.
	Upsert(ctx context.Context, r models.Recipe) (models.Recipe, error)
	// DeleteByID removes every recipe keyed by id.
	DeleteByID(ctx context.Context, id string) error
	// CopyByID appends a duplicate of the first recipe keyed by id under newID.
	CopyByID(ctx context.Context, id, newID string) (models.Recipe, error)
}
