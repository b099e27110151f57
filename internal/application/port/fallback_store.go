package port

import (
	"context"

	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
)

// FallbackStore keeps the last known-good snapshot.
type FallbackStore interface {
	// Save replaces the stored snapshot.
	Save(ctx context.Context, snapshot *entity.CacheSnapshot) error

	// Load returns the stored snapshot or ErrNotFound.
	Load(ctx context.Context) (*entity.CacheSnapshot, error)
}
