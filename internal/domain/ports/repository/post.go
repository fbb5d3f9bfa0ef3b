package repository

import (
	"context"
	"time"

	"a2z-marketplace/internal/domain/model"
)

// -----------------------------
// Posts (listings)
// -----------------------------

type PostRepository interface {
	// Create inserts a post. A duplicate (owner, slug) yields domain.ErrAlreadyExists.
	Create(ctx context.Context, tx Tx, p *model.Post) error
	Update(ctx context.Context, tx Tx, p *model.Post) error
	Delete(ctx context.Context, tx Tx, id string) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Post, error)
	FindByOwnerAndSlug(ctx context.Context, tx Tx, ownerID, slug string) (*model.Post, error)
	SlugExists(ctx context.Context, tx Tx, ownerID, slug string) (bool, error)
	ListByOwner(ctx context.Context, tx Tx, ownerID string) ([]*model.Post, error)
	CountActiveByOwner(ctx context.Context, tx Tx, ownerID string) (int, error)
	IncrementCounter(ctx context.Context, tx Tx, id string, kind model.AnalyticsKind) error
	// ExpireActiveByOwner deactivates every active post of the owner, clears
	// their media and returns the media URLs that were attached.
	ExpireActiveByOwner(ctx context.Context, tx Tx, ownerID string, now time.Time) ([]string, error)
}
