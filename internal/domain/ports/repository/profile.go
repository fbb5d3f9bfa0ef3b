package repository

import (
	"context"
	"time"

	"a2z-marketplace/internal/domain/model"
)

// -----------------------------
// Profiles
// -----------------------------

type ProfileRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Profile) error
	// FindByID locks the row (FOR UPDATE) when called inside a transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Profile, error)
	FindByUsername(ctx context.Context, tx Tx, username string) (*model.Profile, error)
	// ListDueForReset returns free profiles whose cycle started at or before
	// cutoff, ordered by id and starting after afterID ("" for the first page).
	ListDueForReset(ctx context.Context, tx Tx, cutoff time.Time, afterID string, limit int) ([]*model.Profile, error)
	// ListLapsed returns paid/trial profiles whose subscription ended before now.
	ListLapsed(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.Profile, error)
}

// ProfileInvalidator is implemented by caching decorators. Use cases call it
// after a committed profile change.
type ProfileInvalidator interface {
	Invalidate(ctx context.Context, p *model.Profile)
}
