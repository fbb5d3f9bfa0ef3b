// File: internal/usecase/post_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"a2z-marketplace/internal/domain"
	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/domain/ports/adapter"
	"a2z-marketplace/internal/domain/ports/repository"
	"a2z-marketplace/internal/infra/logging"
	"a2z-marketplace/internal/infra/metrics"
)

var _ PostUseCase = (*postUC)(nil)

const (
	defaultCurrency = "ZAR"
	maxSlugAttempts = 50
)

type CreatePostInput struct {
	UserID      string   `json:"-" validate:"required"`
	Title       string   `json:"title" validate:"required,min=3,max=120"`
	Description string   `json:"description" validate:"max=5000"`
	PriceCents  int64    `json:"price_cents" validate:"gte=0"`
	Currency    string   `json:"currency" validate:"omitempty,oneof=ZAR"`
	MediaURLs   []string `json:"media_urls"`
}

// UpdatePostInput is a partial update; nil fields are left unchanged.
type UpdatePostInput struct {
	UserID      string    `json:"-" validate:"required"`
	PostID      string    `json:"-" validate:"required"`
	Title       *string   `json:"title" validate:"omitempty,min=3,max=120"`
	Description *string   `json:"description" validate:"omitempty,max=5000"`
	PriceCents  *int64    `json:"price_cents" validate:"omitempty,gte=0"`
	MediaURLs   *[]string `json:"media_urls"`
	IsActive    *bool     `json:"is_active"`
}

// Seller is the public part of a profile.
type Seller struct {
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	VerifiedSeller bool   `json:"verified_seller"`
}

// PublicPost is the shareable listing page.
type PublicPost struct {
	Post         *model.Post `json:"post"`
	Seller       Seller      `json:"seller"`
	Price        string      `json:"price"`
	CanonicalURL string      `json:"canonical_url"`
	WhatsAppURL  string      `json:"whatsapp_url"`
}

type PostUseCase interface {
	Create(ctx context.Context, in CreatePostInput) (*model.Post, error)
	Update(ctx context.Context, in UpdatePostInput) (*model.Post, error)
	Delete(ctx context.Context, userID, postID string) error
	ListMine(ctx context.Context, userID string) ([]*model.Post, error)
	// GetPublic resolves an active listing by seller username and slug.
	GetPublic(ctx context.Context, username, slug string) (*PublicPost, error)
}

type postUC struct {
	posts    repository.PostRepository
	profiles repository.ProfileRepository
	tm       repository.TransactionManager
	storage  adapter.ObjectStorage
	baseURL  string
	log      *zerolog.Logger
	now      Clock
}

func NewPostUseCase(
	posts repository.PostRepository,
	profiles repository.ProfileRepository,
	tm repository.TransactionManager,
	storage adapter.ObjectStorage,
	baseURL string,
	logger *zerolog.Logger,
	clock Clock,
) PostUseCase {
	return &postUC{
		posts:    posts,
		profiles: profiles,
		tm:       tm,
		storage:  storage,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		log:      loggerOrNop(logger, "post_uc"),
		now:      clockOrDefault(clock),
	}
}

func (u *postUC) Create(ctx context.Context, in CreatePostInput) (*model.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := u.checkMedia(in.UserID, in.MediaURLs); err != nil {
		return nil, err
	}
	if in.Currency == "" {
		in.Currency = defaultCurrency
	}

	var (
		post *model.Post
		tier model.Tier
	)
	now := u.now()
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// the profile row lock serialises creates of one owner
		profile, err := u.profiles.FindByID(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		tier = profile.EffectiveTier(now)
		policy, err := model.PolicyFor(tier)
		if err != nil {
			return err
		}
		if len(in.MediaURLs) > policy.MaxImagesPerListing {
			metrics.IncPostLimitRejection(string(tier), "images")
			return fmt.Errorf("%w: %s allows %d images per listing", domain.ErrLimitExceeded, tier, policy.MaxImagesPerListing)
		}
		active, err := u.posts.CountActiveByOwner(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		if !policy.AllowsListings(active + 1) {
			metrics.IncPostLimitRejection(string(tier), "listings")
			return fmt.Errorf("%w: %s allows %d active listings", domain.ErrLimitExceeded, tier, policy.MaxListings)
		}
		slug, err := u.uniqueSlug(ctx, tx, in.UserID, in.Title)
		if err != nil {
			return err
		}
		post = &model.Post{
			ID:          uuid.NewString(),
			OwnerID:     in.UserID,
			Title:       in.Title,
			Description: in.Description,
			PriceCents:  in.PriceCents,
			Currency:    in.Currency,
			Slug:        slug,
			MediaURLs:   append([]string{}, in.MediaURLs...),
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return u.posts.Create(ctx, tx, post)
	})
	if err != nil {
		return nil, err
	}
	metrics.IncPostCreated(string(tier))
	logging.With(ctx, u.log).Info().Str("post_id", post.ID).Str("slug", post.Slug).Msg("listing created")
	return post, nil
}

func (u *postUC) Update(ctx context.Context, in UpdatePostInput) (*model.Post, error) {
	if err := checkPostID(in.PostID); err != nil {
		return nil, err
	}
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		in.Title = &t
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.MediaURLs != nil {
		if err := u.checkMedia(in.UserID, *in.MediaURLs); err != nil {
			return nil, err
		}
	}

	var (
		post    *model.Post
		removed []string
	)
	now := u.now()
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		profile, err := u.profiles.FindByID(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		p, err := u.posts.FindByID(ctx, tx, in.PostID)
		if err != nil {
			return err
		}
		if p.OwnerID != in.UserID {
			return fmt.Errorf("%w: not the owner of this listing", domain.ErrForbidden)
		}
		tier := profile.EffectiveTier(now)
		policy, err := model.PolicyFor(tier)
		if err != nil {
			return err
		}

		if in.Title != nil {
			// the slug stays stable so shared links keep working
			p.Title = *in.Title
		}
		if in.Description != nil {
			p.Description = strings.TrimSpace(*in.Description)
		}
		if in.PriceCents != nil {
			p.PriceCents = *in.PriceCents
		}
		if in.MediaURLs != nil {
			next := *in.MediaURLs
			if len(next) > policy.MaxImagesPerListing {
				metrics.IncPostLimitRejection(string(tier), "images")
				return fmt.Errorf("%w: %s allows %d images per listing", domain.ErrLimitExceeded, tier, policy.MaxImagesPerListing)
			}
			removed = difference(p.MediaURLs, next)
			p.MediaURLs = append([]string{}, next...)
		}
		if in.IsActive != nil && *in.IsActive != p.IsActive {
			if *in.IsActive {
				active, err := u.posts.CountActiveByOwner(ctx, tx, in.UserID)
				if err != nil {
					return err
				}
				if !policy.AllowsListings(active + 1) {
					metrics.IncPostLimitRejection(string(tier), "listings")
					return fmt.Errorf("%w: %s allows %d active listings", domain.ErrLimitExceeded, tier, policy.MaxListings)
				}
				p.ExpiredAt = nil
			}
			p.IsActive = *in.IsActive
		}
		p.UpdatedAt = now
		if err := u.posts.Update(ctx, tx, p); err != nil {
			return err
		}
		post = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.deleteMedia(ctx, removed)
	return post, nil
}

func (u *postUC) Delete(ctx context.Context, userID, postID string) error {
	if err := checkPostID(postID); err != nil {
		return err
	}
	var media []string
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.posts.FindByID(ctx, tx, postID)
		if err != nil {
			return err
		}
		if p.OwnerID != userID {
			return fmt.Errorf("%w: not the owner of this listing", domain.ErrForbidden)
		}
		media = p.MediaURLs
		return u.posts.Delete(ctx, tx, postID)
	})
	if err != nil {
		return err
	}
	u.deleteMedia(ctx, media)
	logging.With(ctx, u.log).Info().Str("post_id", postID).Msg("listing deleted")
	return nil
}

func (u *postUC) ListMine(ctx context.Context, userID string) ([]*model.Post, error) {
	posts, err := u.posts.ListByOwner(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []*model.Post{}
	}
	return posts, nil
}

func (u *postUC) GetPublic(ctx context.Context, username, slug string) (*PublicPost, error) {
	profile, err := u.profiles.FindByUsername(ctx, repository.NoTX, strings.ToLower(username))
	if err != nil {
		return nil, err
	}
	p, err := u.posts.FindByOwnerAndSlug(ctx, repository.NoTX, profile.ID, slug)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, domain.ErrNotFound
	}
	canonical := model.CanonicalURL(u.baseURL, profile.Username, p.Slug)
	price := model.FormatPrice(p.PriceCents, p.Currency)
	return &PublicPost{
		Post: p,
		Seller: Seller{
			Username:       profile.Username,
			DisplayName:    profile.DisplayName,
			VerifiedSeller: profile.VerifiedSeller,
		},
		Price:        price,
		CanonicalURL: canonical,
		WhatsAppURL:  model.WhatsAppShareURL(fmt.Sprintf("%s - %s %s", p.Title, price, canonical)),
	}, nil
}

// checkMedia accepts only objects this seller uploaded through the presign flow.
func (u *postUC) checkMedia(userID string, urls []string) error {
	prefix := mediaPrefix(userID)
	var details []domain.FieldError
	for i, m := range urls {
		key, ok := u.storage.KeyFromURL(m)
		if !ok || !strings.HasPrefix(key, prefix) {
			details = append(details, domain.FieldError{
				Field:   "media_urls[" + strconv.Itoa(i) + "]",
				Message: "must be a media URL uploaded by this account",
			})
		}
	}
	if len(details) > 0 {
		return &domain.ValidationError{Details: details}
	}
	return nil
}

func (u *postUC) uniqueSlug(ctx context.Context, tx repository.Tx, ownerID, title string) (string, error) {
	base := model.Slugify(title)
	candidate := base
	for n := 2; n <= maxSlugAttempts+1; n++ {
		taken, err := u.posts.SlugExists(ctx, tx, ownerID, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = model.SlugWithSuffix(base, n)
	}
	return "", fmt.Errorf("%w: too many listings titled %q", domain.ErrConflict, title)
}

// deleteMedia removes objects after commit. Orphans are only logged.
func (u *postUC) deleteMedia(ctx context.Context, urls []string) {
	keys := make([]string, 0, len(urls))
	for _, m := range urls {
		if key, ok := u.storage.KeyFromURL(m); ok {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := u.storage.Delete(ctx, keys...); err != nil && !errors.Is(err, context.Canceled) {
		logging.With(ctx, u.log).Warn().Err(err).Int("objects", len(keys)).Msg("media cleanup failed")
	}
}

// difference returns the entries of a missing from b.
func difference(a, b []string) []string {
	keep := make(map[string]struct{}, len(b))
	for _, s := range b {
		keep[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := keep[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

// checkPostID rejects ids that cannot name a row; Postgres would refuse them
// as invalid uuid input instead of finding nothing.
func checkPostID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: listing %q", domain.ErrNotFound, id)
	}
	return nil
}
