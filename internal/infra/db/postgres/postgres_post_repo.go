package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"a2z-marketplace/internal/domain"
	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/domain/ports/repository"
)

var _ repository.PostRepository = (*postRepo)(nil)

type postRepo struct{ pool *pgxpool.Pool }

func NewPostRepo(pool *pgxpool.Pool) *postRepo {
	return &postRepo{pool: pool}
}

const postColumns = `id, owner_id, title, description, price_cents, currency, slug, media_urls, is_active, views, clicks, created_at, updated_at, expired_at`

func (r *postRepo) Create(ctx context.Context, tx repository.Tx, p *model.Post) error {
	const q = `
INSERT INTO posts (` + postColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.OwnerID, p.Title, p.Description, p.PriceCents, p.Currency, p.Slug,
		mediaOrEmpty(p.MediaURLs), p.IsActive, p.Views, p.Clicks, p.CreatedAt, p.UpdatedAt, p.ExpiredAt)
	return mapWriteErr(err)
}

// Update writes the editable fields. Counters are left to IncrementCounter.
func (r *postRepo) Update(ctx context.Context, tx repository.Tx, p *model.Post) error {
	const q = `
UPDATE posts
   SET title=$2, description=$3, price_cents=$4, currency=$5, slug=$6, media_urls=$7,
       is_active=$8, updated_at=$9, expired_at=$10
 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Title, p.Description, p.PriceCents, p.Currency, p.Slug,
		mediaOrEmpty(p.MediaURLs), p.IsActive, p.UpdatedAt, p.ExpiredAt)
	if err != nil {
		return mapWriteErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	cmd, err := execSQL(ctx, r.pool, tx, `DELETE FROM posts WHERE id=$1;`, id)
	if err != nil {
		return mapWriteErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Post, error) {
	q := `SELECT ` + postColumns + ` FROM posts WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanPost(row)
}

func (r *postRepo) FindByOwnerAndSlug(ctx context.Context, tx repository.Tx, ownerID, slug string) (*model.Post, error) {
	q := `SELECT ` + postColumns + ` FROM posts WHERE owner_id=$1 AND slug=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, ownerID, slug)
	if err != nil {
		return nil, err
	}
	return scanPost(row)
}

func (r *postRepo) SlugExists(ctx context.Context, tx repository.Tx, ownerID, slug string) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS(SELECT 1 FROM posts WHERE owner_id=$1 AND slug=$2);`, ownerID, slug)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, mapReadErr(err)
	}
	return ok, nil
}

func (r *postRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.Post, error) {
	q := `SELECT ` + postColumns + ` FROM posts WHERE owner_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, ownerID)
	if err != nil {
		return nil, mapReadErr(err)
	}
	defer rows.Close()

	var out []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapReadErr(err)
	}
	return out, nil
}

func (r *postRepo) CountActiveByOwner(ctx context.Context, tx repository.Tx, ownerID string) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM posts WHERE owner_id=$1 AND is_active;`, ownerID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapReadErr(err)
	}
	return n, nil
}

// IncrementCounter bumps views or clicks atomically in SQL so concurrent
// events never lose updates.
func (r *postRepo) IncrementCounter(ctx context.Context, tx repository.Tx, id string, kind model.AnalyticsKind) error {
	var q string
	switch kind {
	case model.AnalyticsView:
		q = `UPDATE posts SET views = views + 1 WHERE id=$1;`
	case model.AnalyticsClick:
		q = `UPDATE posts SET clicks = clicks + 1 WHERE id=$1;`
	default:
		return domain.ErrInvalidArgument
	}
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return mapWriteErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postRepo) ExpireActiveByOwner(ctx context.Context, tx repository.Tx, ownerID string, now time.Time) ([]string, error) {
	if !inTx(tx) {
		return nil, domain.ErrInvalidExecContext
	}
	// lock first so the media list returned matches what gets cleared
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT media_urls FROM posts WHERE owner_id=$1 AND is_active FOR UPDATE;`, ownerID)
	if err != nil {
		return nil, mapReadErr(err)
	}
	var media []string
	for rows.Next() {
		var urls []string
		if err := rows.Scan(&urls); err != nil {
			rows.Close()
			return nil, mapReadErr(err)
		}
		media = append(media, urls...)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapReadErr(err)
	}

	const q = `
UPDATE posts
   SET is_active=false, media_urls='{}', expired_at=$2, updated_at=$2
 WHERE owner_id=$1 AND is_active;`
	if _, err := execSQL(ctx, r.pool, tx, q, ownerID, now); err != nil {
		return nil, mapWriteErr(err)
	}
	return media, nil
}

func scanPost(row pgx.Row) (*model.Post, error) {
	var p model.Post
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.PriceCents, &p.Currency, &p.Slug, &p.MediaURLs,
		&p.IsActive, &p.Views, &p.Clicks, &p.CreatedAt, &p.UpdatedAt, &p.ExpiredAt); err != nil {
		return nil, mapReadErr(err)
	}
	return &p, nil
}

func mediaOrEmpty(urls []string) []string {
	if urls == nil {
		return []string{}
	}
	return urls
}
