package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"a2z-marketplace/internal/domain/model"
	"a2z-marketplace/internal/domain/ports/repository"
)

var _ repository.ProfileRepository = (*ProfileRepo)(nil)

type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

const profileColumns = `id, username, display_name, tier, subscription_status, subscription_start_date, subscription_end_date,
       early_adopter, verified_seller, trial_used, cycle_started_at, created_at, updated_at`

func (r *ProfileRepo) Save(ctx context.Context, tx repository.Tx, p *model.Profile) error {
	const q = `
INSERT INTO profiles (
  id, username, display_name, tier, subscription_status, subscription_start_date, subscription_end_date,
  early_adopter, verified_seller, trial_used, cycle_started_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
) ON CONFLICT (id) DO UPDATE SET
  username=$2, display_name=$3, tier=$4, subscription_status=$5, subscription_start_date=$6,
  subscription_end_date=$7, early_adopter=$8, verified_seller=$9, trial_used=$10,
  cycle_started_at=$11, updated_at=$13;
`
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.Username, p.DisplayName, p.Tier, p.SubscriptionStatus, p.SubscriptionStartDate, p.SubscriptionEndDate,
		p.EarlyAdopter, p.VerifiedSeller, p.TrialUsed, p.CycleStartedAt, p.CreatedAt, p.UpdatedAt)
	return mapWriteErr(err)
}

func (r *ProfileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM profiles WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanProfile(row)
}

func (r *ProfileRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM profiles WHERE username=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, username)
	if err != nil {
		return nil, err
	}
	return scanProfile(row)
}

func (r *ProfileRepo) ListDueForReset(ctx context.Context, tx repository.Tx, cutoff time.Time, afterID string, limit int) ([]*model.Profile, error) {
	if afterID == "" {
		afterID = uuid.Nil.String()
	}
	q := `SELECT ` + profileColumns + `
  FROM profiles
 WHERE tier='free' AND cycle_started_at <= $1 AND id > $2
 ORDER BY id
 LIMIT $3;`
	return r.list(ctx, tx, q, cutoff, afterID, limit)
}

func (r *ProfileRepo) ListLapsed(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Profile, error) {
	q := `SELECT ` + profileColumns + `
  FROM profiles
 WHERE tier <> 'free'
   AND subscription_status IN ('active','trial')
   AND subscription_end_date IS NOT NULL
   AND subscription_end_date < $1
 ORDER BY subscription_end_date
 LIMIT $2;`
	return r.list(ctx, tx, q, now, limit)
}

func (r *ProfileRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Profile, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapReadErr(err)
	}
	defer rows.Close()

	var out []*model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
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

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var p model.Profile
	if err := row.Scan(&p.ID, &p.Username, &p.DisplayName, &p.Tier, &p.SubscriptionStatus, &p.SubscriptionStartDate, &p.SubscriptionEndDate,
		&p.EarlyAdopter, &p.VerifiedSeller, &p.TrialUsed, &p.CycleStartedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapReadErr(err)
	}
	return &p, nil
}
