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

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, amount_cents, currency, subscription_tier, provider, transaction_reference, status, provider_transaction_id, created_at, updated_at, completed_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, user_id, amount_cents, currency, subscription_tier, provider, transaction_reference, status, provider_transaction_id, created_at, updated_at, completed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.AmountCents, p.Currency, p.SubscriptionTier, p.Provider, p.TransactionReference, p.Status, p.ProviderTransactionID, p.CreatedAt, p.UpdatedAt, p.CompletedAt)
	return mapWriteErr(err)
}

func (r *paymentRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_reference=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, reference)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, providerTxnID *string, completedAt *time.Time) error {
	const q = `
UPDATE payments
   SET status=$2,
       provider_transaction_id=COALESCE($3, provider_transaction_id),
       completed_at=COALESCE($4, completed_at),
       updated_at=NOW()
 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, status, providerTxnID, completedAt)
	if err != nil {
		return mapWriteErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentRepo) CancelStalePending(ctx context.Context, tx repository.Tx, olderThan time.Time) (int, error) {
	const q = `
UPDATE payments
   SET status='cancelled', updated_at=NOW()
 WHERE status='pending' AND created_at < $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, olderThan)
	if err != nil {
		return 0, mapWriteErr(err)
	}
	return int(cmd.RowsAffected()), nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.UserID, &p.AmountCents, &p.Currency, &p.SubscriptionTier, &p.Provider, &p.TransactionReference, &p.Status, &p.ProviderTransactionID, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt); err != nil {
		return nil, mapReadErr(err)
	}
	return p, nil
}
