package repository

import (
	"context"
	"time"

	"a2z-marketplace/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	// Save inserts a new payment. A duplicate transaction reference yields domain.ErrAlreadyExists.
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	// FindByReference locks the row (FOR UPDATE) when called inside a transaction.
	FindByReference(ctx context.Context, tx Tx, reference string) (*model.Payment, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.PaymentStatus, providerTxnID *string, completedAt *time.Time) error
	// CancelStalePending cancels pending payments created before olderThan and returns how many changed.
	CancelStalePending(ctx context.Context, tx Tx, olderThan time.Time) (int, error)
}
