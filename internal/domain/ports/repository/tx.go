package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Its concrete type is infra-defined
// (pgx.Tx for Postgres). Repositories MUST accept nil (non-transactional path).
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside one database transaction. The handle is
// passed to repositories through the tx argument. A non-nil error from fn
// rolls everything back.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		p, err := payments.FindByReference(ctx, tx, ref)
//		...
//		return profiles.Save(ctx, tx, profile)
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
