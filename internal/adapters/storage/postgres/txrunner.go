package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"dog-adoption-service/internal/platform/logger"
	"dog-adoption-service/internal/platform/txn"
)

type txCtxKey struct{}

// querier es lo que los repos necesitan de *sql.DB y *sql.Tx por igual.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q resuelve el querier activo: la transacción del contexto si hay una
// abierta, el pool si no. Así los mismos repos sirven dentro y fuera de
// una unidad de trabajo.
func (r *baseRepo) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txCtxKey{}).(*sql.Tx); ok {
		return tx
	}
	return r.db
}

type baseRepo struct {
	db *sql.DB
}

// TxRunner implementa txn.Runner sobre transacciones reales de Postgres.
// Los hooks corren después del desenlace definitivo, nunca adentro.
type TxRunner struct {
	db  *sql.DB
	log logger.Logger
}

func NewTxRunner(db *sql.DB, log logger.Logger) *TxRunner {
	return &TxRunner{db: db, log: log}
}

func (r *TxRunner) InTx(ctx context.Context, fn func(ctx context.Context, h *txn.Hooks) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	h := &txn.Hooks{}
	txCtx := context.WithValue(ctx, txCtxKey{}, tx)

	if err := fn(txCtx, h); err != nil {
		_ = tx.Rollback()
		h.RunRollback(ctx, r.log)
		return err
	}

	if err := tx.Commit(); err != nil {
		h.RunRollback(ctx, r.log)
		return fmt.Errorf("commit tx: %w", err)
	}

	h.RunCommit(ctx, r.log)
	return nil
}
