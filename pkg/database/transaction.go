package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
)

type TxContextKey string

const txKey = TxContextKey("tx-context-key")

// Tx is a transaction shared through the context by nested repository calls
type Tx interface {
	IsOpen() bool
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Transaction wraps sqlx.Tx. Only the call that opened it commits or rolls it back.
type Transaction struct {
	*sqlx.Tx
	logger ectologger.Logger
	closed bool
	owner  context.Context
}

// GetTx returns the open transaction on ctx, or begins one and stores it on the returned context
func GetTx(ctx context.Context, logger ectologger.Logger, db DB, opts *sql.TxOptions) (context.Context, Tx, error) {
	if tx, ok := ctx.Value(txKey).(*Transaction); ok && tx.IsOpen() {
		return ctx, tx, nil
	}

	sqlTx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Error("error while beginning transaction")
		return ctx, nil, fmt.Errorf("error while beginning transaction: %w", err)
	}

	tx := &Transaction{Tx: sqlTx, logger: logger}
	ctx = context.WithValue(ctx, txKey, tx)
	tx.owner = ctx
	return ctx, tx, nil
}

func (t *Transaction) IsOpen() bool {
	return !t.closed
}

func (t *Transaction) owns(ctx context.Context) bool {
	return ctx == t.owner
}

// Rollback rolls back when called with the context that opened the transaction
func (t *Transaction) Rollback(ctx context.Context) error {
	if t.closed || !t.owns(ctx) {
		return nil
	}
	if err := t.Tx.Rollback(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Error("error while rolling back transaction")
		return fmt.Errorf("error while rolling back transaction: %w", err)
	}
	t.closed = true
	return nil
}

// Commit commits when called with the context that opened the transaction
func (t *Transaction) Commit(ctx context.Context) error {
	if t.closed || !t.owns(ctx) {
		return nil
	}
	if err := t.Tx.Commit(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Error("error while committing transaction")
		return fmt.Errorf("error while committing transaction: %w", err)
	}
	t.closed = true
	return nil
}
