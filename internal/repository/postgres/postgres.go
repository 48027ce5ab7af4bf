// Package postgres implements the service stores on PostgreSQL with pgx.
//
// Issue and return coordination relies on two things here: LockByID takes a
// row lock with SELECT … FOR UPDATE, and the copy counter only ever moves
// through conditional UPDATEs that refuse to leave 0..total_copies. Together
// with the partial unique index on issued (book_id, user_id) pairs, no
// interleaving of concurrent transactions can overdraw a book or lend it
// twice to the same borrower.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	liberrors "github.com/Shivanand-hulikatti/library-management/internal/errors"
	"github.com/Shivanand-hulikatti/library-management/internal/repository"
	"github.com/Shivanand-hulikatti/library-management/internal/service"
)

//go:embed schema.sql
var schemaSQL string

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB wraps a pool and hands out the transaction carried by a context, if any.
type DB struct {
	pool *pgxpool.Pool
}

// New wraps pool.
func New(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

// Stores returns the service stores backed by db.
func (db *DB) Stores() service.Stores {
	return service.Stores{
		Tx:        db,
		Books:     &BookRepository{db: db},
		Borrowers: &BorrowerRepository{db: db},
		Loans:     &LoanRepository{db: db},
	}
}

// Migrate creates the schema if it does not exist.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (db *DB) q(ctx context.Context) querier {
	if tx, ok := repository.TxFrom[pgx.Tx](ctx); ok {
		return tx
	}
	return db.pool
}

// WithinTx runs fn in a transaction. A context that already carries one
// joins it, so nested calls commit or roll back with the outermost.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := repository.TxFrom[pgx.Tx](ctx); ok {
		return fn(ctx)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Ensure the transaction is always resolved.
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(repository.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// mapWriteErr turns constraint violations into domain errors.
func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		switch pgErr.ConstraintName {
		case repository.ConstraintBookISBN:
			return repository.DuplicateBook()
		case repository.ConstraintBorrowerEmail, repository.ConstraintBorrowerStudent:
			return repository.DuplicateBorrower()
		case repository.ConstraintOneActivePerPair:
			return repository.AlreadyBorrowed()
		}
		return liberrors.Conflictf(liberrors.ReasonDuplicate, "%s: duplicate record", op)
	case pgerrcode.CheckViolation:
		return liberrors.ValidationFailed(pgErr.ConstraintName, "violated").WithCause(err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
