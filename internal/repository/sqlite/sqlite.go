// Package sqlite implements the service stores on an embedded SQLite
// database. Queries are built with goqu's sqlite3 dialect.
//
// The database handle must be limited to a single open connection (see
// database.OpenSQLite). Every transaction then owns the whole database until
// it ends, which gives LockByID its meaning without row locks.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	sqlitedrv "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	liberrors "github.com/Shivanand-hulikatti/library-management/internal/errors"
	"github.com/Shivanand-hulikatti/library-management/internal/repository"
	"github.com/Shivanand-hulikatti/library-management/internal/service"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var dialect = goqu.Dialect("sqlite3")

func from(table any) *goqu.SelectDataset        { return dialect.From(table).Prepared(true) }
func insertInto(table string) *goqu.InsertDataset { return dialect.Insert(table).Prepared(true) }
func update(table string) *goqu.UpdateDataset     { return dialect.Update(table).Prepared(true) }
func deleteFrom(table string) *goqu.DeleteDataset { return dialect.Delete(table).Prepared(true) }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// sqlBuilder is implemented by goqu's select, insert, update and delete
// datasets.
type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

// DB wraps a *sql.DB and hands out the transaction carried by a context.
type DB struct {
	db *sql.DB
}

// New wraps db.
func New(db *sql.DB) *DB {
	return &DB{db: db}
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
	if _, err := db.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}
	return nil
}

func (db *DB) q(ctx context.Context) execer {
	if tx, ok := repository.TxFrom[*sql.Tx](ctx); ok {
		return tx
	}
	return db.db
}

// WithinTx runs fn in a transaction, joining one already carried by ctx.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := repository.TxFrom[*sql.Tx](ctx); ok {
		return fn(ctx)
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(repository.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (db *DB) exec(ctx context.Context, op string, b sqlBuilder) (int64, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("%s: build query: %w", op, err)
	}
	res, err := db.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapWriteErr(op, err)
	}
	return res.RowsAffected()
}

func (db *DB) queryRow(ctx context.Context, op string, b sqlBuilder) (*sql.Row, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("%s: build query: %w", op, err)
	}
	return db.q(ctx).QueryRowContext(ctx, query, args...), nil
}

func (db *DB) query(ctx context.Context, op string, b sqlBuilder) (*sql.Rows, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("%s: build query: %w", op, err)
	}
	rows, err := db.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rows, nil
}

func (db *DB) count(ctx context.Context, op string, ds *goqu.SelectDataset) (int, error) {
	row, err := db.queryRow(ctx, op, ds.Select(goqu.COUNT("*")))
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// mapWriteErr turns constraint violations into domain errors. SQLite names
// the offending columns rather than the constraint in its message.
func mapWriteErr(op string, err error) error {
	var sqlErr *sqlitedrv.Error
	if !errors.As(err, &sqlErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := sqlErr.Error()
	switch sqlErr.Code() {
	case sqlitelib.SQLITE_CONSTRAINT_UNIQUE, sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY:
		switch {
		case strings.Contains(msg, "books.isbn"):
			return repository.DuplicateBook()
		case strings.Contains(msg, "borrowers.email"), strings.Contains(msg, "borrowers.student_id"):
			return repository.DuplicateBorrower()
		case strings.Contains(msg, "loans.book_id, loans.user_id"):
			return repository.AlreadyBorrowed()
		}
		return liberrors.Conflictf(liberrors.ReasonDuplicate, "%s: duplicate record", op)
	case sqlitelib.SQLITE_CONSTRAINT_CHECK:
		return liberrors.ValidationFailed(checkName(msg), "violated").WithCause(err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func checkName(msg string) string {
	const marker = "CHECK constraint failed: "
	if i := strings.Index(msg, marker); i >= 0 {
		name := msg[i+len(marker):]
		if j := strings.IndexAny(name, " ("); j >= 0 {
			name = name[:j]
		}
		return name
	}
	return "constraint"
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type timeCol struct {
	raw string
	dst *time.Time
}

func parseTimes(cols ...timeCol) error {
	for _, c := range cols {
		t, err := parseTime(c.raw)
		if err != nil {
			return fmt.Errorf("parse time %q: %w", c.raw, err)
		}
		*c.dst = t
	}
	return nil
}
