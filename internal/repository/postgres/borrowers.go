package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/library-management/internal/model"
	"github.com/Shivanand-hulikatti/library-management/internal/repository"
)

const borrowerColumns = `id, name, email, student_id, phone, created_at, updated_at`

// BorrowerRepository handles persistence for borrowers.
type BorrowerRepository struct {
	db *DB
}

func scanBorrower(row pgx.Row) (*model.Borrower, error) {
	var b model.Borrower
	if err := row.Scan(&b.ID, &b.Name, &b.Email, &b.StudentID, &b.Phone, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BorrowerRepository) findOne(ctx context.Context, op, query string, args ...any) (*model.Borrower, error) {
	b, err := scanBorrower(r.db.q(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.BorrowerNotFound()
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

// FindByID returns a single borrower.
func (r *BorrowerRepository) FindByID(ctx context.Context, id string) (*model.Borrower, error) {
	return r.findOne(ctx, "get borrower", `SELECT `+borrowerColumns+` FROM borrowers WHERE id = $1`, id)
}

// LockByID returns a borrower and locks the row for the transaction.
func (r *BorrowerRepository) LockByID(ctx context.Context, id string) (*model.Borrower, error) {
	return r.findOne(ctx, "lock borrower", `SELECT `+borrowerColumns+` FROM borrowers WHERE id = $1 FOR UPDATE`, id)
}

// FindConflicting returns a borrower other than excludeID that already holds
// email or studentID.
func (r *BorrowerRepository) FindConflicting(ctx context.Context, email, studentID, excludeID string) (*model.Borrower, error) {
	return r.findOne(ctx, "find conflicting borrower",
		`SELECT `+borrowerColumns+`
		 FROM borrowers
		 WHERE (email = $1 OR student_id = $2) AND id <> $3
		 LIMIT 1`,
		email, studentID, excludeID,
	)
}

// Insert stores a new borrower.
func (r *BorrowerRepository) Insert(ctx context.Context, b *model.Borrower) error {
	_, err := r.db.q(ctx).Exec(ctx,
		`INSERT INTO borrowers (`+borrowerColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.Name, b.Email, b.StudentID, b.Phone, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return mapWriteErr("insert borrower", err)
	}
	return nil
}

// Save overwrites a borrower's mutable fields.
func (r *BorrowerRepository) Save(ctx context.Context, b *model.Borrower) error {
	tag, err := r.db.q(ctx).Exec(ctx,
		`UPDATE borrowers
		 SET name = $2, email = $3, student_id = $4, phone = $5, updated_at = $6
		 WHERE id = $1`,
		b.ID, b.Name, b.Email, b.StudentID, b.Phone, b.UpdatedAt,
	)
	if err != nil {
		return mapWriteErr("save borrower", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.BorrowerNotFound()
	}
	return nil
}

// Delete removes a borrower.
func (r *BorrowerRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM borrowers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete borrower: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.BorrowerNotFound()
	}
	return nil
}

// List returns one page of borrowers, newest first, and the total count.
func (r *BorrowerRepository) List(ctx context.Context, page model.Page) ([]model.Borrower, int, error) {
	var total int
	if err := r.db.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM borrowers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count borrowers: %w", err)
	}

	rows, err := r.db.q(ctx).Query(ctx,
		`SELECT `+borrowerColumns+`
		 FROM borrowers
		 ORDER BY created_at DESC, id
		 LIMIT $1 OFFSET $2`,
		page.Size, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list borrowers: %w", err)
	}
	defer rows.Close()

	borrowers := []model.Borrower{}
	for rows.Next() {
		b, err := scanBorrower(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan borrower: %w", err)
		}
		borrowers = append(borrowers, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return borrowers, total, nil
}
