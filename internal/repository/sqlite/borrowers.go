package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/Shivanand-hulikatti/library-management/internal/model"
	"github.com/Shivanand-hulikatti/library-management/internal/repository"
)

const borrowersTable = "borrowers"

var borrowerColumns = []any{"id", "name", "email", "student_id", "phone", "created_at", "updated_at"}

// BorrowerRepository handles persistence for borrowers.
type BorrowerRepository struct {
	db *DB
}

func scanBorrower(row scanner) (*model.Borrower, error) {
	var (
		b                model.Borrower
		created, updated string
	)
	if err := row.Scan(&b.ID, &b.Name, &b.Email, &b.StudentID, &b.Phone, &created, &updated); err != nil {
		return nil, err
	}
	if err := parseTimes(timeCol{created, &b.CreatedAt}, timeCol{updated, &b.UpdatedAt}); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BorrowerRepository) findOne(ctx context.Context, op string, ds *goqu.SelectDataset) (*model.Borrower, error) {
	row, err := r.db.queryRow(ctx, op, ds)
	if err != nil {
		return nil, err
	}
	b, err := scanBorrower(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.BorrowerNotFound()
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

// FindByID returns a single borrower.
func (r *BorrowerRepository) FindByID(ctx context.Context, id string) (*model.Borrower, error) {
	return r.findOne(ctx, "get borrower",
		from(borrowersTable).Select(borrowerColumns...).Where(goqu.Ex{"id": id}))
}

// LockByID returns a single borrower; see BookRepository.LockByID.
func (r *BorrowerRepository) LockByID(ctx context.Context, id string) (*model.Borrower, error) {
	return r.FindByID(ctx, id)
}

// FindConflicting returns a borrower other than excludeID that already holds
// email or studentID.
func (r *BorrowerRepository) FindConflicting(ctx context.Context, email, studentID, excludeID string) (*model.Borrower, error) {
	return r.findOne(ctx, "find conflicting borrower", from(borrowersTable).
		Select(borrowerColumns...).
		Where(
			goqu.Or(goqu.C("email").Eq(email), goqu.C("student_id").Eq(studentID)),
			goqu.C("id").Neq(excludeID),
		).
		Limit(1))
}

// Insert stores a new borrower.
func (r *BorrowerRepository) Insert(ctx context.Context, b *model.Borrower) error {
	_, err := r.db.exec(ctx, "insert borrower", insertInto(borrowersTable).Rows(goqu.Record{
		"id":         b.ID,
		"name":       b.Name,
		"email":      b.Email,
		"student_id": b.StudentID,
		"phone":      b.Phone,
		"created_at": formatTime(b.CreatedAt),
		"updated_at": formatTime(b.UpdatedAt),
	}))
	return err
}

// Save overwrites a borrower's mutable fields.
func (r *BorrowerRepository) Save(ctx context.Context, b *model.Borrower) error {
	n, err := r.db.exec(ctx, "save borrower", update(borrowersTable).
		Set(goqu.Record{
			"name":       b.Name,
			"email":      b.Email,
			"student_id": b.StudentID,
			"phone":      b.Phone,
			"updated_at": formatTime(b.UpdatedAt),
		}).
		Where(goqu.Ex{"id": b.ID}))
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.BorrowerNotFound()
	}
	return nil
}

// Delete removes a borrower.
func (r *BorrowerRepository) Delete(ctx context.Context, id string) error {
	n, err := r.db.exec(ctx, "delete borrower", deleteFrom(borrowersTable).Where(goqu.Ex{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.BorrowerNotFound()
	}
	return nil
}

// List returns one page of borrowers, newest first, and the total count.
func (r *BorrowerRepository) List(ctx context.Context, page model.Page) ([]model.Borrower, int, error) {
	total, err := r.db.count(ctx, "count borrowers", from(borrowersTable))
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.query(ctx, "list borrowers", from(borrowersTable).
		Select(borrowerColumns...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Asc()).
		Limit(uint(page.Size)).
		Offset(uint(page.Offset())))
	if err != nil {
		return nil, 0, err
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
