package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/library-management/internal/model"
	"github.com/Shivanand-hulikatti/library-management/internal/repository"
)

const loanColumns = `id, book_id, user_id, issue_date, due_date, return_date, status, created_at, updated_at`

// detailsSelect joins each loan with summaries of its book and borrower.
// Either side may be missing, so the joins are outer.
const detailsSelect = `
	SELECT l.id, l.book_id, l.user_id, l.issue_date, l.due_date, l.return_date, l.status,
	       l.created_at, l.updated_at,
	       b.id, b.title, b.author, b.isbn,
	       u.id, u.name, u.email, u.student_id
	FROM loans l
	LEFT JOIN books b ON b.id = l.book_id
	LEFT JOIN borrowers u ON u.id = l.user_id`

// LoanRepository handles persistence for loans.
type LoanRepository struct {
	db *DB
}

func scanLoan(row pgx.Row) (*model.Loan, error) {
	var (
		l      model.Loan
		status string
	)
	err := row.Scan(&l.ID, &l.BookID, &l.UserID, &l.IssueDate, &l.DueDate, &l.ReturnDate,
		&status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Status = model.LoanStatus(status)
	return &l, nil
}

func scanDetails(row pgx.Row) (*model.LoanDetails, error) {
	var (
		d                        model.LoanDetails
		status                   string
		bookID, title, author    *string
		isbn                     *string
		userID, name, email, sid *string
	)
	err := row.Scan(&d.ID, &d.BookID, &d.UserID, &d.IssueDate, &d.DueDate, &d.ReturnDate,
		&status, &d.CreatedAt, &d.UpdatedAt,
		&bookID, &title, &author, &isbn,
		&userID, &name, &email, &sid)
	if err != nil {
		return nil, err
	}
	d.Status = model.LoanStatus(status)
	if bookID != nil {
		d.Book = &model.BookSummary{ID: *bookID, Title: *title, Author: *author, ISBN: *isbn}
	}
	if userID != nil {
		d.User = &model.BorrowerSummary{ID: *userID, Name: *name, Email: *email, StudentID: *sid}
	}
	return &d, nil
}

func (r *LoanRepository) listDetails(ctx context.Context, op, query string, args ...any) ([]model.LoanDetails, error) {
	rows, err := r.db.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []model.LoanDetails{}
	for rows.Next() {
		d, err := scanDetails(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// FindByID returns a single loan.
func (r *LoanRepository) FindByID(ctx context.Context, id string) (*model.Loan, error) {
	l, err := scanLoan(r.db.q(ctx).QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.LoanNotFound()
		}
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return l, nil
}

// FindDetails returns a loan joined with its book and borrower.
func (r *LoanRepository) FindDetails(ctx context.Context, id string) (*model.LoanDetails, error) {
	d, err := scanDetails(r.db.q(ctx).QueryRow(ctx, detailsSelect+` WHERE l.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.LoanNotFound()
		}
		return nil, fmt.Errorf("get loan details: %w", err)
	}
	return d, nil
}

// FindActiveByBookAndUser returns the issued loan of bookID to userID.
func (r *LoanRepository) FindActiveByBookAndUser(ctx context.Context, bookID, userID string) (*model.Loan, error) {
	l, err := scanLoan(r.db.q(ctx).QueryRow(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE book_id = $1 AND user_id = $2 AND status = 'issued'`,
		bookID, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.LoanNotFound()
		}
		return nil, fmt.Errorf("find active loan: %w", err)
	}
	return l, nil
}

// InsertUnique stores a new loan. The partial unique index rejects a second
// issued loan for the same pair even when two transactions race past the
// service's precheck.
func (r *LoanRepository) InsertUnique(ctx context.Context, l *model.Loan) error {
	if err := l.Validate(); err != nil {
		return err
	}
	_, err := r.db.q(ctx).Exec(ctx,
		`INSERT INTO loans (`+loanColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.ID, l.BookID, l.UserID, l.IssueDate, l.DueDate, l.ReturnDate, string(l.Status), l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return mapWriteErr("insert loan", err)
	}
	return nil
}

// MarkReturned performs the issued -> returned transition. It reports false
// if the loan is not currently issued.
func (r *LoanRepository) MarkReturned(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.db.q(ctx).Exec(ctx,
		`UPDATE loans
		 SET status = 'returned', return_date = $2, updated_at = $2
		 WHERE id = $1 AND status = 'issued'`,
		id, at,
	)
	if err != nil {
		return false, mapWriteErr("mark loan returned", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *LoanRepository) count(ctx context.Context, op, query string, arg any) (int, error) {
	var n int
	if err := r.db.q(ctx).QueryRow(ctx, query, arg).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// CountActiveByBook counts issued loans of a book.
func (r *LoanRepository) CountActiveByBook(ctx context.Context, bookID string) (int, error) {
	return r.count(ctx, "count active loans by book",
		`SELECT COUNT(*) FROM loans WHERE book_id = $1 AND status = 'issued'`, bookID)
}

// CountActiveByUser counts issued loans of a borrower.
func (r *LoanRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	return r.count(ctx, "count active loans by user",
		`SELECT COUNT(*) FROM loans WHERE user_id = $1 AND status = 'issued'`, userID)
}

// CountActiveGroupedByBook returns issued-loan counts keyed by book id.
func (r *LoanRepository) CountActiveGroupedByBook(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.q(ctx).Query(ctx,
		`SELECT book_id, COUNT(*) FROM loans WHERE status = 'issued' GROUP BY book_id`)
	if err != nil {
		return nil, fmt.Errorf("count active loans: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			bookID string
			n      int
		)
		if err := rows.Scan(&bookID, &n); err != nil {
			return nil, fmt.Errorf("scan loan count: %w", err)
		}
		counts[bookID] = n
	}
	return counts, rows.Err()
}

// FindAll returns one page of loans, newest first, and the total count.
func (r *LoanRepository) FindAll(ctx context.Context, page model.Page) ([]model.LoanDetails, int, error) {
	var total int
	if err := r.db.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM loans`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count loans: %w", err)
	}
	loans, err := r.listDetails(ctx, "loan history",
		detailsSelect+` ORDER BY l.created_at DESC, l.id LIMIT $1 OFFSET $2`,
		page.Size, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	return loans, total, nil
}

// ListAll returns every loan, newest first.
func (r *LoanRepository) ListAll(ctx context.Context) ([]model.LoanDetails, error) {
	return r.listDetails(ctx, "list loans", detailsSelect+` ORDER BY l.created_at DESC, l.id`)
}

// ListActive returns issued loans, most recently issued first.
func (r *LoanRepository) ListActive(ctx context.Context) ([]model.LoanDetails, error) {
	return r.listDetails(ctx, "list active loans",
		detailsSelect+` WHERE l.status = 'issued' ORDER BY l.issue_date DESC, l.id`)
}

// ListOverdue returns issued loans due before now, oldest due first.
func (r *LoanRepository) ListOverdue(ctx context.Context, now time.Time) ([]model.LoanDetails, error) {
	return r.listDetails(ctx, "list overdue loans",
		detailsSelect+` WHERE l.status = 'issued' AND l.due_date < $1 ORDER BY l.due_date, l.id`, now)
}

// ListByUser returns every loan of a borrower, newest first.
func (r *LoanRepository) ListByUser(ctx context.Context, userID string) ([]model.LoanDetails, error) {
	return r.listDetails(ctx, "list loans by user",
		detailsSelect+` WHERE l.user_id = $1 ORDER BY l.created_at DESC, l.id`, userID)
}
