package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/Shivanand-hulikatti/library-management/internal/model"
	"github.com/Shivanand-hulikatti/library-management/internal/repository"
)

const loansTable = "loans"

var loanColumns = []any{
	"id", "book_id", "user_id", "issue_date", "due_date", "return_date",
	"status", "created_at", "updated_at",
}

// LoanRepository handles persistence for loans.
type LoanRepository struct {
	db *DB
}

func scanLoan(row scanner) (*model.Loan, error) {
	var (
		l                                    model.Loan
		issue, due, created, updated, status string
		returned                             sql.NullString
	)
	err := row.Scan(&l.ID, &l.BookID, &l.UserID, &issue, &due, &returned, &status, &created, &updated)
	if err != nil {
		return nil, err
	}
	if err := fillLoan(&l, issue, due, created, updated, status, returned); err != nil {
		return nil, err
	}
	return &l, nil
}

func fillLoan(l *model.Loan, issue, due, created, updated, status string, returned sql.NullString) error {
	err := parseTimes(
		timeCol{issue, &l.IssueDate},
		timeCol{due, &l.DueDate},
		timeCol{created, &l.CreatedAt},
		timeCol{updated, &l.UpdatedAt},
	)
	if err != nil {
		return err
	}
	if l.ReturnDate, err = parseNullTime(returned); err != nil {
		return err
	}
	l.Status = model.LoanStatus(status)
	return nil
}

// details selects loans joined with summaries of their book and borrower.
// Either side may be missing, so the joins are outer.
func details() *goqu.SelectDataset {
	return from(goqu.T(loansTable).As("l")).
		LeftJoin(goqu.T(booksTable).As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("l.book_id")))).
		LeftJoin(goqu.T(borrowersTable).As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("l.user_id")))).
		Select(
			goqu.I("l.id"), goqu.I("l.book_id"), goqu.I("l.user_id"),
			goqu.I("l.issue_date"), goqu.I("l.due_date"), goqu.I("l.return_date"),
			goqu.I("l.status"), goqu.I("l.created_at"), goqu.I("l.updated_at"),
			goqu.I("b.id"), goqu.I("b.title"), goqu.I("b.author"), goqu.I("b.isbn"),
			goqu.I("u.id"), goqu.I("u.name"), goqu.I("u.email"), goqu.I("u.student_id"),
		)
}

func scanDetails(row scanner) (*model.LoanDetails, error) {
	var (
		d                                    model.LoanDetails
		issue, due, created, updated, status string
		returned                             sql.NullString
		bookID, title, author, isbn          sql.NullString
		userID, name, email, studentID       sql.NullString
	)
	err := row.Scan(&d.ID, &d.BookID, &d.UserID, &issue, &due, &returned, &status, &created, &updated,
		&bookID, &title, &author, &isbn,
		&userID, &name, &email, &studentID)
	if err != nil {
		return nil, err
	}
	if err := fillLoan(&d.Loan, issue, due, created, updated, status, returned); err != nil {
		return nil, err
	}
	if bookID.Valid {
		d.Book = &model.BookSummary{ID: bookID.String, Title: title.String, Author: author.String, ISBN: isbn.String}
	}
	if userID.Valid {
		d.User = &model.BorrowerSummary{ID: userID.String, Name: name.String, Email: email.String, StudentID: studentID.String}
	}
	return &d, nil
}

func (r *LoanRepository) listDetails(ctx context.Context, op string, ds *goqu.SelectDataset) ([]model.LoanDetails, error) {
	rows, err := r.db.query(ctx, op, ds)
	if err != nil {
		return nil, err
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

func (r *LoanRepository) findOne(ctx context.Context, op string, where ...exp.Expression) (*model.Loan, error) {
	row, err := r.db.queryRow(ctx, op, from(loansTable).Select(loanColumns...).Where(where...))
	if err != nil {
		return nil, err
	}
	l, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.LoanNotFound()
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return l, nil
}

var isIssued = goqu.C("status").Eq(string(model.LoanIssued))

// FindByID returns a single loan.
func (r *LoanRepository) FindByID(ctx context.Context, id string) (*model.Loan, error) {
	return r.findOne(ctx, "get loan", goqu.C("id").Eq(id))
}

// FindDetails returns a loan joined with its book and borrower.
func (r *LoanRepository) FindDetails(ctx context.Context, id string) (*model.LoanDetails, error) {
	row, err := r.db.queryRow(ctx, "get loan details", details().Where(goqu.I("l.id").Eq(id)))
	if err != nil {
		return nil, err
	}
	d, err := scanDetails(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.LoanNotFound()
		}
		return nil, fmt.Errorf("get loan details: %w", err)
	}
	return d, nil
}

// FindActiveByBookAndUser returns the issued loan of bookID to userID.
func (r *LoanRepository) FindActiveByBookAndUser(ctx context.Context, bookID, userID string) (*model.Loan, error) {
	return r.findOne(ctx, "find active loan",
		goqu.C("book_id").Eq(bookID), goqu.C("user_id").Eq(userID), isIssued)
}

// InsertUnique stores a new loan; the partial unique index rejects a second
// issued loan for the same pair.
func (r *LoanRepository) InsertUnique(ctx context.Context, l *model.Loan) error {
	if err := l.Validate(); err != nil {
		return err
	}
	_, err := r.db.exec(ctx, "insert loan", insertInto(loansTable).Rows(goqu.Record{
		"id":          l.ID,
		"book_id":     l.BookID,
		"user_id":     l.UserID,
		"issue_date":  formatTime(l.IssueDate),
		"due_date":    formatTime(l.DueDate),
		"return_date": nullTime(l.ReturnDate),
		"status":      string(l.Status),
		"created_at":  formatTime(l.CreatedAt),
		"updated_at":  formatTime(l.UpdatedAt),
	}))
	return err
}

// MarkReturned performs the issued -> returned transition. It reports false
// if the loan is not currently issued.
func (r *LoanRepository) MarkReturned(ctx context.Context, id string, at time.Time) (bool, error) {
	n, err := r.db.exec(ctx, "mark loan returned", update(loansTable).
		Set(goqu.Record{
			"status":      string(model.LoanReturned),
			"return_date": formatTime(at),
			"updated_at":  formatTime(at),
		}).
		Where(goqu.C("id").Eq(id), isIssued))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CountActiveByBook counts issued loans of a book.
func (r *LoanRepository) CountActiveByBook(ctx context.Context, bookID string) (int, error) {
	return r.db.count(ctx, "count active loans by book",
		from(loansTable).Where(goqu.C("book_id").Eq(bookID), isIssued))
}

// CountActiveByUser counts issued loans of a borrower.
func (r *LoanRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	return r.db.count(ctx, "count active loans by user",
		from(loansTable).Where(goqu.C("user_id").Eq(userID), isIssued))
}

// CountActiveGroupedByBook returns issued-loan counts keyed by book id.
func (r *LoanRepository) CountActiveGroupedByBook(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.query(ctx, "count active loans", from(loansTable).
		Select(goqu.C("book_id"), goqu.COUNT("*")).
		Where(isIssued).
		GroupBy("book_id"))
	if err != nil {
		return nil, err
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
	total, err := r.db.count(ctx, "count loans", from(loansTable))
	if err != nil {
		return nil, 0, err
	}
	loans, err := r.listDetails(ctx, "loan history", details().
		Order(goqu.I("l.created_at").Desc(), goqu.I("l.id").Asc()).
		Limit(uint(page.Size)).
		Offset(uint(page.Offset())))
	if err != nil {
		return nil, 0, err
	}
	return loans, total, nil
}

// ListAll returns every loan, newest first.
func (r *LoanRepository) ListAll(ctx context.Context) ([]model.LoanDetails, error) {
	return r.listDetails(ctx, "list loans", details().
		Order(goqu.I("l.created_at").Desc(), goqu.I("l.id").Asc()))
}

// ListActive returns issued loans, most recently issued first.
func (r *LoanRepository) ListActive(ctx context.Context) ([]model.LoanDetails, error) {
	return r.listDetails(ctx, "list active loans", details().
		Where(goqu.I("l.status").Eq(string(model.LoanIssued))).
		Order(goqu.I("l.issue_date").Desc(), goqu.I("l.id").Asc()))
}

// ListOverdue returns issued loans due before now, oldest due first.
func (r *LoanRepository) ListOverdue(ctx context.Context, now time.Time) ([]model.LoanDetails, error) {
	return r.listDetails(ctx, "list overdue loans", details().
		Where(
			goqu.I("l.status").Eq(string(model.LoanIssued)),
			goqu.I("l.due_date").Lt(formatTime(now)),
		).
		Order(goqu.I("l.due_date").Asc(), goqu.I("l.id").Asc()))
}

// ListByUser returns every loan of a borrower, newest first.
func (r *LoanRepository) ListByUser(ctx context.Context, userID string) ([]model.LoanDetails, error) {
	return r.listDetails(ctx, "list loans by user", details().
		Where(goqu.I("l.user_id").Eq(userID)).
		Order(goqu.I("l.created_at").Desc(), goqu.I("l.id").Asc()))
}
