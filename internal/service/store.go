package service

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/library-management/internal/model"
)

// Transactor runs fn inside one store transaction. The transaction travels
// in the context passed to fn; every store call made with that context joins
// it. fn returning an error rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// BookStore persists books. Lookups of missing rows return a NOT_FOUND
// domain error for entity "Book".
type BookStore interface {
	FindByID(ctx context.Context, id string) (*model.Book, error)
	// LockByID loads the book and, inside a transaction, holds it against
	// concurrent writers until the transaction ends.
	LockByID(ctx context.Context, id string) (*model.Book, error)
	FindByISBN(ctx context.Context, isbn string) (*model.Book, error)
	Insert(ctx context.Context, b *model.Book) error
	Save(ctx context.Context, b *model.Book) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page model.Page) ([]model.Book, int, error)
	ListAvailable(ctx context.Context) ([]model.Book, error)
	ListAll(ctx context.Context) ([]model.Book, error)

	// DecrementAvailable takes one copy if any is available. It reports
	// false when the book is missing or has none left.
	DecrementAvailable(ctx context.Context, id string, at time.Time) (bool, error)
	// IncrementAvailable puts one copy back unless the book is already fully
	// available. It reports false when the book is missing or full. Every
	// counter update stamps updated_at with at.
	IncrementAvailable(ctx context.Context, id string, at time.Time) (bool, error)
	SetAvailable(ctx context.Context, id string, available int, at time.Time) error
}

// BorrowerStore persists borrowers. Missing rows are NOT_FOUND for "User".
type BorrowerStore interface {
	FindByID(ctx context.Context, id string) (*model.Borrower, error)
	// LockByID is FindByID holding the row until the transaction ends.
	LockByID(ctx context.Context, id string) (*model.Borrower, error)
	// FindConflicting returns a borrower other than excludeID holding email
	// or studentID, or NOT_FOUND when there is none.
	FindConflicting(ctx context.Context, email, studentID, excludeID string) (*model.Borrower, error)
	Insert(ctx context.Context, b *model.Borrower) error
	Save(ctx context.Context, b *model.Borrower) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page model.Page) ([]model.Borrower, int, error)
}

// LoanStore persists loans. Missing rows are NOT_FOUND for "Assignment".
type LoanStore interface {
	FindByID(ctx context.Context, id string) (*model.Loan, error)
	FindDetails(ctx context.Context, id string) (*model.LoanDetails, error)
	FindActiveByBookAndUser(ctx context.Context, bookID, userID string) (*model.Loan, error)
	// InsertUnique stores a new loan. A second issued loan for the same
	// book and borrower is a CONFLICT "already borrowed".
	InsertUnique(ctx context.Context, l *model.Loan) error
	// MarkReturned moves an issued loan to returned. It reports false when
	// the loan was not in the issued state.
	MarkReturned(ctx context.Context, id string, at time.Time) (bool, error)
	CountActiveByBook(ctx context.Context, bookID string) (int, error)
	CountActiveByUser(ctx context.Context, userID string) (int, error)
	CountActiveGroupedByBook(ctx context.Context) (map[string]int, error)

	FindAll(ctx context.Context, page model.Page) ([]model.LoanDetails, int, error)
	ListAll(ctx context.Context) ([]model.LoanDetails, error)
	ListActive(ctx context.Context) ([]model.LoanDetails, error)
	ListOverdue(ctx context.Context, now time.Time) ([]model.LoanDetails, error)
	ListByUser(ctx context.Context, userID string) ([]model.LoanDetails, error)
}

// Stores bundles one backend's implementations.
type Stores struct {
	Tx        Transactor
	Books     BookStore
	Borrowers BorrowerStore
	Loans     LoanStore
}
