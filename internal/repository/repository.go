// Package repository holds what the store backends share: the entity names
// used in NOT_FOUND errors and the context plumbing that lets a transaction
// opened by a Transactor reach every store call made under it.
//
// The backends live in the postgres and sqlite subpackages. Both write plain
// SQL against their own embedded schema; there is no ORM.
package repository

import (
	"context"

	liberrors "github.com/Shivanand-hulikatti/library-management/internal/errors"
)

// Entity names as they appear in NOT_FOUND errors.
const (
	EntityBook     = "Book"
	EntityBorrower = "User"
	EntityLoan     = "Assignment"
)

// Constraint names shared by both schemas.
const (
	ConstraintBookISBN         = "books_isbn_key"
	ConstraintBorrowerEmail    = "borrowers_email_key"
	ConstraintBorrowerStudent  = "borrowers_student_id_key"
	ConstraintOneActivePerPair = "loans_one_active_per_pair"
)

type txKey struct{}

// WithTx returns a context carrying tx.
func WithTx[T any](ctx context.Context, tx T) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFrom returns the transaction carried by ctx, if it is a T.
func TxFrom[T any](ctx context.Context) (T, bool) {
	tx, ok := ctx.Value(txKey{}).(T)
	return tx, ok
}

// BookNotFound and friends build the NOT_FOUND errors stores return.
func BookNotFound() error     { return liberrors.NotFound(EntityBook) }
func BorrowerNotFound() error { return liberrors.NotFound(EntityBorrower) }
func LoanNotFound() error     { return liberrors.NotFound(EntityLoan) }

// DuplicateBook is returned when an insert or save collides on ISBN.
func DuplicateBook() error {
	return liberrors.Conflictf(liberrors.ReasonDuplicate, "Book with this ISBN already exists")
}

// DuplicateBorrower is returned when an insert or save collides on email or
// student id.
func DuplicateBorrower() error {
	return liberrors.Conflictf(liberrors.ReasonDuplicate, "User with this email or student ID already exists")
}

// AlreadyBorrowed is returned when a second issued loan for the same book and
// borrower would be stored.
func AlreadyBorrowed() error {
	return liberrors.Conflictf(liberrors.ReasonAlreadyBorrowed, "User has already borrowed this book")
}
