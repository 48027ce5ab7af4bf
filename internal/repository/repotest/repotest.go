// Package repotest is a conformance suite every store backend must pass.
// Backends call Run from their own tests with a factory that returns stores
// over an empty database.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	liberrors "github.com/Shivanand-hulikatti/library-management/internal/errors"
	"github.com/Shivanand-hulikatti/library-management/internal/model"
	"github.com/Shivanand-hulikatti/library-management/internal/service"
)

// Factory returns stores over an empty database, cleaned up with t.
type Factory func(t *testing.T) service.Stores

// Base is the reference time for fixtures. Microsecond precision keeps it
// exact in every backend.
var Base = time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)

// Run executes the suite.
func Run(t *testing.T, newStores Factory) {
	t.Run("Books", func(t *testing.T) { testBooks(t, newStores) })
	t.Run("BookCounters", func(t *testing.T) { testBookCounters(t, newStores) })
	t.Run("Borrowers", func(t *testing.T) { testBorrowers(t, newStores) })
	t.Run("Loans", func(t *testing.T) { testLoans(t, newStores) })
	t.Run("LoanQueries", func(t *testing.T) { testLoanQueries(t, newStores) })
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, newStores) })
	t.Run("Concurrency", func(t *testing.T) { testConcurrency(t, newStores) })
}

// NewBook returns a valid book with n copies.
func NewBook(n int, createdAt time.Time) *model.Book {
	id := uuid.NewString()
	return &model.Book{
		ID:              id,
		Title:           "Title " + id[:8],
		Author:          "Author",
		ISBN:            fmt.Sprintf("978%010d", uuid.New().ID()),
		Category:        "Fiction",
		TotalCopies:     n,
		AvailableCopies: n,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

// NewBorrower returns a valid borrower with unique email and student id.
func NewBorrower(createdAt time.Time) *model.Borrower {
	id := uuid.NewString()
	return &model.Borrower{
		ID:        id,
		Name:      "Ada Lovelace",
		Email:     id[:8] + "@example.com",
		StudentID: "S" + id[:8],
		Phone:     "+15551234567",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func newLoan(t *testing.T, bookID, userID string, issued time.Time) *model.Loan {
	t.Helper()
	l, err := model.NewLoan(uuid.NewString(), bookID, userID, issued, time.Time{})
	require.NoError(t, err)
	return l
}

func sameTime(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func testBooks(t *testing.T, newStores Factory) {
	ctx := context.Background()
	st := newStores(t)

	book := NewBook(3, Base)
	require.NoError(t, st.Books.Insert(ctx, book))

	got, err := st.Books.FindByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.ISBN, got.ISBN)
	assert.Equal(t, 3, got.AvailableCopies)
	sameTime(t, book.CreatedAt, got.CreatedAt)

	byISBN, err := st.Books.FindByISBN(ctx, book.ISBN)
	require.NoError(t, err)
	assert.Equal(t, book.ID, byISBN.ID)

	_, err = st.Books.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, liberrors.NotFound("Book"))

	dup := NewBook(1, Base)
	dup.ISBN = book.ISBN
	err = st.Books.Insert(ctx, dup)
	assert.ErrorIs(t, err, liberrors.Conflict(liberrors.ReasonDuplicate))

	got.Title = "Renamed"
	got.AvailableCopies = 4
	assert.ErrorIs(t, st.Books.Save(ctx, got), liberrors.ErrValidation, "available above total is rejected")

	got.AvailableCopies = 1
	got.UpdatedAt = Base.Add(time.Hour)
	require.NoError(t, st.Books.Save(ctx, got))
	again, err := st.Books.FindByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", again.Title)
	assert.Equal(t, 1, again.AvailableCopies)

	for i := 1; i <= 4; i++ {
		require.NoError(t, st.Books.Insert(ctx, NewBook(1, Base.Add(time.Duration(i)*time.Minute))))
	}
	page, total, err := st.Books.List(ctx, model.NewPage(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt), "newest first")

	last, _, err := st.Books.List(ctx, model.NewPage(3, 2))
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, book.ID, last[0].ID)

	all, err := st.Books.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	require.NoError(t, st.Books.Delete(ctx, book.ID))
	assert.ErrorIs(t, st.Books.Delete(ctx, book.ID), liberrors.ErrNotFound)
	_, err = st.Books.FindByID(ctx, book.ID)
	assert.ErrorIs(t, err, liberrors.ErrNotFound)
}

func testBookCounters(t *testing.T, newStores Factory) {
	ctx := context.Background()
	st := newStores(t)

	book := NewBook(2, Base)
	require.NoError(t, st.Books.Insert(ctx, book))
	at := Base.Add(time.Hour)

	for i := 0; i < 2; i++ {
		ok, err := st.Books.DecrementAvailable(ctx, book.ID, at)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := st.Books.DecrementAvailable(ctx, book.ID, at)
	require.NoError(t, err)
	assert.False(t, ok, "never below zero")

	available, err := st.Books.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Empty(t, available)

	for i := 0; i < 2; i++ {
		ok, err := st.Books.IncrementAvailable(ctx, book.ID, at)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err = st.Books.IncrementAvailable(ctx, book.ID, at)
	require.NoError(t, err)
	assert.False(t, ok, "never above total")

	ok, err = st.Books.DecrementAvailable(ctx, uuid.NewString(), at)
	require.NoError(t, err)
	assert.False(t, ok, "missing book")

	require.NoError(t, st.Books.SetAvailable(ctx, book.ID, 1, at.Add(time.Minute)))
	got, err := st.Books.FindByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)
	assert.True(t, at.Add(time.Minute).Equal(got.UpdatedAt), "updated_at comes from the caller: %v", got.UpdatedAt)

	assert.ErrorIs(t, st.Books.SetAvailable(ctx, book.ID, 3, at), liberrors.ErrValidation)
	assert.ErrorIs(t, st.Books.SetAvailable(ctx, uuid.NewString(), 0, at), liberrors.ErrNotFound)
}

func testBorrowers(t *testing.T, newStores Factory) {
	ctx := context.Background()
	st := newStores(t)

	ada := NewBorrower(Base)
	require.NoError(t, st.Borrowers.Insert(ctx, ada))

	got, err := st.Borrowers.FindByID(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, ada.Email, got.Email)
	sameTime(t, ada.CreatedAt, got.CreatedAt)

	locked, err := st.Borrowers.LockByID(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, ada.ID, locked.ID)

	_, err = st.Borrowers.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, liberrors.NotFound("User"))

	dup := NewBorrower(Base)
	dup.Email = ada.Email
	assert.ErrorIs(t, st.Borrowers.Insert(ctx, dup), liberrors.Conflict(liberrors.ReasonDuplicate))

	dup.Email = "other@example.com"
	dup.StudentID = ada.StudentID
	assert.ErrorIs(t, st.Borrowers.Insert(ctx, dup), liberrors.Conflict(liberrors.ReasonDuplicate))

	conflict, err := st.Borrowers.FindConflicting(ctx, "nobody@example.com", ada.StudentID, "")
	require.NoError(t, err)
	assert.Equal(t, ada.ID, conflict.ID)

	_, err = st.Borrowers.FindConflicting(ctx, ada.Email, ada.StudentID, ada.ID)
	assert.ErrorIs(t, err, liberrors.ErrNotFound, "a borrower never conflicts with itself")

	grace := NewBorrower(Base.Add(time.Minute))
	require.NoError(t, st.Borrowers.Insert(ctx, grace))

	grace.Email = ada.Email
	assert.ErrorIs(t, st.Borrowers.Save(ctx, grace), liberrors.Conflict(liberrors.ReasonDuplicate))

	grace.Email = "grace@example.com"
	grace.Name = "Grace Hopper"
	require.NoError(t, st.Borrowers.Save(ctx, grace))

	list, total, err := st.Borrowers.List(ctx, model.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, "Grace Hopper", list[0].Name)

	require.NoError(t, st.Borrowers.Delete(ctx, ada.ID))
	assert.ErrorIs(t, st.Borrowers.Delete(ctx, ada.ID), liberrors.ErrNotFound)
}

func testLoans(t *testing.T, newStores Factory) {
	ctx := context.Background()
	st := newStores(t)

	book := NewBook(2, Base)
	require.NoError(t, st.Books.Insert(ctx, book))
	user := NewBorrower(Base)
	require.NoError(t, st.Borrowers.Insert(ctx, user))

	loan := newLoan(t, book.ID, user.ID, Base)
	require.NoError(t, st.Loans.InsertUnique(ctx, loan))

	got, err := st.Loans.FindByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanIssued, got.Status)
	assert.Nil(t, got.ReturnDate)
	sameTime(t, loan.DueDate, got.DueDate)

	active, err := st.Loans.FindActiveByBookAndUser(ctx, book.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.ID, active.ID)

	second := newLoan(t, book.ID, user.ID, Base.Add(time.Minute))
	assert.ErrorIs(t, st.Loans.InsertUnique(ctx, second), liberrors.ErrAlreadyBorrowed)

	returnedAt := Base.Add(3 * 24 * time.Hour)
	ok, err := st.Loans.MarkReturned(ctx, loan.ID, returnedAt)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.Loans.MarkReturned(ctx, loan.ID, returnedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "only issued loans can be returned")

	got, err = st.Loans.FindByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanReturned, got.Status)
	require.NotNil(t, got.ReturnDate)
	sameTime(t, returnedAt, *got.ReturnDate)

	_, err = st.Loans.FindActiveByBookAndUser(ctx, book.ID, user.ID)
	assert.ErrorIs(t, err, liberrors.NotFound("Assignment"))

	// once the first loan is returned the pair may borrow again
	require.NoError(t, st.Loans.InsertUnique(ctx, second))

	n, err := st.Loans.CountActiveByBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = st.Loans.CountActiveByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = st.Loans.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, liberrors.ErrNotFound)
}

func testLoanQueries(t *testing.T, newStores Factory) {
	ctx := context.Background()
	st := newStores(t)

	bookA := NewBook(5, Base)
	bookB := NewBook(5, Base)
	require.NoError(t, st.Books.Insert(ctx, bookA))
	require.NoError(t, st.Books.Insert(ctx, bookB))
	ada := NewBorrower(Base)
	grace := NewBorrower(Base)
	require.NoError(t, st.Borrowers.Insert(ctx, ada))
	require.NoError(t, st.Borrowers.Insert(ctx, grace))

	oldest := newLoan(t, bookA.ID, ada.ID, Base)
	middle := newLoan(t, bookB.ID, ada.ID, Base.Add(24*time.Hour))
	newest := newLoan(t, bookA.ID, grace.ID, Base.Add(48*time.Hour))
	for _, l := range []*model.Loan{oldest, middle, newest} {
		require.NoError(t, st.Loans.InsertUnique(ctx, l))
	}
	ok, err := st.Loans.MarkReturned(ctx, middle.ID, Base.Add(30*time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	details, err := st.Loans.FindDetails(ctx, newest.ID)
	require.NoError(t, err)
	require.NotNil(t, details.Book)
	require.NotNil(t, details.User)
	assert.Equal(t, bookA.Title, details.Book.Title)
	assert.Equal(t, grace.StudentID, details.User.StudentID)

	all, err := st.Loans.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{newest.ID, middle.ID, oldest.ID}, loanIDs(all))

	activeLoans, err := st.Loans.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{newest.ID, oldest.ID}, loanIDs(activeLoans))

	page, total, err := st.Loans.FindAll(ctx, model.NewPage(2, 2))
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{oldest.ID}, loanIDs(page))

	// due dates: oldest at Base+14d, newest at Base+16d
	overdue, err := st.Loans.ListOverdue(ctx, Base.Add(15*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{oldest.ID}, loanIDs(overdue))

	overdue, err = st.Loans.ListOverdue(ctx, Base.Add(20*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{oldest.ID, newest.ID}, loanIDs(overdue))

	adaLoans, err := st.Loans.ListByUser(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{middle.ID, oldest.ID}, loanIDs(adaLoans))

	grouped, err := st.Loans.CountActiveGroupedByBook(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{bookA.ID: 2}, grouped)

	// a deleted book leaves its loans readable without a summary
	require.NoError(t, st.Books.Delete(ctx, bookB.ID))
	details, err = st.Loans.FindDetails(ctx, middle.ID)
	require.NoError(t, err)
	assert.Nil(t, details.Book)
	assert.NotNil(t, details.User)
}

func loanIDs(details []model.LoanDetails) []string {
	ids := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ID)
	}
	return ids
}

var errBoom = errors.New("boom")

func testTransactions(t *testing.T, newStores Factory) {
	ctx := context.Background()
	st := newStores(t)

	committed := NewBook(1, Base)
	err := st.Tx.WithinTx(ctx, func(ctx context.Context) error {
		return st.Books.Insert(ctx, committed)
	})
	require.NoError(t, err)
	_, err = st.Books.FindByID(ctx, committed.ID)
	require.NoError(t, err)

	rolledBack := NewBook(1, Base)
	err = st.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := st.Books.Insert(ctx, rolledBack); err != nil {
			return err
		}
		if _, err := st.Books.DecrementAvailable(ctx, committed.ID, Base); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, err = st.Books.FindByID(ctx, rolledBack.ID)
	assert.ErrorIs(t, err, liberrors.ErrNotFound)
	got, err := st.Books.FindByID(ctx, committed.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies, "decrement rolled back")

	// nested calls join the outer transaction
	inner := NewBook(1, Base)
	err = st.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := st.Tx.WithinTx(ctx, func(ctx context.Context) error {
			return st.Books.Insert(ctx, inner)
		}); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	_, err = st.Books.FindByID(ctx, inner.ID)
	assert.ErrorIs(t, err, liberrors.ErrNotFound)
}
