package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	liberrors "github.com/Shivanand-hulikatti/library-management/internal/errors"
	"github.com/Shivanand-hulikatti/library-management/internal/model"
	"github.com/Shivanand-hulikatti/library-management/internal/service"
)

func TestIssueLoan(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, "9780134190440", 2)
	user := f.borrower(t, "ada@example.com", "S1001")

	loan, err := f.loans.IssueLoan(f.ctx, book.ID, user.ID)
	require.NoError(t, err)

	assert.Equal(t, model.LoanIssued, loan.Status)
	assert.True(t, start.Equal(loan.IssueDate))
	assert.True(t, start.Add(14*24*time.Hour).Equal(loan.DueDate))
	assert.Nil(t, loan.ReturnDate)
	assert.False(t, loan.IsOverdue)
	require.NotNil(t, loan.Book)
	require.NotNil(t, loan.User)
	assert.Equal(t, book.ISBN, loan.Book.ISBN)
	assert.Equal(t, "S1001", loan.User.StudentID)

	assert.Equal(t, 1, f.available(t, book.ID))
}

func TestIssueLoan_Preconditions(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, "9780134190440", 1)
	ada := f.borrower(t, "ada@example.com", "S1001")
	grace := f.borrower(t, "grace@example.com", "S1002")

	_, err := f.loans.IssueLoan(f.ctx, "not-a-uuid", ada.ID)
	assert.ErrorIs(t, err, liberrors.ErrValidation)

	_, err = f.loans.IssueLoan(f.ctx, uuid.NewString(), ada.ID)
	assert.ErrorIs(t, err, liberrors.NotFound("Book"))

	_, err = f.loans.IssueLoan(f.ctx, book.ID, uuid.NewString())
	assert.ErrorIs(t, err, liberrors.NotFound("User"))

	_, err = f.loans.IssueLoan(f.ctx, book.ID, ada.ID)
	require.NoError(t, err)

	_, err = f.loans.IssueLoan(f.ctx, book.ID, grace.ID)
	assert.ErrorIs(t, err, liberrors.ErrNoCopiesAvailable)
	var domainErr *liberrors.Error
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "Book is not available for issue", domainErr.Message)

	assert.Equal(t, 0, f.available(t, book.ID))
	assert.Equal(t, 1, f.loanCount(t))
}

func TestIssueLoan_SameBorrowerTwice(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, "9780134190440", 3)
	user := f.borrower(t, "ada@example.com", "S1001")

	_, err := f.loans.IssueLoan(f.ctx, book.ID, user.ID)
	require.NoError(t, err)

	_, err = f.loans.IssueLoan(f.ctx, book.ID, user.ID)
	assert.ErrorIs(t, err, liberrors.ErrAlreadyBorrowed)
	assert.Equal(t, 2, f.available(t, book.ID))
}

func TestIssueLoan_ConcurrentLastCopy(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, "9780134190440", 1)

	const n = 8
	users := make([]string, n)
	for i := range users {
		u := f.borrower(t, uuid.NewString()[:8]+"@example.com", "S"+uuid.NewString()[:8])
		users[i] = u.ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for _, userID := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := f.loans.IssueLoan(context.Background(), book.ID, userID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, liberrors.ErrNoCopiesAvailable):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(userID)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, 0, f.available(t, book.ID))
	assert.Equal(t, 1, f.loanCount(t))
}

// failingBooks fails the counter update after the loan row is written.
type failingBooks struct {
	service.BookStore
}

var errDisk = errors.New("disk I/O error")

func (failingBooks) DecrementAvailable(context.Context, string, time.Time) (bool, error) {
	return false, errDisk
}

func TestIssueLoan_RollsBackOnCounterFailure(t *testing.T) {
	f := newFixtureWith(t, func(st service.Stores) service.Stores {
		st.Books = failingBooks{st.Books}
		return st
	})
	book := f.book(t, "9780134190440", 1)
	user := f.borrower(t, "ada@example.com", "S1001")

	_, err := f.loans.IssueLoan(f.ctx, book.ID, user.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, liberrors.ErrStorageUnavailable)
	assert.ErrorIs(t, err, errDisk)

	assert.Equal(t, 0, f.loanCount(t), "loan insert rolled back")
	assert.Equal(t, 1, f.available(t, book.ID))
}

func TestReturnLoan(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, "9780134190440", 1)
	user := f.borrower(t, "ada@example.com", "S1001")

	issued, err := f.loans.IssueLoan(f.ctx, book.ID, user.ID)
	require.NoError(t, err)

	f.clock.Advance(3*24*time.Hour + time.Hour)
	returned, err := f.loans.ReturnLoan(f.ctx, issued.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanReturned, returned.Status)
	require.NotNil(t, returned.ReturnDate)
	assert.True(t, f.clock.Now().Equal(*returned.ReturnDate))
	assert.Equal(t, 4, returned.Duration)
	assert.Equal(t, 1, f.available(t, book.ID))

	_, err = f.loans.ReturnLoan(f.ctx, issued.ID)
	assert.ErrorIs(t, err, liberrors.ErrAlreadyReturned)
	assert.Equal(t, 1, f.available(t, book.ID), "second return does not free another copy")

	_, err = f.loans.ReturnLoan(f.ctx, uuid.NewString())
	assert.ErrorIs(t, err, liberrors.NotFound("Assignment"))

	// the copy can be lent again
	_, err = f.loans.IssueLoan(f.ctx, book.ID, user.ID)
	require.NoError(t, err)
}

func TestReturnLoan_MissingBook(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, "9780134190440", 1)
	user := f.borrower(t, "ada@example.com", "S1001")

	loan, err := f.loans.IssueLoan(f.ctx, book.ID, user.ID)
	require.NoError(t, err)

	// bypass the service guard to simulate a book removed underneath a loan
	require.NoError(t, f.stores.Books.Delete(f.ctx, book.ID))

	returned, err := f.loans.ReturnLoan(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanReturned, returned.Status)
	assert.Nil(t, returned.Book)
	assert.Contains(t, f.logs.String(), "returned loan references a missing book")
}

func TestReturnLoan_CounterAlreadyFull(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, "9780134190440", 2)
	user := f.borrower(t, "ada@example.com", "S1001")

	loan, err := f.loans.IssueLoan(f.ctx, book.ID, user.ID)
	require.NoError(t, err)
	require.NoError(t, f.stores.Books.SetAvailable(f.ctx, book.ID, 2, f.clock.Now()))

	_, err = f.loans.ReturnLoan(f.ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.available(t, book.ID))
	assert.Contains(t, f.logs.String(), "inventory drift")
}

func TestOverdueLoans(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, "9780134190440", 2)
	ada := f.borrower(t, "ada@example.com", "S1001")
	grace := f.borrower(t, "grace@example.com", "S1002")

	late, err := f.loans.IssueLoan(f.ctx, book.ID, ada.ID)
	require.NoError(t, err)

	f.clock.Advance(20 * 24 * time.Hour)
	_, err = f.loans.IssueLoan(f.ctx, book.ID, grace.ID)
	require.NoError(t, err)

	f.clock.Advance(4 * 24 * time.Hour)
	overdue, err := f.loans.OverdueLoans(f.ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].ID)
	assert.True(t, overdue[0].IsOverdue)
	assert.Equal(t, 10, overdue[0].DaysOverdue)
	assert.Equal(t, 24, overdue[0].Duration)

	active, err := f.loans.ActiveLoans(f.ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	_, err = f.loans.ReturnLoan(f.ctx, late.ID)
	require.NoError(t, err)
	overdue, err = f.loans.OverdueLoans(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, overdue, "returned loans are never overdue")
}

func TestLoanHistoryAndBorrowerLoans(t *testing.T) {
	f := newFixture(t)
	ada := f.borrower(t, "ada@example.com", "S1001")
	grace := f.borrower(t, "grace@example.com", "S1002")

	var adaLoans []string
	for i, isbn := range []string{"9780134190440", "9780262033848", "9781491941195"} {
		book := f.book(t, isbn, 1)
		userID := ada.ID
		if i == 1 {
			userID = grace.ID
		}
		loan, err := f.loans.IssueLoan(f.ctx, book.ID, userID)
		require.NoError(t, err)
		if userID == ada.ID {
			adaLoans = append([]string{loan.ID}, adaLoans...)
		}
		f.clock.Advance(time.Hour)
	}

	page, pagination, err := f.loans.LoanHistory(f.ctx, model.NewPage(1, 2))
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, 3, pagination.TotalItems)
	assert.Equal(t, 2, pagination.TotalPages)

	mine, err := f.loans.BorrowerLoans(f.ctx, ada.ID)
	require.NoError(t, err)
	ids := make([]string, 0, len(mine))
	for _, l := range mine {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, adaLoans, ids)

	_, err = f.loans.BorrowerLoans(f.ctx, uuid.NewString())
	assert.ErrorIs(t, err, liberrors.NotFound("User"))

	got, err := f.loans.Get(f.ctx, mine[0].ID)
	require.NoError(t, err)
	assert.Equal(t, mine[0].ID, got.ID)
}

func TestLoanCounters_StampInjectedClock(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, "9780134190440", 1)
	ada := f.borrower(t, "ada@example.com", "S1001")

	f.clock.Advance(time.Hour)
	loan, err := f.loans.IssueLoan(f.ctx, book.ID, ada.ID)
	require.NoError(t, err)
	got, err := f.books.Get(f.ctx, book.ID)
	require.NoError(t, err)
	assert.True(t, f.clock.Now().Equal(got.UpdatedAt), "updatedAt after issue: %v", got.UpdatedAt)

	f.clock.Advance(24 * time.Hour)
	_, err = f.loans.ReturnLoan(f.ctx, loan.ID)
	require.NoError(t, err)
	got, err = f.books.Get(f.ctx, book.ID)
	require.NoError(t, err)
	assert.True(t, f.clock.Now().Equal(got.UpdatedAt), "updatedAt after return: %v", got.UpdatedAt)
}
