package repotest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	liberrors "github.com/Shivanand-hulikatti/library-management/internal/errors"
	"github.com/Shivanand-hulikatti/library-management/internal/logger"
	"github.com/Shivanand-hulikatti/library-management/internal/model"
	"github.com/Shivanand-hulikatti/library-management/internal/service"
)

// race runs fn from n goroutines released together and returns their errors.
func race(n int, fn func(i int) error) []error {
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

// tally counts nil errors and errors matching target. Anything else fails t.
func tally(t *testing.T, errs []error, target error) (ok, matched int) {
	t.Helper()
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case liberrors.Is(err, target):
			matched++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	return ok, matched
}

func testConcurrency(t *testing.T, newStores Factory) {
	ctx := context.Background()
	st := newStores(t)
	clock := func() time.Time { return Base.Add(time.Hour) }
	loans := service.NewLoanService(st, logger.Discard(), service.WithClock(clock))

	newBorrowers := func(n int) []*model.Borrower {
		out := make([]*model.Borrower, n)
		for i := range out {
			out[i] = NewBorrower(Base)
			require.NoError(t, st.Borrowers.Insert(ctx, out[i]))
		}
		return out
	}
	available := func(id string) int {
		b, err := st.Books.FindByID(ctx, id)
		require.NoError(t, err)
		return b.AvailableCopies
	}

	t.Run("LastCopy", func(t *testing.T) {
		book := NewBook(1, Base)
		require.NoError(t, st.Books.Insert(ctx, book))
		const n = 8
		users := newBorrowers(n)

		errs := race(n, func(i int) error {
			_, err := loans.IssueLoan(ctx, book.ID, users[i].ID)
			return err
		})

		ok, conflicts := tally(t, errs, liberrors.ErrNoCopiesAvailable)
		assert.Equal(t, 1, ok)
		assert.Equal(t, n-1, conflicts)
		assert.Equal(t, 0, available(book.ID))
		active, err := st.Loans.CountActiveByBook(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, active)
	})

	t.Run("SamePair", func(t *testing.T) {
		book := NewBook(3, Base)
		require.NoError(t, st.Books.Insert(ctx, book))
		user := newBorrowers(1)[0]

		errs := race(2, func(int) error {
			_, err := loans.IssueLoan(ctx, book.ID, user.ID)
			return err
		})

		ok, dup := tally(t, errs, liberrors.ErrAlreadyBorrowed)
		assert.Equal(t, 1, ok)
		assert.Equal(t, 1, dup)
		assert.Equal(t, 2, available(book.ID))
	})

	t.Run("SamePairInsert", func(t *testing.T) {
		book := NewBook(3, Base)
		require.NoError(t, st.Books.Insert(ctx, book))
		user := newBorrowers(1)[0]

		// no book lock here, so only the unique index separates the two
		errs := race(2, func(int) error {
			return st.Tx.WithinTx(ctx, func(ctx context.Context) error {
				loan, err := model.NewLoan(uuid.NewString(), book.ID, user.ID, Base, time.Time{})
				if err != nil {
					return err
				}
				return st.Loans.InsertUnique(ctx, loan)
			})
		})

		ok, dup := tally(t, errs, liberrors.ErrAlreadyBorrowed)
		assert.Equal(t, 1, ok)
		assert.Equal(t, 1, dup)
	})

	t.Run("SameReturn", func(t *testing.T) {
		book := NewBook(1, Base)
		require.NoError(t, st.Books.Insert(ctx, book))
		user := newBorrowers(1)[0]
		loan, err := loans.IssueLoan(ctx, book.ID, user.ID)
		require.NoError(t, err)

		errs := race(4, func(int) error {
			_, err := loans.ReturnLoan(ctx, loan.ID)
			return err
		})

		ok, returned := tally(t, errs, liberrors.ErrAlreadyReturned)
		assert.Equal(t, 1, ok)
		assert.Equal(t, 3, returned)
		assert.Equal(t, 1, available(book.ID))
	})
}
