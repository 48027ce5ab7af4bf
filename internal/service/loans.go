package service

import (
	"context"
	"log/slog"
	"time"

	liberrors "github.com/Shivanand-hulikatti/library-management/internal/errors"
	"github.com/Shivanand-hulikatti/library-management/internal/model"
	"github.com/Shivanand-hulikatti/library-management/internal/validation"
)

// LoanService issues and returns books, keeping each book's available-copy
// counter in step with its issued loans.
type LoanService struct {
	tx        Transactor
	books     BookStore
	borrowers BorrowerStore
	loans     LoanStore

	log      *slog.Logger
	now      func() time.Time
	newID    func() string
	validate *validation.Validator
}

// NewLoanService constructs a LoanService over one backend's stores.
func NewLoanService(st Stores, log *slog.Logger, opts ...Option) *LoanService {
	o := newOptions(opts)
	return &LoanService{
		tx:        st.Tx,
		books:     st.Books,
		borrowers: st.Borrowers,
		loans:     st.Loans,
		log:       log,
		now:       o.now,
		newID:     o.newID,
		validate:  o.validator,
	}
}

// Now returns the service clock's current time.
func (s *LoanService) Now() time.Time {
	return s.now()
}

// IssueLoan lends one copy of bookID to userID.
//
// Preconditions are checked in order: the book exists, it has a copy
// available, the borrower exists, and the borrower has no issued loan for the
// book. The loan insert and the counter decrement commit together or not at
// all. The book row is locked for the whole transaction, so concurrent issues
// of the same book serialise and at most availableCopies of them succeed.
func (s *LoanService) IssueLoan(ctx context.Context, bookID, userID string) (*model.LoanView, error) {
	if err := s.validate.Validate(model.IssueLoanRequest{BookID: bookID, UserID: userID}); err != nil {
		return nil, err
	}

	now := s.now()
	var loan *model.Loan
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		book, err := s.books.LockByID(ctx, bookID)
		if err != nil {
			return err
		}
		if !book.IsAvailable() {
			return liberrors.Conflictf(liberrors.ReasonNoCopiesAvailable, "Book is not available for issue")
		}

		if _, err := s.borrowers.LockByID(ctx, userID); err != nil {
			return err
		}

		_, err = s.loans.FindActiveByBookAndUser(ctx, bookID, userID)
		switch {
		case err == nil:
			return liberrors.Conflictf(liberrors.ReasonAlreadyBorrowed, "User has already borrowed this book")
		case !isNotFound(err):
			return err
		}

		loan, err = model.NewLoan(s.newID(), bookID, userID, now, time.Time{})
		if err != nil {
			return err
		}
		if err := s.loans.InsertUnique(ctx, loan); err != nil {
			return err
		}

		ok, err := s.books.DecrementAvailable(ctx, bookID, now)
		if err != nil {
			return err
		}
		if !ok {
			return liberrors.Conflictf(liberrors.ReasonNoCopiesAvailable, "Book is not available for issue")
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("issue loan", err)
	}

	s.log.InfoContext(ctx, "book issued",
		slog.String("loan_id", loan.ID),
		slog.String("book_id", bookID),
		slog.String("user_id", userID),
		slog.Time("due_date", loan.DueDate),
	)

	return s.view(ctx, loan.ID, "issue loan")
}

// ReturnLoan closes an issued loan and puts its copy back.
//
// The status transition and the counter increment share one transaction. A
// book that no longer exists is logged and tolerated. A book that is already
// fully available is logged as inventory drift and left to the Reconciler;
// the return itself still succeeds.
func (s *LoanService) ReturnLoan(ctx context.Context, loanID string) (*model.LoanView, error) {
	if err := requireID("id", loanID); err != nil {
		return nil, err
	}

	now := s.now()
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		loan, err := s.loans.FindByID(ctx, loanID)
		if err != nil {
			return err
		}
		if err := loan.MarkReturned(now); err != nil {
			if liberrors.Is(err, liberrors.ErrAlreadyReturned) {
				return alreadyReturned()
			}
			return err
		}

		ok, err := s.loans.MarkReturned(ctx, loanID, now)
		if err != nil {
			return err
		}
		if !ok {
			return alreadyReturned()
		}

		ok, err = s.books.IncrementAvailable(ctx, loan.BookID, now)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		_, err = s.books.FindByID(ctx, loan.BookID)
		switch {
		case isNotFound(err):
			s.log.WarnContext(ctx, "returned loan references a missing book",
				slog.String("loan_id", loanID),
				slog.String("book_id", loan.BookID),
			)
			return nil
		case err != nil:
			return err
		default:
			s.log.ErrorContext(ctx, "inventory drift: book already fully available on return",
				slog.String("loan_id", loanID),
				slog.String("book_id", loan.BookID),
			)
			return nil
		}
	})
	if err != nil {
		return nil, storageErr("return loan", err)
	}

	s.log.InfoContext(ctx, "book returned", slog.String("loan_id", loanID))

	return s.view(ctx, loanID, "return loan")
}

func alreadyReturned() error {
	return liberrors.Conflictf(liberrors.ReasonAlreadyReturned, "Book has already been returned")
}

// Get returns one loan with its book and borrower summaries.
func (s *LoanService) Get(ctx context.Context, loanID string) (*model.LoanView, error) {
	if err := requireID("id", loanID); err != nil {
		return nil, err
	}
	return s.view(ctx, loanID, "get loan")
}

func (s *LoanService) view(ctx context.Context, loanID, op string) (*model.LoanView, error) {
	details, err := s.loans.FindDetails(ctx, loanID)
	if err != nil {
		return nil, storageErr(op, err)
	}
	v := details.View(s.now())
	return &v, nil
}

// AllLoans returns every loan, newest first.
func (s *LoanService) AllLoans(ctx context.Context) ([]model.LoanView, error) {
	details, err := s.loans.ListAll(ctx)
	if err != nil {
		return nil, storageErr("list loans", err)
	}
	return model.LoanViews(details, s.now()), nil
}

// ActiveLoans returns the issued loans, most recently issued first.
func (s *LoanService) ActiveLoans(ctx context.Context) ([]model.LoanView, error) {
	details, err := s.loans.ListActive(ctx)
	if err != nil {
		return nil, storageErr("list active loans", err)
	}
	return model.LoanViews(details, s.now()), nil
}

// LoanHistory returns one page of all loans, newest first.
func (s *LoanService) LoanHistory(ctx context.Context, page model.Page) ([]model.LoanView, model.Pagination, error) {
	details, total, err := s.loans.FindAll(ctx, page)
	if err != nil {
		return nil, model.Pagination{}, storageErr("loan history", err)
	}
	return model.LoanViews(details, s.now()), model.NewPagination(page, total), nil
}

// OverdueLoans returns issued loans past their due date, oldest due first.
func (s *LoanService) OverdueLoans(ctx context.Context) ([]model.LoanView, error) {
	now := s.now()
	details, err := s.loans.ListOverdue(ctx, now)
	if err != nil {
		return nil, storageErr("list overdue loans", err)
	}
	return model.LoanViews(details, now), nil
}

// BorrowerLoans returns every loan of one borrower, newest first.
func (s *LoanService) BorrowerLoans(ctx context.Context, userID string) ([]model.LoanView, error) {
	if err := requireID("id", userID); err != nil {
		return nil, err
	}
	if _, err := s.borrowers.FindByID(ctx, userID); err != nil {
		return nil, storageErr("borrower loans", err)
	}
	details, err := s.loans.ListByUser(ctx, userID)
	if err != nil {
		return nil, storageErr("borrower loans", err)
	}
	return model.LoanViews(details, s.now()), nil
}
