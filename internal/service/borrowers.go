package service

import (
	"context"
	"log/slog"
	"time"

	liberrors "github.com/Shivanand-hulikatti/library-management/internal/errors"
	"github.com/Shivanand-hulikatti/library-management/internal/model"
	"github.com/Shivanand-hulikatti/library-management/internal/validation"
)

// BorrowerService manages registered borrowers.
type BorrowerService struct {
	tx        Transactor
	borrowers BorrowerStore
	loans     LoanStore

	log      *slog.Logger
	now      func() time.Time
	newID    func() string
	validate *validation.Validator
}

// NewBorrowerService constructs a BorrowerService.
func NewBorrowerService(st Stores, log *slog.Logger, opts ...Option) *BorrowerService {
	o := newOptions(opts)
	return &BorrowerService{
		tx:        st.Tx,
		borrowers: st.Borrowers,
		loans:     st.Loans,
		log:       log,
		now:       o.now,
		newID:     o.newID,
		validate:  o.validator,
	}
}

// Create registers a borrower. Email and student id must be unused.
func (s *BorrowerService) Create(ctx context.Context, req model.CreateBorrowerRequest) (*model.BorrowerView, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	b, err := model.NewBorrower(s.newID(), req, s.now())
	if err != nil {
		return nil, err
	}

	_, err = s.borrowers.FindConflicting(ctx, b.Email, b.StudentID, "")
	switch {
	case err == nil:
		return nil, liberrors.Conflictf(liberrors.ReasonDuplicate, "User with this email or student ID already exists")
	case !isNotFound(err):
		return nil, storageErr("create borrower", err)
	}

	if err := s.borrowers.Insert(ctx, b); err != nil {
		return nil, storageErr("create borrower", err)
	}

	s.log.InfoContext(ctx, "borrower created", slog.String("user_id", b.ID))
	v := b.View()
	return &v, nil
}

// Get returns one borrower.
func (s *BorrowerService) Get(ctx context.Context, id string) (*model.BorrowerView, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	b, err := s.borrowers.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr("get borrower", err)
	}
	v := b.View()
	return &v, nil
}

// List returns one page of borrowers, newest first.
func (s *BorrowerService) List(ctx context.Context, page model.Page) ([]model.BorrowerView, model.Pagination, error) {
	borrowers, total, err := s.borrowers.List(ctx, page)
	if err != nil {
		return nil, model.Pagination{}, storageErr("list borrowers", err)
	}
	return model.BorrowerViews(borrowers), model.NewPagination(page, total), nil
}

// Update applies a partial update, re-checking email and student id
// uniqueness when either changes.
func (s *BorrowerService) Update(ctx context.Context, id string, req model.UpdateBorrowerRequest) (*model.BorrowerView, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	var b *model.Borrower
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.borrowers.LockByID(ctx, id)
		if err != nil {
			return err
		}
		email, studentID := b.Email, b.StudentID
		if err := b.Apply(req, s.now()); err != nil {
			return err
		}

		if b.Email != email || b.StudentID != studentID {
			_, err := s.borrowers.FindConflicting(ctx, b.Email, b.StudentID, id)
			switch {
			case err == nil:
				return liberrors.Conflictf(liberrors.ReasonDuplicate, "Email or Student ID already exists for another user")
			case !isNotFound(err):
				return err
			}
		}
		return s.borrowers.Save(ctx, b)
	})
	if err != nil {
		return nil, storageErr("update borrower", err)
	}

	s.log.InfoContext(ctx, "borrower updated", slog.String("user_id", id))
	v := b.View()
	return &v, nil
}

// Delete removes a borrower that has no issued loans.
func (s *BorrowerService) Delete(ctx context.Context, id string) error {
	if err := requireID("id", id); err != nil {
		return err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.borrowers.LockByID(ctx, id); err != nil {
			return err
		}
		active, err := s.loans.CountActiveByUser(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return liberrors.Conflictf(liberrors.ReasonActiveLoans, "Cannot delete user with active book assignments")
		}
		return s.borrowers.Delete(ctx, id)
	})
	if err != nil {
		return storageErr("delete borrower", err)
	}

	s.log.InfoContext(ctx, "borrower deleted", slog.String("user_id", id))
	return nil
}
