package service

import (
	"context"
	"log/slog"
	"time"

	liberrors "github.com/Shivanand-hulikatti/library-management/internal/errors"
	"github.com/Shivanand-hulikatti/library-management/internal/model"
	"github.com/Shivanand-hulikatti/library-management/internal/validation"
)

// BookService manages the catalog.
type BookService struct {
	tx    Transactor
	books BookStore
	loans LoanStore

	log      *slog.Logger
	now      func() time.Time
	newID    func() string
	validate *validation.Validator
}

// NewBookService constructs a BookService.
func NewBookService(st Stores, log *slog.Logger, opts ...Option) *BookService {
	o := newOptions(opts)
	return &BookService{
		tx:       st.Tx,
		books:    st.Books,
		loans:    st.Loans,
		log:      log,
		now:      o.now,
		newID:    o.newID,
		validate: o.validator,
	}
}

func duplicateISBN() error {
	return liberrors.Conflictf(liberrors.ReasonDuplicate, "Book with this ISBN already exists")
}

// Create adds a title with every copy available.
func (s *BookService) Create(ctx context.Context, req model.CreateBookRequest) (*model.BookView, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	_, err := s.books.FindByISBN(ctx, req.ISBN)
	switch {
	case err == nil:
		return nil, duplicateISBN()
	case !isNotFound(err):
		return nil, storageErr("create book", err)
	}

	book, err := model.NewBook(s.newID(), req, s.now())
	if err != nil {
		return nil, err
	}
	// The unique index still decides a race between two creates.
	if err := s.books.Insert(ctx, book); err != nil {
		return nil, storageErr("create book", err)
	}

	s.log.InfoContext(ctx, "book created", slog.String("book_id", book.ID), slog.String("isbn", book.ISBN))
	v := book.View()
	return &v, nil
}

// Get returns one book.
func (s *BookService) Get(ctx context.Context, id string) (*model.BookView, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	book, err := s.books.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr("get book", err)
	}
	v := book.View()
	return &v, nil
}

// List returns one page of the catalog, newest first.
func (s *BookService) List(ctx context.Context, page model.Page) ([]model.BookView, model.Pagination, error) {
	books, total, err := s.books.List(ctx, page)
	if err != nil {
		return nil, model.Pagination{}, storageErr("list books", err)
	}
	return model.BookViews(books), model.NewPagination(page, total), nil
}

// Available returns books with at least one copy on the shelf, by title.
func (s *BookService) Available(ctx context.Context) ([]model.BookView, error) {
	books, err := s.books.ListAvailable(ctx)
	if err != nil {
		return nil, storageErr("list available books", err)
	}
	return model.BookViews(books), nil
}

// Update applies a partial update. Changing totalCopies keeps the number of
// issued copies fixed and fails if fewer copies than are issued would remain.
func (s *BookService) Update(ctx context.Context, id string, req model.UpdateBookRequest) (*model.BookView, error) {
	if err := requireID("id", id); err != nil {
		return nil, err
	}
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	var book *model.Book
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		book, err = s.books.LockByID(ctx, id)
		if err != nil {
			return err
		}

		if req.ISBN != nil && *req.ISBN != book.ISBN {
			other, err := s.books.FindByISBN(ctx, *req.ISBN)
			switch {
			case err == nil && other.ID != id:
				return duplicateISBN()
			case err != nil && !isNotFound(err):
				return err
			}
		}

		if req.TotalCopies != nil && *req.TotalCopies < book.IssuedCopies() {
			return liberrors.ValidationFailed("totalCopies", "cannot be reduced below currently issued copies").
				WithMessage("Cannot reduce total copies below currently issued books")
		}
		if err := book.Apply(req, s.now()); err != nil {
			return err
		}
		return s.books.Save(ctx, book)
	})
	if err != nil {
		return nil, storageErr("update book", err)
	}

	s.log.InfoContext(ctx, "book updated", slog.String("book_id", id))
	v := book.View()
	return &v, nil
}

// Delete removes a book that has no issued loans.
func (s *BookService) Delete(ctx context.Context, id string) error {
	if err := requireID("id", id); err != nil {
		return err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.books.LockByID(ctx, id); err != nil {
			return err
		}
		active, err := s.loans.CountActiveByBook(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return liberrors.Conflictf(liberrors.ReasonActiveLoans, "Cannot delete book with active assignments")
		}
		return s.books.Delete(ctx, id)
	})
	if err != nil {
		return storageErr("delete book", err)
	}

	s.log.InfoContext(ctx, "book deleted", slog.String("book_id", id))
	return nil
}
