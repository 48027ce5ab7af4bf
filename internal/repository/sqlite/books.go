package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/Shivanand-hulikatti/library-management/internal/model"
	"github.com/Shivanand-hulikatti/library-management/internal/repository"
)

const booksTable = "books"

var bookColumns = []any{
	"id", "title", "author", "isbn", "category",
	"total_copies", "available_copies", "created_at", "updated_at",
}

// BookRepository handles persistence for books.
type BookRepository struct {
	db *DB
}

func scanBook(row scanner) (*model.Book, error) {
	var (
		b                model.Book
		created, updated string
	)
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Category,
		&b.TotalCopies, &b.AvailableCopies, &created, &updated)
	if err != nil {
		return nil, err
	}
	if err := parseTimes(timeCol{created, &b.CreatedAt}, timeCol{updated, &b.UpdatedAt}); err != nil {
		return nil, err
	}
	return &b, nil
}

func bookRecord(b *model.Book) goqu.Record {
	return goqu.Record{
		"id":               b.ID,
		"title":            b.Title,
		"author":           b.Author,
		"isbn":             b.ISBN,
		"category":         b.Category,
		"total_copies":     b.TotalCopies,
		"available_copies": b.AvailableCopies,
		"created_at":       formatTime(b.CreatedAt),
		"updated_at":       formatTime(b.UpdatedAt),
	}
}

func (r *BookRepository) findOne(ctx context.Context, op string, where goqu.Ex) (*model.Book, error) {
	row, err := r.db.queryRow(ctx, op, from(booksTable).Select(bookColumns...).Where(where))
	if err != nil {
		return nil, err
	}
	b, err := scanBook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.BookNotFound()
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

func (r *BookRepository) list(ctx context.Context, op string, ds *goqu.SelectDataset) ([]model.Book, error) {
	rows, err := r.db.query(ctx, op, ds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []model.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

// FindByID returns a single book.
func (r *BookRepository) FindByID(ctx context.Context, id string) (*model.Book, error) {
	return r.findOne(ctx, "get book", goqu.Ex{"id": id})
}

// LockByID returns a single book. With one connection the surrounding
// transaction already excludes every other writer.
func (r *BookRepository) LockByID(ctx context.Context, id string) (*model.Book, error) {
	return r.findOne(ctx, "lock book", goqu.Ex{"id": id})
}

// FindByISBN returns the book holding isbn.
func (r *BookRepository) FindByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	return r.findOne(ctx, "get book by isbn", goqu.Ex{"isbn": isbn})
}

// Insert stores a new book.
func (r *BookRepository) Insert(ctx context.Context, b *model.Book) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := r.db.exec(ctx, "insert book", insertInto(booksTable).Rows(bookRecord(b)))
	return err
}

// Save overwrites a book's mutable fields.
func (r *BookRepository) Save(ctx context.Context, b *model.Book) error {
	if err := b.Validate(); err != nil {
		return err
	}
	rec := bookRecord(b)
	delete(rec, "id")
	delete(rec, "created_at")

	n, err := r.db.exec(ctx, "save book", update(booksTable).Set(rec).Where(goqu.Ex{"id": b.ID}))
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.BookNotFound()
	}
	return nil
}

// Delete removes a book.
func (r *BookRepository) Delete(ctx context.Context, id string) error {
	n, err := r.db.exec(ctx, "delete book", deleteFrom(booksTable).Where(goqu.Ex{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.BookNotFound()
	}
	return nil
}

// List returns one page of books, newest first, and the total count.
func (r *BookRepository) List(ctx context.Context, page model.Page) ([]model.Book, int, error) {
	total, err := r.db.count(ctx, "count books", from(booksTable))
	if err != nil {
		return nil, 0, err
	}
	books, err := r.list(ctx, "list books", from(booksTable).
		Select(bookColumns...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Asc()).
		Limit(uint(page.Size)).
		Offset(uint(page.Offset())))
	if err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// ListAvailable returns books with a copy on the shelf, by title.
func (r *BookRepository) ListAvailable(ctx context.Context) ([]model.Book, error) {
	return r.list(ctx, "list available books", from(booksTable).
		Select(bookColumns...).
		Where(goqu.C("available_copies").Gt(0)).
		Order(goqu.C("title").Asc(), goqu.C("id").Asc()))
}

// ListAll returns every book.
func (r *BookRepository) ListAll(ctx context.Context) ([]model.Book, error) {
	return r.list(ctx, "list all books", from(booksTable).Select(bookColumns...).Order(goqu.C("id").Asc()))
}

// DecrementAvailable takes one copy off the shelf if one is there.
func (r *BookRepository) DecrementAvailable(ctx context.Context, id string, at time.Time) (bool, error) {
	n, err := r.db.exec(ctx, "decrement available copies", update(booksTable).
		Set(goqu.Record{
			"available_copies": goqu.L("available_copies - 1"),
			"updated_at":       formatTime(at),
		}).
		Where(goqu.C("id").Eq(id), goqu.C("available_copies").Gt(0)))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IncrementAvailable puts one copy back, never beyond total_copies.
func (r *BookRepository) IncrementAvailable(ctx context.Context, id string, at time.Time) (bool, error) {
	n, err := r.db.exec(ctx, "increment available copies", update(booksTable).
		Set(goqu.Record{
			"available_copies": goqu.L("available_copies + 1"),
			"updated_at":       formatTime(at),
		}).
		Where(goqu.C("id").Eq(id), goqu.C("available_copies").Lt(goqu.C("total_copies"))))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetAvailable overwrites the counter. Used only by the reconciler.
func (r *BookRepository) SetAvailable(ctx context.Context, id string, available int, at time.Time) error {
	n, err := r.db.exec(ctx, "set available copies", update(booksTable).
		Set(goqu.Record{
			"available_copies": available,
			"updated_at":       formatTime(at),
		}).
		Where(goqu.C("id").Eq(id)))
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.BookNotFound()
	}
	return nil
}
