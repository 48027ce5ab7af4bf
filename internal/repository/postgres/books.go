package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/library-management/internal/model"
	"github.com/Shivanand-hulikatti/library-management/internal/repository"
)

const bookColumns = `id, title, author, isbn, category, total_copies, available_copies, created_at, updated_at`

// BookRepository handles persistence for books.
type BookRepository struct {
	db *DB
}

func scanBook(row pgx.Row) (*model.Book, error) {
	var b model.Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Category,
		&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBooks(rows pgx.Rows) ([]model.Book, error) {
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

func (r *BookRepository) findOne(ctx context.Context, op, query string, arg any) (*model.Book, error) {
	b, err := scanBook(r.db.q(ctx).QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.BookNotFound()
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

// FindByID returns a single book.
func (r *BookRepository) FindByID(ctx context.Context, id string) (*model.Book, error) {
	return r.findOne(ctx, "get book", `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
}

// LockByID acquires an exclusive row lock on the book for the rest of the
// transaction. Other writers of the same row block until it ends, which is
// what serialises concurrent issues of one title.
func (r *BookRepository) LockByID(ctx context.Context, id string) (*model.Book, error) {
	return r.findOne(ctx, "lock book", `SELECT `+bookColumns+` FROM books WHERE id = $1 FOR UPDATE`, id)
}

// FindByISBN returns the book holding isbn.
func (r *BookRepository) FindByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	return r.findOne(ctx, "get book by isbn", `SELECT `+bookColumns+` FROM books WHERE isbn = $1`, isbn)
}

// Insert stores a new book.
func (r *BookRepository) Insert(ctx context.Context, b *model.Book) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := r.db.q(ctx).Exec(ctx,
		`INSERT INTO books (`+bookColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.Title, b.Author, b.ISBN, b.Category, b.TotalCopies, b.AvailableCopies, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return mapWriteErr("insert book", err)
	}
	return nil
}

// Save overwrites a book's mutable fields.
func (r *BookRepository) Save(ctx context.Context, b *model.Book) error {
	if err := b.Validate(); err != nil {
		return err
	}
	tag, err := r.db.q(ctx).Exec(ctx,
		`UPDATE books
		 SET title = $2, author = $3, isbn = $4, category = $5,
		     total_copies = $6, available_copies = $7, updated_at = $8
		 WHERE id = $1`,
		b.ID, b.Title, b.Author, b.ISBN, b.Category, b.TotalCopies, b.AvailableCopies, b.UpdatedAt,
	)
	if err != nil {
		return mapWriteErr("save book", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.BookNotFound()
	}
	return nil
}

// Delete removes a book.
func (r *BookRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.BookNotFound()
	}
	return nil
}

// List returns one page of books ordered by creation time descending, and
// the total number of books.
func (r *BookRepository) List(ctx context.Context, page model.Page) ([]model.Book, int, error) {
	var total int
	if err := r.db.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM books`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	rows, err := r.db.q(ctx).Query(ctx,
		`SELECT `+bookColumns+`
		 FROM books
		 ORDER BY created_at DESC, id
		 LIMIT $1 OFFSET $2`,
		page.Size, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	books, err := collectBooks(rows)
	if err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// ListAvailable returns books with a copy on the shelf, by title.
func (r *BookRepository) ListAvailable(ctx context.Context) ([]model.Book, error) {
	rows, err := r.db.q(ctx).Query(ctx,
		`SELECT `+bookColumns+` FROM books WHERE available_copies > 0 ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("list available books: %w", err)
	}
	return collectBooks(rows)
}

// ListAll returns every book.
func (r *BookRepository) ListAll(ctx context.Context) ([]model.Book, error) {
	rows, err := r.db.q(ctx).Query(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list all books: %w", err)
	}
	return collectBooks(rows)
}

// DecrementAvailable takes one copy off the shelf. The WHERE clause makes the
// check and the write a single atomic step.
func (r *BookRepository) DecrementAvailable(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.db.q(ctx).Exec(ctx,
		`UPDATE books
		 SET available_copies = available_copies - 1, updated_at = $2
		 WHERE id = $1 AND available_copies > 0`,
		id, at,
	)
	if err != nil {
		return false, fmt.Errorf("decrement available copies: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementAvailable puts one copy back, never beyond total_copies.
func (r *BookRepository) IncrementAvailable(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.db.q(ctx).Exec(ctx,
		`UPDATE books
		 SET available_copies = available_copies + 1, updated_at = $2
		 WHERE id = $1 AND available_copies < total_copies`,
		id, at,
	)
	if err != nil {
		return false, fmt.Errorf("increment available copies: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetAvailable overwrites the counter. Used only by the reconciler.
func (r *BookRepository) SetAvailable(ctx context.Context, id string, available int, at time.Time) error {
	tag, err := r.db.q(ctx).Exec(ctx,
		`UPDATE books SET available_copies = $2, updated_at = $3 WHERE id = $1`,
		id, available, at,
	)
	if err != nil {
		return mapWriteErr("set available copies", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.BookNotFound()
	}
	return nil
}
