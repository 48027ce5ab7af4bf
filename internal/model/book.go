package model

import (
	"strings"
	"time"
	"unicode/utf8"

	liberrors "github.com/Shivanand-hulikatti/library-management/internal/errors"
)

const (
	MinCopies      = 1
	MaxCopies      = 1000
	MaxTitleLen    = 200
	MaxAuthorLen   = 100
	MaxCategoryLen = 50
)

// Categories lists the accepted book categories.
var Categories = []string{
	"Fiction", "Non-Fiction", "Science", "Technology", "History", "Biography",
	"Mystery", "Romance", "Fantasy", "Horror", "Self-Help", "Educational",
	"Reference", "Other",
}

// IsCategory reports whether c is one of Categories.
func IsCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Book is a catalog title with a number of physical copies.
type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	Category        string    `json:"category"`
	TotalCopies     int       `json:"totalCopies"`
	AvailableCopies int       `json:"availableCopies"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// NewBook builds a book with every copy available.
func NewBook(id string, req CreateBookRequest, now time.Time) (*Book, error) {
	b := &Book{
		ID:              id,
		Title:           strings.TrimSpace(req.Title),
		Author:          strings.TrimSpace(req.Author),
		ISBN:            strings.TrimSpace(req.ISBN),
		Category:        strings.TrimSpace(req.Category),
		TotalCopies:     req.TotalCopies,
		AvailableCopies: req.TotalCopies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks the book's field rules and the copy-count invariant
// 0 <= availableCopies <= totalCopies.
func (b *Book) Validate() error {
	switch {
	case b.Title == "":
		return liberrors.ValidationFailed("title", "is required")
	case utf8.RuneCountInString(b.Title) > MaxTitleLen:
		return liberrors.ValidationFailed("title", "must not exceed 200 characters")
	case b.Author == "":
		return liberrors.ValidationFailed("author", "is required")
	case utf8.RuneCountInString(b.Author) > MaxAuthorLen:
		return liberrors.ValidationFailed("author", "must not exceed 100 characters")
	case b.ISBN == "":
		return liberrors.ValidationFailed("isbn", "is required")
	case b.Category == "":
		return liberrors.ValidationFailed("category", "is required")
	case utf8.RuneCountInString(b.Category) > MaxCategoryLen:
		return liberrors.ValidationFailed("category", "must not exceed 50 characters")
	case b.TotalCopies < MinCopies || b.TotalCopies > MaxCopies:
		return liberrors.ValidationFailed("totalCopies", "must be between 1 and 1000")
	case b.AvailableCopies < 0:
		return liberrors.ValidationFailed("availableCopies", "cannot be negative")
	case b.AvailableCopies > b.TotalCopies:
		return liberrors.ValidationFailed("availableCopies", "cannot exceed total copies")
	}
	return nil
}

// IssuedCopies returns the number of copies currently on loan.
func (b *Book) IssuedCopies() int {
	return b.TotalCopies - b.AvailableCopies
}

// IsAvailable reports whether at least one copy can be issued.
func (b *Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}

// Resize changes the number of owned copies, keeping the issued count fixed.
func (b *Book) Resize(total int) error {
	available := total - b.IssuedCopies()
	if available < 0 {
		return liberrors.ValidationFailed("totalCopies", "cannot be reduced below currently issued copies")
	}
	b.TotalCopies = total
	b.AvailableCopies = available
	return nil
}

// Apply merges the non-nil fields of req into b and re-validates.
func (b *Book) Apply(req UpdateBookRequest, now time.Time) error {
	if req.Title != nil {
		b.Title = strings.TrimSpace(*req.Title)
	}
	if req.Author != nil {
		b.Author = strings.TrimSpace(*req.Author)
	}
	if req.ISBN != nil {
		b.ISBN = strings.TrimSpace(*req.ISBN)
	}
	if req.Category != nil {
		b.Category = strings.TrimSpace(*req.Category)
	}
	if req.TotalCopies != nil {
		if err := b.Resize(*req.TotalCopies); err != nil {
			return err
		}
	}
	b.UpdatedAt = now
	return b.Validate()
}

// BookView is a book with its derived fields, as returned to clients.
type BookView struct {
	Book
	IssuedCopies int  `json:"issuedCopies"`
	IsAvailable  bool `json:"isAvailable"`
}

// View returns b with its derived fields computed.
func (b Book) View() BookView {
	return BookView{Book: b, IssuedCopies: b.IssuedCopies(), IsAvailable: b.IsAvailable()}
}

// BookViews maps View over books, never returning nil.
func BookViews(books []Book) []BookView {
	out := make([]BookView, 0, len(books))
	for _, b := range books {
		out = append(out, b.View())
	}
	return out
}

// BookSummary identifies a book inside a loan response.
type BookSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}
