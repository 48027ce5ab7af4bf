// Package model defines the core domain types for the library loan system.
package model

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page selects one page of a listing. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

// NewPage returns a page with out-of-range values replaced by defaults.
func NewPage(number, size int) Page {
	if number < 1 {
		number = DefaultPage
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Pagination describes a page of results relative to the whole listing.
type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalItems   int  `json:"totalItems"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNextPage  bool `json:"hasNextPage"`
	HasPrevPage  bool `json:"hasPrevPage"`
	NextPage     *int `json:"nextPage"`
	PrevPage     *int `json:"prevPage"`
}

// NewPagination computes pagination metadata for total items.
func NewPagination(p Page, total int) Pagination {
	totalPages := 0
	if total > 0 {
		totalPages = (total + p.Size - 1) / p.Size
	}
	pg := Pagination{
		CurrentPage:  p.Number,
		TotalPages:   totalPages,
		TotalItems:   total,
		ItemsPerPage: p.Size,
		HasNextPage:  p.Number < totalPages,
		HasPrevPage:  p.Number > 1,
	}
	if pg.HasNextPage {
		next := p.Number + 1
		pg.NextPage = &next
	}
	if pg.HasPrevPage {
		prev := p.Number - 1
		pg.PrevPage = &prev
	}
	return pg
}

// CreateBookRequest is the payload for adding a title to the catalog.
type CreateBookRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Author      string `json:"author" validate:"required,min=1,max=100"`
	ISBN        string `json:"isbn" validate:"required,isbn_format"`
	TotalCopies int    `json:"totalCopies" validate:"required,min=1,max=1000"`
	Category    string `json:"category" validate:"required,book_category"`
}

// UpdateBookRequest is the payload for a partial book update.
// Nil fields are left unchanged.
type UpdateBookRequest struct {
	Title       *string `json:"title" validate:"omitnil,min=1,max=200"`
	Author      *string `json:"author" validate:"omitnil,min=1,max=100"`
	ISBN        *string `json:"isbn" validate:"omitnil,isbn_format"`
	TotalCopies *int    `json:"totalCopies" validate:"omitnil,min=1,max=1000"`
	Category    *string `json:"category" validate:"omitnil,book_category"`
}

// CreateBorrowerRequest is the payload for registering a borrower.
type CreateBorrowerRequest struct {
	Name      string `json:"name" validate:"required,min=2,max=100,alphaspace"`
	Email     string `json:"email" validate:"required,email"`
	StudentID string `json:"studentId" validate:"required,min=3,max=20,alphanum"`
	Phone     string `json:"phone" validate:"required,phone"`
}

// UpdateBorrowerRequest is the payload for a partial borrower update.
type UpdateBorrowerRequest struct {
	Name      *string `json:"name" validate:"omitnil,min=2,max=100,alphaspace"`
	Email     *string `json:"email" validate:"omitnil,email"`
	StudentID *string `json:"studentId" validate:"omitnil,min=3,max=20,alphanum"`
	Phone     *string `json:"phone" validate:"omitnil,phone"`
}

// IssueLoanRequest is the payload for lending a book to a borrower.
type IssueLoanRequest struct {
	BookID string `json:"bookId" validate:"required,uuid"`
	UserID string `json:"userId" validate:"required,uuid"`
}
