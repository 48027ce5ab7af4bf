package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	liberrors "github.com/Shivanand-hulikatti/library-management/internal/errors"
)

// Borrower is a registered library user.
type Borrower struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	StudentID string    `json:"studentId"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NormalizeName trims s and capitalises each word.
func NormalizeName(s string) string {
	// A Caser keeps state, so one is built per call.
	return cases.Title(language.English).String(strings.TrimSpace(s))
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeStudentID trims and upper-cases a student id.
func NormalizeStudentID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NewBorrower builds a borrower with normalized fields.
func NewBorrower(id string, req CreateBorrowerRequest, now time.Time) (*Borrower, error) {
	b := &Borrower{
		ID:        id,
		Name:      NormalizeName(req.Name),
		Email:     NormalizeEmail(req.Email),
		StudentID: NormalizeStudentID(req.StudentID),
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Apply merges the non-nil fields of req into b and re-validates.
func (b *Borrower) Apply(req UpdateBorrowerRequest, now time.Time) error {
	if req.Name != nil {
		b.Name = NormalizeName(*req.Name)
	}
	if req.Email != nil {
		b.Email = NormalizeEmail(*req.Email)
	}
	if req.StudentID != nil {
		b.StudentID = NormalizeStudentID(*req.StudentID)
	}
	if req.Phone != nil {
		b.Phone = strings.TrimSpace(*req.Phone)
	}
	b.UpdatedAt = now
	return b.Validate()
}

// Validate checks required fields and lengths. Format rules (email, phone)
// are enforced at the request boundary.
func (b *Borrower) Validate() error {
	switch {
	case !runesBetween(b.Name, 2, 100):
		return liberrors.ValidationFailed("name", "must be between 2 and 100 characters")
	case b.Email == "":
		return liberrors.ValidationFailed("email", "is required")
	case !runesBetween(b.StudentID, 3, 20):
		return liberrors.ValidationFailed("studentId", "must be between 3 and 20 characters")
	case b.Phone == "":
		return liberrors.ValidationFailed("phone", "is required")
	}
	return nil
}

// FullContact returns "Name (email, phone)".
func (b Borrower) FullContact() string {
	return fmt.Sprintf("%s (%s, %s)", b.Name, b.Email, b.Phone)
}

// BorrowerView is a borrower with derived fields.
type BorrowerView struct {
	Borrower
	FullContact string `json:"fullContact"`
}

// View returns b with derived fields computed.
func (b Borrower) View() BorrowerView {
	return BorrowerView{Borrower: b, FullContact: b.FullContact()}
}

// BorrowerViews maps View over borrowers, never returning nil.
func BorrowerViews(borrowers []Borrower) []BorrowerView {
	out := make([]BorrowerView, 0, len(borrowers))
	for _, b := range borrowers {
		out = append(out, b.View())
	}
	return out
}

// BorrowerSummary identifies a borrower inside a loan response.
type BorrowerSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	StudentID string `json:"studentId"`
}

func runesBetween(s string, lo, hi int) bool {
	n := utf8.RuneCountInString(s)
	return n >= lo && n <= hi
}
