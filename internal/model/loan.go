package model

import (
	"math"
	"time"

	liberrors "github.com/Shivanand-hulikatti/library-management/internal/errors"
)

// LoanPeriod is the time between issue and due date.
const LoanPeriod = 14 * 24 * time.Hour

const day = 24 * time.Hour

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanIssued   LoanStatus = "issued"
	LoanReturned LoanStatus = "returned"
)

// Valid reports whether s is a known status.
func (s LoanStatus) Valid() bool {
	return s == LoanIssued || s == LoanReturned
}

// Loan records one copy of a book lent to one borrower.
// The only transition is issued -> returned; a returned loan is immutable.
type Loan struct {
	ID         string     `json:"id"`
	BookID     string     `json:"bookId"`
	UserID     string     `json:"userId"`
	IssueDate  time.Time  `json:"issueDate"`
	DueDate    time.Time  `json:"dueDate"`
	ReturnDate *time.Time `json:"returnDate"`
	Status     LoanStatus `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// NewLoan builds an issued loan starting at issueDate. A zero dueDate
// defaults to issueDate + LoanPeriod.
func NewLoan(id, bookID, userID string, issueDate, dueDate time.Time) (*Loan, error) {
	if dueDate.IsZero() {
		dueDate = issueDate.Add(LoanPeriod)
	}
	l := &Loan{
		ID:        id,
		BookID:    bookID,
		UserID:    userID,
		IssueDate: issueDate,
		DueDate:   dueDate,
		Status:    LoanIssued,
		CreatedAt: issueDate,
		UpdatedAt: issueDate,
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Validate checks references, status and date ordering.
func (l *Loan) Validate() error {
	switch {
	case l.BookID == "":
		return liberrors.ValidationFailed("bookId", "is required")
	case l.UserID == "":
		return liberrors.ValidationFailed("userId", "is required")
	case !l.Status.Valid():
		return liberrors.ValidationFailed("status", "must be either issued or returned")
	case !l.DueDate.After(l.IssueDate):
		return liberrors.ValidationFailed("dueDate", "must be after issueDate")
	case l.ReturnDate != nil && l.ReturnDate.Before(l.IssueDate):
		return liberrors.ValidationFailed("returnDate", "must not be before issueDate")
	case l.Status == LoanReturned && l.ReturnDate == nil:
		return liberrors.ValidationFailed("returnDate", "is required once returned")
	}
	return nil
}

// IsActive reports whether the loan is still issued.
func (l *Loan) IsActive() bool {
	return l.Status == LoanIssued
}

// MarkReturned performs the issued -> returned transition at time at.
func (l *Loan) MarkReturned(at time.Time) error {
	if l.Status == LoanReturned {
		return liberrors.ErrAlreadyReturned
	}
	if at.Before(l.IssueDate) {
		return liberrors.ValidationFailed("returnDate", "must not be before issueDate")
	}
	l.Status = LoanReturned
	l.ReturnDate = &at
	l.UpdatedAt = at
	return nil
}

// IsOverdue reports whether an issued loan is past its due date at now.
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.Status == LoanIssued && now.After(l.DueDate)
}

// DaysOverdue returns the whole days, rounded up, an issued loan is past due.
func (l *Loan) DaysOverdue(now time.Time) int {
	if !l.IsOverdue(now) {
		return 0
	}
	return ceilDays(now.Sub(l.DueDate))
}

// Duration returns the days, rounded up, between issue and return (or now).
func (l *Loan) Duration(now time.Time) int {
	end := now
	if l.ReturnDate != nil {
		end = *l.ReturnDate
	}
	d := end.Sub(l.IssueDate)
	if d < 0 {
		d = -d
	}
	return ceilDays(d)
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(float64(d) / float64(day)))
}

// LoanDetails is a loan joined with summaries of its book and borrower.
// Either summary is nil when the referenced record no longer exists.
type LoanDetails struct {
	Loan
	Book *BookSummary     `json:"book"`
	User *BorrowerSummary `json:"user"`
}

// LoanView is a loan with derived fields evaluated at a point in time.
type LoanView struct {
	LoanDetails
	IsOverdue   bool `json:"isOverdue"`
	DaysOverdue int  `json:"daysOverdue"`
	Duration    int  `json:"duration"`
}

// View evaluates the derived fields at now.
func (d LoanDetails) View(now time.Time) LoanView {
	return LoanView{
		LoanDetails: d,
		IsOverdue:   d.IsOverdue(now),
		DaysOverdue: d.DaysOverdue(now),
		Duration:    d.Duration(now),
	}
}

// LoanViews maps View over details, never returning nil.
func LoanViews(details []LoanDetails, now time.Time) []LoanView {
	out := make([]LoanView, 0, len(details))
	for _, d := range details {
		out = append(out, d.View(now))
	}
	return out
}
