package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	liberrors "github.com/Shivanand-hulikatti/library-management/internal/errors"
	"github.com/Shivanand-hulikatti/library-management/internal/model"
)

func TestBorrowerService_Create(t *testing.T) {
	f := newFixture(t)

	b, err := f.borrowers.Create(f.ctx, model.CreateBorrowerRequest{
		Name:      " ada lovelace ",
		Email:     "Ada@Example.COM",
		StudentID: "s1001",
		Phone:     "+15551234567",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", b.Name)
	assert.Equal(t, "ada@example.com", b.Email)
	assert.Equal(t, "S1001", b.StudentID)
	assert.Equal(t, "Ada Lovelace (ada@example.com, +15551234567)", b.FullContact)

	for _, req := range []model.CreateBorrowerRequest{
		{Name: "Other Person", Email: "ADA@example.com", StudentID: "S2000", Phone: "+15550000000"},
		{Name: "Other Person", Email: "other@example.com", StudentID: "S1001", Phone: "+15550000000"},
	} {
		_, err := f.borrowers.Create(f.ctx, req)
		require.ErrorIs(t, err, liberrors.Conflict(liberrors.ReasonDuplicate))
		var domainErr *liberrors.Error
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "User with this email or student ID already exists", domainErr.Message)
	}

	_, err = f.borrowers.Create(f.ctx, model.CreateBorrowerRequest{
		Name: "R2D2", Email: "nope", StudentID: "S-1", Phone: "12",
	})
	require.ErrorIs(t, err, liberrors.ErrValidation)
	var domainErr *liberrors.Error
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, map[string]string{
		"name":      "must contain only letters and spaces",
		"email":     "must be a valid email address",
		"studentId": "must contain only letters and numbers",
		"phone":     "must be a valid phone number",
	}, domainErr.Details)
}

func TestBorrowerService_Update(t *testing.T) {
	f := newFixture(t)
	ada := f.borrower(t, "ada@example.com", "S1001")
	f.borrower(t, "grace@example.com", "S1002")

	taken := "grace@example.com"
	_, err := f.borrowers.Update(f.ctx, ada.ID, model.UpdateBorrowerRequest{Email: &taken})
	require.ErrorIs(t, err, liberrors.Conflict(liberrors.ReasonDuplicate))
	var domainErr *liberrors.Error
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "Email or Student ID already exists for another user", domainErr.Message)

	// re-submitting your own values is not a conflict
	same := "ADA@example.com"
	f.clock.Advance(time.Minute)
	updated, err := f.borrowers.Update(f.ctx, ada.ID, model.UpdateBorrowerRequest{Email: &same})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", updated.Email)
	assert.True(t, f.clock.Now().Equal(updated.UpdatedAt))

	phone := "+15557654321"
	updated, err = f.borrowers.Update(f.ctx, ada.ID, model.UpdateBorrowerRequest{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, updated.Phone)

	got, err := f.borrowers.Get(f.ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, phone, got.Phone)

	_, err = f.borrowers.Update(f.ctx, uuid.NewString(), model.UpdateBorrowerRequest{Phone: &phone})
	assert.ErrorIs(t, err, liberrors.NotFound("User"))
}

func TestBorrowerService_ListAndDelete(t *testing.T) {
	f := newFixture(t)
	ada := f.borrower(t, "ada@example.com", "S1001")
	f.clock.Advance(time.Second)
	grace := f.borrower(t, "grace@example.com", "S1002")

	list, pagination, err := f.borrowers.List(f.ctx, model.NewPage(1, 1))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, grace.ID, list[0].ID)
	assert.True(t, pagination.HasNextPage)
	require.NotNil(t, pagination.NextPage)
	assert.Equal(t, 2, *pagination.NextPage)

	book := f.book(t, "9780134190440", 1)
	loan, err := f.loans.IssueLoan(f.ctx, book.ID, ada.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.borrowers.Delete(f.ctx, ada.ID), liberrors.ErrActiveLoans)

	_, err = f.loans.ReturnLoan(f.ctx, loan.ID)
	require.NoError(t, err)
	require.NoError(t, f.borrowers.Delete(f.ctx, ada.ID))

	_, err = f.borrowers.Get(f.ctx, ada.ID)
	assert.ErrorIs(t, err, liberrors.ErrNotFound)
	assert.ErrorIs(t, f.borrowers.Delete(f.ctx, ada.ID), liberrors.ErrNotFound)
}
