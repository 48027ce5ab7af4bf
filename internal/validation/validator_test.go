package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	liberrors "github.com/Shivanand-hulikatti/library-management/internal/errors"
	"github.com/Shivanand-hulikatti/library-management/internal/model"
	"github.com/Shivanand-hulikatti/library-management/internal/validation"
)

func validBook() model.CreateBookRequest {
	return model.CreateBookRequest{
		Title:       "The Pragmatic Programmer",
		Author:      "Andy Hunt",
		ISBN:        "978-0-201-61622-4",
		TotalCopies: 2,
		Category:    "Technology",
	}
}

func details(t *testing.T, err error) map[string]string {
	t.Helper()
	var domainErr *liberrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, liberrors.KindValidation, domainErr.Kind)
	d, ok := domainErr.Details.(map[string]string)
	require.True(t, ok)
	return d
}

func TestValidator_ValidBook(t *testing.T) {
	assert.NoError(t, validation.New().Validate(validBook()))
}

func TestValidator_BookErrorsUseJSONNames(t *testing.T) {
	req := validBook()
	req.ISBN = "12345"
	req.TotalCopies = 1001
	req.Category = "Cooking"

	d := details(t, validation.New().Validate(req))

	assert.Equal(t, "must be a valid ISBN", d["isbn"])
	assert.Equal(t, "must not exceed 1000", d["totalCopies"])
	assert.Contains(t, d["category"], "must be one of: Fiction")
	assert.NotContains(t, d, "title")
}

func TestValidator_PartialUpdateSkipsNilFields(t *testing.T) {
	v := validation.New()
	assert.NoError(t, v.Validate(model.UpdateBookRequest{}))

	zero := 0
	d := details(t, v.Validate(model.UpdateBookRequest{TotalCopies: &zero}))
	assert.Equal(t, "must be at least 1", d["totalCopies"])
}

func TestValidator_Borrower(t *testing.T) {
	v := validation.New()
	ok := model.CreateBorrowerRequest{
		Name: "Grace Hopper", Email: "grace@navy.mil", StudentID: "CS2024", Phone: "+12025550123",
	}
	require.NoError(t, v.Validate(ok))

	bad := ok
	bad.Name = "Grace H0pper"
	bad.StudentID = "ab"
	bad.Phone = "555-0123"
	d := details(t, v.Validate(bad))

	assert.Equal(t, "must contain only letters and spaces", d["name"])
	assert.Equal(t, "must be at least 3 characters", d["studentId"])
	assert.Equal(t, "must be a valid phone number", d["phone"])
}

func TestValidator_IssueRequiresUUIDs(t *testing.T) {
	d := details(t, validation.New().Validate(model.IssueLoanRequest{BookID: "abc"}))

	assert.Equal(t, "must be a valid UUID", d["bookId"])
	assert.Equal(t, "is required", d["userId"])
}

func TestIsISBN(t *testing.T) {
	tests := []struct {
		isbn  string
		valid bool
	}{
		{"0306406152", true},
		{"030640615X", true},
		{"9780306406157", true},
		{"978-0-306-40615-7", true},
		{"978 0 306 40615 7", true},
		{"0-306-40615-2", true},
		{"ISBN 9780306406157", true},
		{"ISBN-13: 978-0-306-40615-7", true},
		{"ISBN-10: 0-306-40615-2", true},
		{"12345", false},
		{"9770306406157", false},
		{"978-0-306-40615", false},
		{"abcdefghij", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.isbn, func(t *testing.T) {
			assert.Equal(t, tt.valid, validation.IsISBN(tt.isbn))
		})
	}
}
