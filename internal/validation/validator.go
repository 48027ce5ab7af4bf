// Package validation validates request payloads with validator/v10 and
// converts failures into domain validation errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	liberrors "github.com/Shivanand-hulikatti/library-management/internal/errors"
	"github.com/Shivanand-hulikatti/library-management/internal/model"
)

var (
	alphaSpaceRe = regexp.MustCompile(`^[A-Za-z ]+$`)
	phoneRe      = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

	isbnPrefixRe = regexp.MustCompile(`^ISBN(?:-1[03])?:? `)
	isbnBodyRe   = regexp.MustCompile(`^(?:97[89][- ]?)?[0-9]{1,5}[- ]?[0-9]+[- ]?[0-9]+[- ]?[0-9X]$`)
	isbn10Re     = regexp.MustCompile(`^[0-9X]{10}$`)
	isbn13Re     = regexp.MustCompile(`^97[89][0-9]{10}$`)
	isbn10SepRe  = regexp.MustCompile(`^[- 0-9X]{13}$`)
	isbn13SepRe  = regexp.MustCompile(`^[- 0-9]{17}$`)
	groups3Re    = regexp.MustCompile(`^(?:[0-9]+[- ]){3}`)
	groups4Re    = regexp.MustCompile(`^(?:[0-9]+[- ]){4}`)
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the library's custom tags registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	must(v.RegisterValidation("isbn_format", func(fl validator.FieldLevel) bool {
		return IsISBN(fl.Field().String())
	}))
	must(v.RegisterValidation("alphaspace", func(fl validator.FieldLevel) bool {
		return alphaSpaceRe.MatchString(fl.Field().String())
	}))
	must(v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	}))
	must(v.RegisterValidation("book_category", func(fl validator.FieldLevel) bool {
		return model.IsCategory(fl.Field().String())
	}))

	return &Validator{v: v}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// IsISBN reports whether s looks like an ISBN-10 or ISBN-13, optionally
// prefixed with "ISBN", "ISBN-10" or "ISBN-13" and grouped with hyphens or
// spaces. Check digits are not verified.
func IsISBN(s string) bool {
	s = isbnPrefixRe.ReplaceAllString(s, "")

	shape := isbn10Re.MatchString(s) ||
		(isbn10SepRe.MatchString(s) && groups3Re.MatchString(s)) ||
		isbn13Re.MatchString(s) ||
		(isbn13SepRe.MatchString(s) && groups4Re.MatchString(s))

	return shape && isbnBodyRe.MatchString(s)
}

func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string, len(validationErrs))
	for _, e := range validationErrs {
		if _, seen := fieldErrors[e.Field()]; seen {
			continue
		}
		fieldErrors[e.Field()] = friendlyMessage(e)
	}
	return liberrors.ValidationWithDetails("Validation failed", fieldErrors)
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "alphanum":
		return "must contain only letters and numbers"
	case "alphaspace":
		return "must contain only letters and spaces"
	case "phone":
		return "must be a valid phone number"
	case "isbn_format":
		return "must be a valid ISBN"
	case "book_category":
		return "must be one of: " + strings.Join(model.Categories, ", ")
	case "min", "max":
		return boundMessage(e)
	default:
		return "is invalid"
	}
}

func boundMessage(e validator.FieldError) string {
	numeric := false
	switch e.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		numeric = true
	}

	switch {
	case e.Tag() == "min" && numeric:
		return "must be at least " + e.Param()
	case e.Tag() == "max" && numeric:
		return "must not exceed " + e.Param()
	case e.Tag() == "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	default:
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	}
}
