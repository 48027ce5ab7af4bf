// Package service implements business rules and orchestration between the
// HTTP handlers and the stores. It owns the inventory-ledger coordination:
// every operation that touches both a book's copy counter and the loan
// ledger runs inside one store transaction.
package service

import (
	"errors"
	"time"

	"github.com/google/uuid"

	liberrors "github.com/Shivanand-hulikatti/library-management/internal/errors"
	"github.com/Shivanand-hulikatti/library-management/internal/validation"
)

type options struct {
	now       func() time.Time
	newID     func() string
	validator *validation.Validator
}

// Option customises a service.
type Option func(*options)

// WithClock replaces the wall clock used for issue, due and return dates and
// for overdue evaluation.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator replaces the UUID generator for new records.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// WithValidator shares one validator between services.
func WithValidator(v *validation.Validator) Option {
	return func(o *options) { o.validator = v }
}

func newOptions(opts []Option) options {
	o := options{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.validator == nil {
		o.validator = validation.New()
	}
	return o
}

// storageErr passes domain errors through and reports anything else as the
// store being unavailable for op.
func storageErr(op string, err error) error {
	if err == nil || liberrors.IsDomain(err) {
		return err
	}
	return liberrors.StorageUnavailable(op, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, liberrors.ErrNotFound)
}

// requireID rejects ids that are not UUIDs before they reach a store.
func requireID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return liberrors.ValidationFailed(field, "must be a valid UUID")
	}
	return nil
}
