package service_test

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/library-management/internal/database"
	"github.com/Shivanand-hulikatti/library-management/internal/logger"
	"github.com/Shivanand-hulikatti/library-management/internal/model"
	"github.com/Shivanand-hulikatti/library-management/internal/repository/sqlite"
	"github.com/Shivanand-hulikatti/library-management/internal/service"
)

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	ctx        context.Context
	stores     service.Stores
	clock      *clock
	logs       *bytes.Buffer
	books      *service.BookService
	borrowers  *service.BorrowerService
	loans      *service.LoanService
	reconciler *service.Reconciler
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, nil)
}

// newFixtureWith builds services over a fresh SQLite database. wrap, if set,
// may replace stores before the services see them.
func newFixtureWith(t *testing.T, wrap func(service.Stores) service.Stores) *fixture {
	t.Helper()
	ctx := context.Background()

	conn, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db := sqlite.New(conn)
	require.NoError(t, db.Migrate(ctx))
	st := db.Stores()
	if wrap != nil {
		st = wrap(st)
	}

	f := &fixture{
		ctx:    ctx,
		stores: st,
		clock:  &clock{now: start},
		logs:   &bytes.Buffer{},
	}
	log := logger.New(logger.Config{Writer: f.logs, Format: logger.FormatJSON, Level: logger.ParseLevel("debug")})
	opts := []service.Option{service.WithClock(f.clock.Now)}

	f.books = service.NewBookService(st, log, opts...)
	f.borrowers = service.NewBorrowerService(st, log, opts...)
	f.loans = service.NewLoanService(st, log, opts...)
	f.reconciler = service.NewReconciler(st, log, opts...)
	return f
}

func (f *fixture) book(t *testing.T, isbn string, copies int) *model.BookView {
	t.Helper()
	b, err := f.books.Create(f.ctx, model.CreateBookRequest{
		Title:       "The Go Programming Language",
		Author:      "Donovan",
		ISBN:        isbn,
		TotalCopies: copies,
		Category:    "Technology",
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) borrower(t *testing.T, email, studentID string) *model.BorrowerView {
	t.Helper()
	b, err := f.borrowers.Create(f.ctx, model.CreateBorrowerRequest{
		Name:      "Ada Lovelace",
		Email:     email,
		StudentID: studentID,
		Phone:     "+15551234567",
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) available(t *testing.T, bookID string) int {
	t.Helper()
	b, err := f.books.Get(f.ctx, bookID)
	require.NoError(t, err)
	return b.AvailableCopies
}

func (f *fixture) loanCount(t *testing.T) int {
	t.Helper()
	all, err := f.loans.AllLoans(f.ctx)
	require.NoError(t, err)
	return len(all)
}
