package service

import (
	"context"
	"log/slog"
	"time"
)

// InventoryRepair records one corrected available-copy counter.
type InventoryRepair struct {
	BookID string `json:"bookId"`
	Was    int    `json:"was"`
	Now    int    `json:"now"`
}

// Overcommitment flags a book with more issued loans than copies.
type Overcommitment struct {
	BookID      string `json:"bookId"`
	TotalCopies int    `json:"totalCopies"`
	ActiveLoans int    `json:"activeLoans"`
}

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	BooksChecked  int               `json:"booksChecked"`
	Repaired      []InventoryRepair `json:"repaired"`
	Overcommitted []Overcommitment  `json:"overcommitted"`
	// OrphanedBooks lists book ids referenced by issued loans that no longer
	// exist, with the number of such loans.
	OrphanedBooks map[string]int `json:"orphanedBooks"`
	StartedAt     time.Time      `json:"startedAt"`
	FinishedAt    time.Time      `json:"finishedAt"`
}

// Clean reports whether the pass found nothing to repair or flag.
func (r *ReconcileReport) Clean() bool {
	return len(r.Repaired) == 0 && len(r.Overcommitted) == 0 && len(r.OrphanedBooks) == 0
}

// Reconciler restores availableCopies = totalCopies - issued loans for every
// book. Drift it can repair is repaired; anything else is flagged.
type Reconciler struct {
	tx    Transactor
	books BookStore
	loans LoanStore
	log   *slog.Logger
	now   func() time.Time
}

// NewReconciler constructs a Reconciler.
func NewReconciler(st Stores, log *slog.Logger, opts ...Option) *Reconciler {
	o := newOptions(opts)
	return &Reconciler{tx: st.Tx, books: st.Books, loans: st.Loans, log: log, now: o.now}
}

// Run performs one pass. Each book is checked in its own transaction with the
// book row locked, so a pass never races an issue or return of that book.
func (r *Reconciler) Run(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{
		Repaired:      []InventoryRepair{},
		Overcommitted: []Overcommitment{},
		OrphanedBooks: map[string]int{},
		StartedAt:     r.now(),
	}

	books, err := r.books.ListAll(ctx)
	if err != nil {
		return nil, storageErr("reconcile", err)
	}

	known := make(map[string]struct{}, len(books))
	for _, b := range books {
		known[b.ID] = struct{}{}
		if err := r.reconcileBook(ctx, b.ID, report); err != nil {
			return nil, storageErr("reconcile", err)
		}
	}

	active, err := r.loans.CountActiveGroupedByBook(ctx)
	if err != nil {
		return nil, storageErr("reconcile", err)
	}
	for bookID, n := range active {
		if _, ok := known[bookID]; ok {
			continue
		}
		report.OrphanedBooks[bookID] = n
		r.log.WarnContext(ctx, "issued loans reference a missing book",
			slog.String("book_id", bookID), slog.Int("active_loans", n))
	}

	report.FinishedAt = r.now()
	r.log.InfoContext(ctx, "inventory reconciled",
		slog.Int("books_checked", report.BooksChecked),
		slog.Int("repaired", len(report.Repaired)),
		slog.Int("overcommitted", len(report.Overcommitted)),
		slog.Int("orphaned_books", len(report.OrphanedBooks)),
	)
	return report, nil
}

func (r *Reconciler) reconcileBook(ctx context.Context, id string, report *ReconcileReport) error {
	var (
		repair *InventoryRepair
		over   *Overcommitment
		seen   bool
	)
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		book, err := r.books.LockByID(ctx, id)
		if isNotFound(err) {
			// deleted since the listing
			return nil
		}
		if err != nil {
			return err
		}
		seen = true

		active, err := r.loans.CountActiveByBook(ctx, id)
		if err != nil {
			return err
		}
		expected := book.TotalCopies - active
		switch {
		case expected < 0:
			over = &Overcommitment{BookID: id, TotalCopies: book.TotalCopies, ActiveLoans: active}
			return nil
		case expected == book.AvailableCopies:
			return nil
		}

		if err := r.books.SetAvailable(ctx, id, expected, r.now()); err != nil {
			return err
		}
		repair = &InventoryRepair{BookID: id, Was: book.AvailableCopies, Now: expected}
		return nil
	})
	if err != nil {
		return err
	}

	if seen {
		report.BooksChecked++
	}
	if repair != nil {
		report.Repaired = append(report.Repaired, *repair)
		r.log.WarnContext(ctx, "repaired inventory drift",
			slog.String("book_id", id), slog.Int("was", repair.Was), slog.Int("now", repair.Now))
	}
	if over != nil {
		report.Overcommitted = append(report.Overcommitted, *over)
		r.log.ErrorContext(ctx, "book has more issued loans than copies",
			slog.String("book_id", id), slog.Int("total_copies", over.TotalCopies), slog.Int("active_loans", over.ActiveLoans))
	}
	return nil
}

// RunEvery runs a pass every interval until ctx is cancelled. Failed passes
// are logged and retried on the next tick.
func (r *Reconciler) RunEvery(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Run(ctx); err != nil && ctx.Err() == nil {
				r.log.ErrorContext(ctx, "inventory reconcile failed", slog.Any("error", err))
			}
		}
	}
}
