// Package tracker is the application-state controller of one session: it owns
// the ledger and the form, admits validated input, and announces every change
// so renderers redraw from a fresh View.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"balance/internal/core"
	"balance/internal/ledger"
	"balance/internal/log"
)

// ErrClosed is returned by mutators once the tracker's session has ended.
var ErrClosed = errors.New("tracker closed")

// Notifier receives a LedgerChange after every successful mutator.
type Notifier interface {
	LedgerChanged(ctx context.Context, change core.LedgerChange)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, change core.LedgerChange)

func (f NotifierFunc) LedgerChanged(ctx context.Context, change core.LedgerChange) {
	f(ctx, change)
}

// Form is the state of the entry form between two submissions.
type Form struct {
	Description string
	Amount      string
	Kind        core.Kind
	Error       string
}

// Tracker serializes all actions on one ledger: each runs to completion
// before the next is accepted.
type Tracker struct {
	mu        sync.Mutex
	id        string
	book      ledger.Book
	form      Form
	closed    bool
	notifiers []Notifier
	format    core.Formatter
	logger    *log.StructuredLogger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithNotifier registers a listener for ledger changes.
func WithNotifier(n Notifier) Option {
	return func(t *Tracker) {
		if n != nil {
			t.notifiers = append(t.notifiers, n)
		}
	}
}

// WithFormatter sets how amounts are rendered in views.
func WithFormatter(f core.Formatter) Option {
	return func(t *Tracker) { t.format = f }
}

// WithLogger sets the logger used for mutation records.
func WithLogger(l *log.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = log.NewStructuredLogger(l)
		}
	}
}

// New returns a tracker over book with an empty form.
func New(id string, book ledger.Book, opts ...Option) *Tracker {
	t := &Tracker{
		id:     id,
		book:   book,
		form:   Form{Kind: core.DefaultKind},
		format: core.NewFormatter(""),
		logger: log.NewStructuredLogger(log.Discard()),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ID returns the session ID the tracker belongs to.
func (t *Tracker) ID() string {
	return t.id
}

// Submit validates the input and, on success, prepends a new transaction.
//
// The previous form error is always cleared first. On a validation failure the
// form keeps what the user typed, Error holds the inline message, and the
// ledger is left untouched. On success description and amount are reset while
// the selected kind stays.
func (t *Tracker) Submit(ctx context.Context, in core.DraftInput) (core.Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return core.Transaction{}, ErrClosed
	}

	t.form = Form{Description: in.Description, Amount: in.Amount, Kind: in.Kind}
	if t.form.Kind == "" {
		t.form.Kind = core.DefaultKind
	}

	draft, err := core.Validate(in)
	if err != nil {
		t.form.Error = core.UserMessage(err)
		return core.Transaction{}, err
	}

	tx, err := t.book.Add(ctx, draft)
	if err != nil {
		t.form.Error = core.UserMessage(err)
		t.logger.LogError(ctx, "Failed to add transaction", err, log.ComponentTracker, log.OpAdd,
			log.NewFields().WithSession(t.id))
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}

	t.form = Form{Kind: tx.Kind}
	t.logger.LogTransaction(ctx, log.OpAdd, t.id, tx.ID, tx.Description, tx.Amount.String(), tx.Kind.String())
	t.changed(ctx, core.ChangeAdded, tx)
	return tx, nil
}

// Delete removes the transaction with the given ID. Unknown IDs are a no-op
// and report false.
func (t *Tracker) Delete(ctx context.Context, id int64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false, ErrClosed
	}

	var victim core.Transaction
	items, err := t.book.Transactions(ctx)
	if err != nil {
		return false, fmt.Errorf("list transactions: %w", err)
	}
	for _, tx := range items {
		if tx.ID == id {
			victim = tx
			break
		}
	}

	removed, err := t.book.Remove(ctx, id)
	if err != nil {
		t.logger.LogError(ctx, "Failed to remove transaction", err, log.ComponentTracker, log.OpRemove,
			log.NewFields().WithSession(t.id))
		return false, fmt.Errorf("remove transaction %d: %w", id, err)
	}
	if !removed {
		return false, nil
	}

	t.logger.LogTransaction(ctx, log.OpRemove, t.id, victim.ID, victim.Description, victim.Amount.String(), victim.Kind.String())
	t.changed(ctx, core.ChangeRemoved, victim)
	return true, nil
}

// Close refuses every later mutation. It waits for an action in progress,
// so once it returns the book can be dropped safely.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

// SelectKind changes the kind preselected on the form.
func (t *Tracker) SelectKind(k core.Kind) error {
	if !k.Valid() {
		return core.ErrInvalidKind
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.form.Kind = k
	return nil
}

// Form returns the current form state.
func (t *Tracker) Form() Form {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.form
}

// Totals recomputes the aggregates from the full ledger.
func (t *Tracker) Totals(ctx context.Context) (core.Totals, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	items, err := t.book.Transactions(ctx)
	if err != nil {
		return core.Totals{}, fmt.Errorf("list transactions: %w", err)
	}
	return ledger.Summarize(items), nil
}

// Transactions returns the ledger, newest first.
func (t *Tracker) Transactions(ctx context.Context) ([]core.Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.book.Transactions(ctx)
}

// changed must be called with t.mu held.
func (t *Tracker) changed(ctx context.Context, typ core.ChangeType, tx core.Transaction) {
	if len(t.notifiers) == 0 {
		return
	}
	items, err := t.book.Transactions(ctx)
	if err != nil {
		t.logger.LogError(ctx, "Failed to recompute totals after change", err, log.ComponentTracker, string(typ),
			log.NewFields().WithSession(t.id))
		return
	}
	change := core.LedgerChange{
		Type:        typ,
		SessionID:   t.id,
		Transaction: tx,
		Totals:      ledger.Summarize(items),
		Count:       len(items),
	}
	for _, n := range t.notifiers {
		n.LedgerChanged(ctx, change)
	}
}
