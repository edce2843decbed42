// Package ledger holds the ordered, newest-first list of transactions of one
// session and derives its totals.
package ledger

import (
	"context"
	"sync"

	"balance/internal/core"
)

// Book is one session ledger. Add and Remove are its only mutators.
type Book interface {
	// Add assigns the next ID to the draft and prepends it.
	Add(ctx context.Context, d core.Draft) (core.Transaction, error)
	// Remove deletes the transaction with the given ID. A missing ID is not an
	// error; the returned bool reports whether anything was removed.
	Remove(ctx context.Context, id int64) (bool, error)
	// Transactions returns a copy of the ledger, newest first.
	Transactions(ctx context.Context) ([]core.Transaction, error)
}

// Store opens and drops the books of individual sessions.
type Store interface {
	Open(ctx context.Context, sessionID string) (Book, error)
	Drop(ctx context.Context, sessionID string) error
}

// Ledger is the in-memory Book.
type Ledger struct {
	mu     sync.Mutex
	items  []core.Transaction
	nextID int64
}

func New() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Add(_ context.Context, d core.Draft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	tx := core.Transaction{
		ID:          l.nextID,
		Description: d.Description,
		Amount:      d.Amount,
		Kind:        d.Kind,
	}
	items := make([]core.Transaction, 0, len(l.items)+1)
	items = append(items, tx)
	l.items = append(items, l.items...)
	return tx, nil
}

func (l *Ledger) Remove(_ context.Context, id int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, tx := range l.items {
		if tx.ID == id {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (l *Ledger) Transactions(_ context.Context) ([]core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.Transaction(nil), l.items...), nil
}

// Len returns the number of transactions.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Totals recomputes the aggregates from the current contents.
func (l *Ledger) Totals() core.Totals {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Summarize(l.items)
}

// MemoryStore hands out a fresh in-memory ledger per session. Dropping a
// session simply lets its ledger be collected.
type MemoryStore struct{}

func (MemoryStore) Open(_ context.Context, _ string) (Book, error) {
	return New(), nil
}

func (MemoryStore) Drop(_ context.Context, _ string) error {
	return nil
}
