package tracker

import (
	"context"
	"fmt"

	"balance/internal/core"
	"balance/internal/ledger"
)

// Entry is one rendered list row.
type Entry struct {
	ID          int64
	Description string
	Kind        core.Kind
	KindLabel   string
	Amount      string
	Income      bool
}

// View is everything a renderer needs to draw the page. It is rebuilt from
// the ledger on every call.
type View struct {
	Totals          core.Totals
	Balance         string
	Income          string
	Expenses        string
	BalanceNegative bool
	Entries         []Entry
	Count           int
	Empty           bool
	Form            Form
}

// View snapshots the ledger, totals and form.
func (t *Tracker) View(ctx context.Context) (View, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	items, err := t.book.Transactions(ctx)
	if err != nil {
		return View{}, fmt.Errorf("list transactions: %w", err)
	}
	return buildView(t.format, items, t.form), nil
}

func buildView(f core.Formatter, items []core.Transaction, form Form) View {
	totals := ledger.Summarize(items)
	v := View{
		Totals:          totals,
		Balance:         f.Balance(totals.Balance),
		Income:          "+" + f.Symbol + f.Number(totals.Income),
		Expenses:        "-" + f.Symbol + f.Number(totals.Expenses),
		BalanceNegative: totals.Balance.IsNegative(),
		Entries:         make([]Entry, 0, len(items)),
		Count:           len(items),
		Empty:           len(items) == 0,
		Form:            form,
	}
	for _, tx := range items {
		v.Entries = append(v.Entries, Entry{
			ID:          tx.ID,
			Description: tx.Description,
			Kind:        tx.Kind,
			KindLabel:   tx.Kind.Label(),
			Amount:      f.Signed(tx.Kind, tx.Amount),
			Income:      tx.Kind == core.Income,
		})
	}
	return v
}
