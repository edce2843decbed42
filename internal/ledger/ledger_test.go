package ledger

import (
	"context"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"balance/internal/core"
)

func draft(t *testing.T, desc, amount string, kind core.Kind) core.Draft {
	t.Helper()
	d, err := core.Validate(core.DraftInput{Description: desc, Amount: amount, Kind: kind})
	if err != nil {
		t.Fatalf("draft %q: %v", desc, err)
	}
	return d
}

func mustList(t *testing.T, b Book) []core.Transaction {
	t.Helper()
	items, err := b.Transactions(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return items
}

func TestLedgerScenario(t *testing.T) {
	ctx := context.Background()
	l := New()

	salary, err := l.Add(ctx, draft(t, "Salary", "1000", core.Income))
	if err != nil {
		t.Fatalf("add salary: %v", err)
	}
	tot := l.Totals()
	if !tot.Income.Equal(decimal.NewFromInt(1000)) || !tot.Balance.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("after salary: %+v", tot)
	}

	coffee, err := l.Add(ctx, draft(t, "Coffee", "4.5", core.Expense))
	if err != nil {
		t.Fatalf("add coffee: %v", err)
	}
	tot = l.Totals()
	if !tot.Expenses.Equal(decimal.RequireFromString("4.50")) {
		t.Fatalf("expenses = %s", tot.Expenses)
	}
	if !tot.Balance.Equal(decimal.RequireFromString("995.50")) {
		t.Fatalf("balance = %s", tot.Balance)
	}
	items := mustList(t, l)
	if len(items) != 2 || items[0].Description != "Coffee" || items[1].Description != "Salary" {
		t.Fatalf("order = %+v", items)
	}

	removed, err := l.Remove(ctx, coffee.ID)
	if err != nil || !removed {
		t.Fatalf("remove coffee: removed=%v err=%v", removed, err)
	}
	items = mustList(t, l)
	if len(items) != 1 || items[0].ID != salary.ID {
		t.Fatalf("after remove: %+v", items)
	}
	tot = l.Totals()
	if !tot.Income.Equal(decimal.NewFromInt(1000)) || !tot.Expenses.IsZero() {
		t.Fatalf("totals after remove: %+v", tot)
	}
}

func TestRemoveMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	l := New()
	_, _ = l.Add(ctx, draft(t, "Salary", "1000", core.Income))
	before := mustList(t, l)

	removed, err := l.Remove(ctx, 999)
	if err != nil || removed {
		t.Fatalf("expected no-op, got removed=%v err=%v", removed, err)
	}
	after := mustList(t, l)
	if len(after) != len(before) || after[0].ID != before[0].ID {
		t.Fatalf("ledger changed: %+v -> %+v", before, after)
	}
}

func TestAddRejectsInvalidDraft(t *testing.T) {
	l := New()
	_, err := l.Add(context.Background(), core.Draft{Description: "x", Amount: decimal.Zero, Kind: core.Income})
	if err != core.ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if l.Len() != 0 {
		t.Fatalf("invalid draft admitted")
	}
}

func TestIDsAreUniqueAndIncreasing(t *testing.T) {
	ctx := context.Background()
	l := New()
	var last int64
	for i := 0; i < 50; i++ {
		tx, _ := l.Add(ctx, draft(t, "x", "1", core.Income))
		if tx.ID <= last {
			t.Fatalf("id %d not greater than %d", tx.ID, last)
		}
		last = tx.ID
		if i%3 == 0 {
			_, _ = l.Remove(ctx, tx.ID)
		}
	}
	seen := map[int64]bool{}
	for _, tx := range mustList(t, l) {
		if seen[tx.ID] {
			t.Fatalf("duplicate id %d", tx.ID)
		}
		seen[tx.ID] = true
	}
}

func TestTransactionsReturnsCopy(t *testing.T) {
	ctx := context.Background()
	l := New()
	_, _ = l.Add(ctx, draft(t, "Salary", "1000", core.Income))
	items := mustList(t, l)
	items[0].Description = "changed"
	if mustList(t, l)[0].Description != "Salary" {
		t.Fatalf("caller mutated ledger contents")
	}
}

// Random sequences of add and remove must keep every invariant: new entries
// first, size changes by one, balance equals income minus expenses.
func TestRandomSequencesKeepInvariants(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	l := New()
	for i := 0; i < 500; i++ {
		items := mustList(t, l)
		if len(items) > 0 && rng.Intn(3) == 0 {
			victim := items[rng.Intn(len(items))]
			if ok, _ := l.Remove(ctx, victim.ID); !ok {
				t.Fatalf("remove %d failed", victim.ID)
			}
			if l.Len() != len(items)-1 {
				t.Fatalf("remove did not shrink by one")
			}
		} else {
			kind := core.Income
			if rng.Intn(2) == 0 {
				kind = core.Expense
			}
			amount := decimal.New(int64(rng.Intn(100000)+1), -2)
			tx, err := l.Add(ctx, core.Draft{Description: "r", Amount: amount, Kind: kind})
			if err != nil {
				t.Fatalf("add: %v", err)
			}
			after := mustList(t, l)
			if len(after) != len(items)+1 || after[0].ID != tx.ID {
				t.Fatalf("add did not prepend exactly one element")
			}
		}
		tot := l.Totals()
		if !tot.Balance.Equal(tot.Income.Sub(tot.Expenses)) {
			t.Fatalf("balance drift: %+v", tot)
		}
		if !tot.Equal(Summarize(mustList(t, l))) {
			t.Fatalf("totals differ from a fresh summary")
		}
	}
}

func TestSummarizeEmpty(t *testing.T) {
	tot := Summarize(nil)
	if !tot.Income.IsZero() || !tot.Expenses.IsZero() || !tot.Balance.IsZero() {
		t.Fatalf("empty totals: %+v", tot)
	}
}

func TestMemoryStoreOpensIndependentBooks(t *testing.T) {
	ctx := context.Background()
	var s Store = MemoryStore{}
	a, _ := s.Open(ctx, "a")
	b, _ := s.Open(ctx, "b")
	_, _ = a.Add(ctx, draft(t, "Salary", "1000", core.Income))
	if len(mustList(t, b)) != 0 {
		t.Fatalf("books share state")
	}
	if err := s.Drop(ctx, "a"); err != nil {
		t.Fatalf("drop: %v", err)
	}
}
