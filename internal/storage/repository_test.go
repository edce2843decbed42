package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"balance/internal/core"
	"balance/internal/ledger"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "balance.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func add(t *testing.T, b ledger.Book, desc, amount string, kind core.Kind) core.Transaction {
	t.Helper()
	d, err := core.Validate(core.DraftInput{Description: desc, Amount: amount, Kind: kind})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	tx, err := b.Add(context.Background(), d)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	return tx
}

func TestSQLiteBookScenario(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	var store ledger.Store = repo

	book, err := store.Open(ctx, "s1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	salary := add(t, book, "Salary", "1000", core.Income)
	coffee := add(t, book, "Coffee", "4.5", core.Expense)
	if coffee.ID <= salary.ID {
		t.Fatalf("ids not increasing: %d then %d", salary.ID, coffee.ID)
	}

	items, err := book.Transactions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].Description != "Coffee" || items[1].Description != "Salary" {
		t.Fatalf("order: %+v", items)
	}
	if !items[0].Amount.Equal(decimal.RequireFromString("4.5")) || items[0].Kind != core.Expense {
		t.Fatalf("round trip: %+v", items[0])
	}
	tot := ledger.Summarize(items)
	if !tot.Balance.Equal(decimal.RequireFromString("995.5")) {
		t.Fatalf("balance = %s", tot.Balance)
	}

	removed, err := book.Remove(ctx, coffee.ID)
	if err != nil || !removed {
		t.Fatalf("remove: %v %v", removed, err)
	}
	removed, err = book.Remove(ctx, coffee.ID)
	if err != nil || removed {
		t.Fatalf("second remove should be a no-op: %v %v", removed, err)
	}
}

func TestSQLiteSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	a, _ := repo.Open(ctx, "a")
	b, _ := repo.Open(ctx, "b")
	tx := add(t, a, "Salary", "1000", core.Income)

	if removed, _ := b.Remove(ctx, tx.ID); removed {
		t.Fatalf("session b removed session a's transaction")
	}
	items, _ := b.Transactions(ctx)
	if len(items) != 0 {
		t.Fatalf("session b sees %d transactions", len(items))
	}

	if err := repo.Drop(ctx, "a"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	items, _ = a.Transactions(ctx)
	if len(items) != 0 {
		t.Fatalf("dropped session still has transactions")
	}
}

func TestSQLiteRejectsInvalidDraft(t *testing.T) {
	repo := newRepo(t)
	b, _ := repo.Open(context.Background(), "s")
	_, err := b.Add(context.Background(), core.Draft{Description: " ", Amount: decimal.NewFromInt(1), Kind: core.Income})
	if err != core.ErrEmptyDescription {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	repo := newRepo(t)

	v1, err := Migrate(repo.db)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if v1 != 1 {
		t.Errorf("schema version = %d, want 1", v1)
	}
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("database closed by migration: %v", err)
	}
}

func TestInMemoryDSN(t *testing.T) {
	for _, dsn := range []string{":memory:", DefaultDSN} {
		t.Run(dsn, func(t *testing.T) {
			repo, err := NewSQLiteRepository(dsn)
			if err != nil {
				t.Fatalf("new repository: %v", err)
			}
			defer repo.Close()

			book, err := repo.Open(context.Background(), "s1")
			if err != nil {
				t.Fatal(err)
			}
			add(t, book, "Salary", "1000", core.Income)
			items, err := book.Transactions(context.Background())
			if err != nil || len(items) != 1 {
				t.Fatalf("Transactions() = %v, %v", items, err)
			}
		})
	}
}
