package tracker

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"balance/internal/core"
	"balance/internal/ledger"
)

type recorder struct {
	changes []core.LedgerChange
}

func (r *recorder) LedgerChanged(_ context.Context, c core.LedgerChange) {
	r.changes = append(r.changes, c)
}

type failingBook struct{ ledger.Book }

func (failingBook) Add(context.Context, core.Draft) (core.Transaction, error) {
	return core.Transaction{}, errors.New("disk full")
}

func (failingBook) Transactions(context.Context) ([]core.Transaction, error) {
	return nil, nil
}

func newTracker(t *testing.T) (*Tracker, *recorder) {
	t.Helper()
	rec := &recorder{}
	return New("s1", ledger.New(), WithNotifier(rec)), rec
}

func submit(t *testing.T, tr *Tracker, desc, amount string, kind core.Kind) core.Transaction {
	t.Helper()
	tx, err := tr.Submit(context.Background(), core.DraftInput{Description: desc, Amount: amount, Kind: kind})
	if err != nil {
		t.Fatalf("submit %q: %v", desc, err)
	}
	return tx
}

func mustView(t *testing.T, tr *Tracker) View {
	t.Helper()
	v, err := tr.View(context.Background())
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	return v
}

func TestScenario(t *testing.T) {
	tr, rec := newTracker(t)

	submit(t, tr, "Salary", "1000", core.Income)
	v := mustView(t, tr)
	if v.Income != "+₹1,000.00" || v.Balance != "₹1,000.00" {
		t.Fatalf("after salary: income=%s balance=%s", v.Income, v.Balance)
	}

	coffee := submit(t, tr, "Coffee", "4.5", core.Expense)
	v = mustView(t, tr)
	if v.Expenses != "-₹4.50" || v.Balance != "₹995.50" {
		t.Fatalf("after coffee: expenses=%s balance=%s", v.Expenses, v.Balance)
	}
	if len(v.Entries) != 2 || v.Entries[0].Description != "Coffee" || v.Entries[1].Description != "Salary" {
		t.Fatalf("order: %+v", v.Entries)
	}
	if v.Entries[0].Amount != "-₹4.50" || v.Entries[1].Amount != "+₹1,000.00" {
		t.Fatalf("signed amounts: %s %s", v.Entries[0].Amount, v.Entries[1].Amount)
	}

	_, err := tr.Submit(context.Background(), core.DraftInput{Description: "", Amount: "10", Kind: core.Income})
	if !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
	_, err = tr.Submit(context.Background(), core.DraftInput{Description: "Rent", Amount: "-5", Kind: core.Expense})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if mustView(t, tr).Count != 2 {
		t.Fatalf("rejected submissions changed the ledger")
	}

	removed, err := tr.Delete(context.Background(), coffee.ID)
	if err != nil || !removed {
		t.Fatalf("delete coffee: %v %v", removed, err)
	}
	v = mustView(t, tr)
	if v.Count != 1 || v.Entries[0].Description != "Salary" {
		t.Fatalf("after delete: %+v", v.Entries)
	}
	if v.Income != "+₹1,000.00" || v.Expenses != "-₹0.00" {
		t.Fatalf("totals after delete: %s %s", v.Income, v.Expenses)
	}

	if len(rec.changes) != 3 {
		t.Fatalf("expected 3 change notifications, got %d", len(rec.changes))
	}
	last := rec.changes[2]
	if last.Type != core.ChangeRemoved || last.Transaction.ID != coffee.ID || last.Count != 1 {
		t.Fatalf("last change: %+v", last)
	}
	if !last.Totals.Balance.Equal(decimal.NewFromInt(1000)) || last.SessionID != "s1" {
		t.Fatalf("last change totals: %+v", last)
	}
}

func TestFormErrorLifecycle(t *testing.T) {
	tr, _ := newTracker(t)

	_, _ = tr.Submit(context.Background(), core.DraftInput{Description: "  ", Amount: "abc", Kind: core.Expense})
	f := tr.Form()
	if f.Error != "Description is required." {
		t.Fatalf("error = %q", f.Error)
	}
	if f.Amount != "abc" || f.Kind != core.Expense {
		t.Fatalf("form should keep typed values: %+v", f)
	}

	_, _ = tr.Submit(context.Background(), core.DraftInput{Description: "Rent", Amount: "0", Kind: core.Expense})
	if got := tr.Form().Error; got != "Enter a positive amount." {
		t.Fatalf("error should be replaced, got %q", got)
	}

	submit(t, tr, "Rent", "500", core.Expense)
	f = tr.Form()
	if f.Error != "" || f.Description != "" || f.Amount != "" {
		t.Fatalf("form not reset: %+v", f)
	}
	if f.Kind != core.Expense {
		t.Fatalf("kind should stay selected, got %s", f.Kind)
	}
}

func TestDeleteUnknownIsNoop(t *testing.T) {
	tr, rec := newTracker(t)
	submit(t, tr, "Salary", "1000", core.Income)

	removed, err := tr.Delete(context.Background(), 42)
	if err != nil || removed {
		t.Fatalf("expected no-op, got %v %v", removed, err)
	}
	if mustView(t, tr).Count != 1 {
		t.Fatalf("ledger changed")
	}
	if len(rec.changes) != 1 {
		t.Fatalf("no-op delete should not notify")
	}
}

func TestEmptyView(t *testing.T) {
	tr, _ := newTracker(t)
	v := mustView(t, tr)
	if !v.Empty || v.Count != 0 || v.Balance != "₹0.00" {
		t.Fatalf("empty view: %+v", v)
	}
	if v.Form.Kind != core.Income {
		t.Fatalf("default kind = %s", v.Form.Kind)
	}
}

func TestNegativeBalance(t *testing.T) {
	tr, _ := newTracker(t)
	submit(t, tr, "Rent", "1200.5", core.Expense)
	v := mustView(t, tr)
	if !v.BalanceNegative || v.Balance != "-₹1,200.50" {
		t.Fatalf("balance = %s negative=%v", v.Balance, v.BalanceNegative)
	}
}

func TestStorageFailureSurfaces(t *testing.T) {
	rec := &recorder{}
	tr := New("s1", failingBook{}, WithNotifier(rec))
	_, err := tr.Submit(context.Background(), core.DraftInput{Description: "x", Amount: "1", Kind: core.Income})
	if err == nil || core.IsValidationError(err) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
	if tr.Form().Error == "" {
		t.Fatalf("form should show an error")
	}
	if len(rec.changes) != 0 {
		t.Fatalf("failed add must not notify")
	}
}

func TestSelectKind(t *testing.T) {
	tr, _ := newTracker(t)
	if err := tr.SelectKind(core.Expense); err != nil {
		t.Fatalf("select: %v", err)
	}
	if tr.Form().Kind != core.Expense {
		t.Fatalf("kind not selected")
	}
	if err := tr.SelectKind("transfer"); !errors.Is(err, core.ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestNotifierFunc(t *testing.T) {
	var got core.ChangeType
	tr := New("s1", ledger.New(), WithNotifier(NotifierFunc(func(_ context.Context, c core.LedgerChange) {
		got = c.Type
	})))
	submit(t, tr, "Gift", "5", core.Income)
	if got != core.ChangeAdded {
		t.Fatalf("notifier func not called")
	}
}

func TestClosedRefusesMutations(t *testing.T) {
	tr, rec := newTracker(t)
	kept := submit(t, tr, "Salary", "1000", core.Income)
	tr.Close()

	_, err := tr.Submit(context.Background(), core.DraftInput{Description: "Late", Amount: "5", Kind: core.Expense})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("Submit after Close: expected ErrClosed, got %v", err)
	}
	if _, err := tr.Delete(context.Background(), kept.ID); !errors.Is(err, ErrClosed) {
		t.Fatalf("Delete after Close: expected ErrClosed, got %v", err)
	}
	if v := mustView(t, tr); v.Count != 1 {
		t.Fatalf("closed tracker changed the ledger, count = %d", v.Count)
	}
	if len(rec.changes) != 1 {
		t.Fatalf("closed tracker notified, changes = %d", len(rec.changes))
	}
}
