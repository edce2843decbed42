package core

import "github.com/shopspring/decimal"

// Totals are the derived aggregates of a ledger. They have no storage of
// their own and are recomputed from the full list on every read.
type Totals struct {
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Balance  decimal.Decimal
}

// Equal compares the three figures by value.
func (t Totals) Equal(o Totals) bool {
	return t.Income.Equal(o.Income) && t.Expenses.Equal(o.Expenses) && t.Balance.Equal(o.Balance)
}

// ChangeType names a ledger mutation.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
)

// LedgerChange describes one completed mutation and the totals right after it.
type LedgerChange struct {
	Type        ChangeType
	SessionID   string
	Transaction Transaction
	Totals      Totals
	Count       int
}
