package ledger

import (
	"github.com/shopspring/decimal"

	"balance/internal/core"
)

// Summarize derives income, expenses and balance from a full list of
// transactions. It keeps no state between calls.
func Summarize(items []core.Transaction) core.Totals {
	income := decimal.Zero
	expenses := decimal.Zero
	for _, tx := range items {
		switch tx.Kind {
		case core.Income:
			income = income.Add(tx.Amount)
		case core.Expense:
			expenses = expenses.Add(tx.Amount)
		}
	}
	return core.Totals{
		Income:   income,
		Expenses: expenses,
		Balance:  income.Sub(expenses),
	}
}
