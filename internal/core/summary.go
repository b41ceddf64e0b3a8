package core

import "github.com/shopspring/decimal"

// Stats are the dashboard totals. Expenses is a magnitude.
type Stats struct {
	Balance  decimal.Decimal
	Income   decimal.Decimal
	Expenses decimal.Decimal
}

// StatsView is Stats rounded to two decimals for display.
type StatsView struct {
	Balance  string
	Income   string
	Expenses string
	// Negative drives the expense styling of the balance card.
	Negative bool
}

// ComputeStats sums a transaction list in one pass.
func ComputeStats(txs []Transaction) Stats {
	var balance, income, expenses decimal.Decimal
	for _, t := range txs {
		balance = balance.Add(t.Amount)
		switch {
		case t.Amount.IsPositive():
			income = income.Add(t.Amount)
		case t.Amount.IsNegative():
			expenses = expenses.Add(t.Amount)
		}
	}
	return Stats{Balance: balance, Income: income, Expenses: expenses.Abs()}
}

func (s Stats) Display() StatsView {
	return StatsView{
		Balance:  s.Balance.StringFixed(2),
		Income:   s.Income.StringFixed(2),
		Expenses: s.Expenses.StringFixed(2),
		Negative: s.Balance.IsNegative(),
	}
}

// ApplyDelete adjusts a cached balance after deleted was removed server-side.
func ApplyDelete(balance decimal.Decimal, deleted Transaction) decimal.Decimal {
	return balance.Sub(deleted.Amount)
}

// ApplyUpdate adjusts a cached balance after before was replaced by after.
func ApplyUpdate(balance decimal.Decimal, before, after Transaction) decimal.Decimal {
	return balance.Sub(before.Amount).Add(after.Amount)
}
