package core

import (
	"slices"
	"strings"
)

const (
	FilterAll     Filter = "all"
	FilterIncome  Filter = "income"
	FilterExpense Filter = "expense"

	SortByDate   SortField = "date"
	SortByAmount SortField = "amount"

	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

type (
	Filter    string
	SortField string
	SortOrder string

	// Criteria are the user-selected view parameters of a transaction list.
	Criteria struct {
		Filter Filter
		Search string
		SortBy SortField
		Order  SortOrder
	}
)

// DefaultCriteria shows everything, newest first.
func DefaultCriteria() Criteria {
	return Criteria{Filter: FilterAll, SortBy: SortByDate, Order: Desc}
}

// ParseCriteria maps raw query values onto Criteria, falling back to the
// default for anything it does not recognise.
func ParseCriteria(filter, search, sortBy, order string) Criteria {
	c := DefaultCriteria()
	switch Filter(strings.TrimSpace(filter)) {
	case FilterIncome:
		c.Filter = FilterIncome
	case FilterExpense:
		c.Filter = FilterExpense
	}
	c.Search = search
	if SortField(strings.TrimSpace(sortBy)) == SortByAmount {
		c.SortBy = SortByAmount
	}
	if SortOrder(strings.TrimSpace(order)) == Asc {
		c.Order = Asc
	}
	return c
}

// Select derives the displayed subset of txs. It never mutates txs and
// returns a fresh slice; equal inputs always produce equal output.
func Select(txs []Transaction, c Criteria) []Transaction {
	term := strings.ToLower(c.Search)
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		switch c.Filter {
		case FilterIncome:
			if !t.IsIncome() {
				continue
			}
		case FilterExpense:
			if !t.IsExpense() {
				continue
			}
		}
		if term != "" && !strings.Contains(strings.ToLower(t.Text), term) {
			continue
		}
		out = append(out, t)
	}

	slices.SortStableFunc(out, func(a, b Transaction) int {
		var cmp int
		if c.SortBy == SortByAmount {
			cmp = a.Amount.Cmp(b.Amount)
		} else {
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c.Order == Asc {
			return cmp
		}
		return -cmp
	})
	return out
}

// Recent returns up to n transactions, newest first.
func Recent(txs []Transaction, n int) []Transaction {
	out := Select(txs, DefaultCriteria())
	if len(out) > n {
		out = out[:n]
	}
	return out
}
