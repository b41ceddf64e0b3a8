// Package viewmodel holds the state behind each page: the fetched
// snapshot, the derived totals and the user's view criteria.
package viewmodel

import (
	"context"
	"errors"

	"ledgerly/internal/core"
	"ledgerly/internal/ledger"
)

// RecentCount is the number of transactions shown on the dashboard.
const RecentCount = 5

// Lister fetches the user's transactions.
type Lister interface {
	List(ctx context.Context) ([]core.Transaction, error)
}

type Dashboard struct {
	Stats    core.StatsView
	Recent   []core.Transaction
	Empty    bool
	Error    string
	AuthLost bool
}

// LoadDashboard fetches a fresh snapshot. On failure the dashboard shows
// zero totals, no rows and the error.
func LoadDashboard(ctx context.Context, l Lister) (Dashboard, error) {
	txs, err := l.List(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Dashboard{}, err
		}
		return Dashboard{
			Stats:    core.Stats{}.Display(),
			Empty:    true,
			Error:    ledger.Describe(err, "Failed to fetch transactions"),
			AuthLost: ledger.IsAuthFailure(err),
		}, nil
	}
	return Dashboard{
		Stats:  core.ComputeStats(txs).Display(),
		Recent: core.Recent(txs, RecentCount),
		Empty:  len(txs) == 0,
	}, nil
}
