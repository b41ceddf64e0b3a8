package viewmodel

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"ledgerly/internal/core"
	"ledgerly/internal/forms"
	"ledgerly/internal/ledger"
	"ledgerly/internal/log"
)

// ErrSuperseded is returned by Refresh when a newer refresh started first.
var ErrSuperseded = errors.New("refresh superseded")

// Ledger is the gateway surface the transactions page uses.
type Ledger interface {
	Lister
	forms.Updater
	Delete(ctx context.Context, tx core.Transaction) error
}

// TransactionsPage owns the list snapshot of one session. Network calls
// run without the lock; their results are applied only if no refresh
// replaced the snapshot in the meantime, otherwise the page goes stale.
type TransactionsPage struct {
	gw     Ledger
	edit   *forms.Edit
	logger *log.Logger

	mu       sync.Mutex
	txs      []core.Transaction
	balance  decimal.Decimal
	loaded   bool
	stale    bool
	gen      uint64
	criteria core.Criteria
	err      string
	authLost bool

	editingID  string
	editText   string
	editAmount string
}

// PageView is a consistent copy of the page state for rendering.
type PageView struct {
	Rows            []core.Transaction
	Total           int
	Balance         decimal.Decimal
	BalanceNegative bool
	Criteria        core.Criteria
	Loaded          bool
	Error           string
	AuthLost        bool
	EditingID       string
	EditText        string
	EditAmount      string
}

func NewTransactionsPage(gw Ledger, logger *log.Logger) *TransactionsPage {
	return &TransactionsPage{
		gw:       gw,
		edit:     forms.NewEdit(gw),
		logger:   logger.WithComponent(log.ComponentView),
		criteria: core.DefaultCriteria(),
	}
}

// Refresh replaces the snapshot with a fresh fetch and recomputes the
// balance. A failed fetch leaves an empty list and the error.
func (p *TransactionsPage) Refresh(ctx context.Context) error {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	txs, err := p.gw.List(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		p.logger.DebugContext(ctx, "Dropping superseded refresh", log.FieldGeneration, gen)
		return ErrSuperseded
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	p.loaded = true
	if err != nil {
		p.txs = nil
		p.balance = decimal.Zero
		p.stale = true
		p.err = ledger.Describe(err, "Failed to fetch transactions")
		p.authLost = ledger.IsAuthFailure(err)
		return err
	}
	p.txs = txs
	p.balance = core.ComputeStats(txs).Balance
	p.stale = false
	p.err = ""
	p.authLost = false
	if p.editingID != "" && p.find(p.editingID) < 0 {
		p.clearEdit()
	}
	return nil
}

// EnsureFresh refreshes only when nothing was loaded or the snapshot is stale.
func (p *TransactionsPage) EnsureFresh(ctx context.Context) error {
	p.mu.Lock()
	need := !p.loaded || p.stale
	p.mu.Unlock()
	if !need {
		return nil
	}
	return p.Refresh(ctx)
}

// MarkStale forces the next EnsureFresh to refetch.
func (p *TransactionsPage) MarkStale() {
	p.mu.Lock()
	p.stale = true
	p.mu.Unlock()
}

func (p *TransactionsPage) SetCriteria(c core.Criteria) {
	p.mu.Lock()
	p.criteria = c
	p.mu.Unlock()
}

func (p *TransactionsPage) Criteria() core.Criteria {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.criteria
}

// Visible derives the displayed rows from the current snapshot and criteria.
func (p *TransactionsPage) Visible() []core.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return core.Select(p.txs, p.criteria)
}

// Balance is the cached balance of the whole snapshot, not of the
// filtered rows.
func (p *TransactionsPage) Balance() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance
}

func (p *TransactionsPage) View() PageView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PageView{
		Rows:            core.Select(p.txs, p.criteria),
		Total:           len(p.txs),
		Balance:         p.balance,
		BalanceNegative: p.balance.IsNegative(),
		Criteria:        p.criteria,
		Loaded:          p.loaded,
		Error:           p.err,
		AuthLost:        p.authLost,
		EditingID:       p.editingID,
		EditText:        p.editText,
		EditAmount:      p.editAmount,
	}
}

// Lookup returns the snapshot copy of id.
func (p *TransactionsPage) Lookup(id string) (core.Transaction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i := p.find(id); i >= 0 {
		return p.txs[i], true
	}
	return core.Transaction{}, false
}

// BeginEdit enters inline edit mode for id, pre-filling the description
// and the absolute amount. Only one row is edited at a time.
func (p *TransactionsPage) BeginEdit(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.find(id)
	if i < 0 {
		return false
	}
	p.editingID = id
	p.editText, p.editAmount = forms.Prefill(p.txs[i])
	p.err = ""
	return true
}

func (p *TransactionsPage) CancelEdit() {
	p.mu.Lock()
	p.clearEdit()
	p.mu.Unlock()
}

// SaveEdit submits the inline edit of id. On success the row is replaced
// and the balance adjusted by the difference; on failure the typed values
// stay in the form.
func (p *TransactionsPage) SaveEdit(ctx context.Context, id, text, amount string) forms.Result {
	p.mu.Lock()
	i := p.find(id)
	if i < 0 {
		p.stale = true
		p.mu.Unlock()
		return forms.Result{Status: forms.Failed, Error: "Transaction not found"}
	}
	original := p.txs[i]
	gen := p.gen
	p.editingID, p.editText, p.editAmount = id, text, amount
	p.mu.Unlock()

	saved, res := p.edit.Submit(ctx, original, text, amount)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.authLost = res.AuthLost
	if res.Status != forms.Succeeded {
		p.err = res.Error
		return res
	}
	p.err = ""
	p.clearEdit()
	if gen != p.gen {
		p.stale = true
		return res
	}
	if j := p.find(id); j >= 0 {
		p.txs = slices.Clone(p.txs)
		p.txs[j] = saved
		p.balance = core.ApplyUpdate(p.balance, original, saved)
	} else {
		p.stale = true
	}
	return res
}

// Delete removes id on the server, then from the snapshot, adjusting the
// cached balance by the removed amount.
func (p *TransactionsPage) Delete(ctx context.Context, id string) error {
	p.mu.Lock()
	i := p.find(id)
	if i < 0 {
		p.stale = true
		p.err = "Transaction not found"
		p.mu.Unlock()
		return &ledger.APIError{Op: ledger.OpDelete, Status: 404, Message: "Transaction not found"}
	}
	tx := p.txs[i]
	gen := p.gen
	p.mu.Unlock()

	err := p.gw.Delete(ctx, tx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.err = ledger.Describe(err, "Failed to delete transaction")
		p.authLost = ledger.IsAuthFailure(err)
		return err
	}
	p.err = ""
	if p.editingID == id {
		p.clearEdit()
	}
	if gen != p.gen {
		p.stale = true
		return nil
	}
	if j := p.find(id); j >= 0 {
		p.txs = slices.Delete(slices.Clone(p.txs), j, j+1)
		p.balance = core.ApplyDelete(p.balance, tx)
	} else {
		p.stale = true
	}
	return nil
}

// Err is the message of the last failed operation.
func (p *TransactionsPage) Err() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *TransactionsPage) find(id string) int {
	return slices.IndexFunc(p.txs, func(t core.Transaction) bool { return t.ID == id })
}

func (p *TransactionsPage) clearEdit() {
	p.editingID, p.editText, p.editAmount = "", "", ""
}
