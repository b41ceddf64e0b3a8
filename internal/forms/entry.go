package forms

import (
	"context"
	"strings"
	"time"

	"ledgerly/internal/core"
	"ledgerly/internal/ledger"
	"ledgerly/internal/log"
)

// Creator is the gateway call behind an entry form.
type Creator interface {
	Create(ctx context.Context, d core.Draft) (core.Transaction, error)
}

// Entry is the add-income or add-expense form. The amount is stored with
// the sign of the form's kind whatever the user typed.
type Entry struct {
	*machine
	kind   core.Kind
	gw     Creator
	logger *log.Logger
}

func NewEntry(kind core.Kind, gw Creator, redirectDelay time.Duration, logger *log.Logger) *Entry {
	return &Entry{
		machine: newMachine(redirectDelay),
		kind:    kind,
		gw:      gw,
		logger:  logger.WithComponent(log.ComponentForms),
	}
}

func (f *Entry) Kind() core.Kind { return f.kind }

// Submit validates text and amount, then creates the transaction.
func (f *Entry) Submit(ctx context.Context, text, amount string) (core.Transaction, Result) {
	if err := f.begin(); err != nil {
		return core.Transaction{}, Result{Status: Submitting, Error: "Please wait for the current submission to finish"}
	}

	d, err := f.draft(text, amount)
	if err != nil {
		f.fail()
		return core.Transaction{}, Result{Status: Failed, Error: ledger.Describe(err, "")}
	}

	tx, err := f.gw.Create(ctx, d)
	if err != nil {
		f.fail()
		f.logger.WarnContext(ctx, "Add transaction failed", "kind", string(f.kind), log.FieldError, err)
		return core.Transaction{}, Result{
			Status:   Failed,
			Error:    ledger.Describe(err, f.fallback()),
			AuthLost: ledger.IsAuthFailure(err),
		}
	}

	f.succeed()
	return tx, Result{
		Status:        Succeeded,
		Success:       f.successMessage(),
		Redirect:      "/transactions",
		RedirectAfter: f.delay,
	}
}

func (f *Entry) draft(text, amount string) (core.Draft, error) {
	d := core.Draft{Text: strings.TrimSpace(text)}
	if err := d.Validate(); err != nil {
		return d, err
	}
	v, err := core.ParseAmount(amount)
	if err != nil {
		return d, err
	}
	d.Amount = f.kind.Normalize(v)
	return d, nil
}

func (f *Entry) fallback() string {
	if f.kind == core.Expense {
		return "Failed to add expense"
	}
	return "Failed to add income"
}

func (f *Entry) successMessage() string {
	if f.kind == core.Expense {
		return "Expense added successfully"
	}
	return "Income added successfully"
}
