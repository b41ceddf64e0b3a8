package forms

import (
	"context"
	"strings"

	"ledgerly/internal/core"
	"ledgerly/internal/ledger"
)

// Updater is the gateway call behind the inline edit form.
type Updater interface {
	Update(ctx context.Context, id string, d core.Draft) (core.Transaction, error)
}

// Edit saves an inline edit. The typed magnitude takes the sign of the
// original record so an expense stays an expense.
type Edit struct {
	*machine
	gw Updater
}

func NewEdit(gw Updater) *Edit {
	return &Edit{machine: newMachine(0), gw: gw}
}

// Prefill returns the field values an edit starts from.
func Prefill(tx core.Transaction) (text, amount string) {
	return tx.Text, tx.Amount.Abs().String()
}

// Submit updates original with the typed values and returns the saved
// record. When the server omits timestamps the original's are kept.
func (f *Edit) Submit(ctx context.Context, original core.Transaction, text, amount string) (core.Transaction, Result) {
	if err := f.begin(); err != nil {
		return core.Transaction{}, Result{Status: Submitting, Error: "Please wait for the current submission to finish"}
	}

	d := core.Draft{Text: strings.TrimSpace(text)}
	if err := d.Validate(); err != nil {
		f.fail()
		return core.Transaction{}, Result{Status: Failed, Error: ledger.Describe(err, "")}
	}
	v, err := core.ParseAmount(amount)
	if err != nil {
		f.fail()
		return core.Transaction{}, Result{Status: Failed, Error: ledger.Describe(err, "")}
	}
	d.Amount = core.WithSignOf(original.Amount, v)

	saved, err := f.gw.Update(ctx, original.ID, d)
	if err != nil {
		f.fail()
		return core.Transaction{}, Result{
			Status:   Failed,
			Error:    ledger.Describe(err, "Failed to update transaction"),
			AuthLost: ledger.IsAuthFailure(err),
		}
	}
	if saved.ID == "" {
		saved.ID = original.ID
	}
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = original.CreatedAt
	}

	f.succeed()
	return saved, Result{Status: Succeeded}
}
