package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

type (
	// Kind is derived from the sign of an amount; it is never stored.
	Kind string

	Transaction struct {
		ID        string          `json:"id"`
		Text      string          `json:"text"`
		Amount    decimal.Decimal `json:"amount"`
		CreatedAt time.Time       `json:"created_at"`
	}

	// Draft is the payload of a create or update call.
	Draft struct {
		Text   string
		Amount decimal.Decimal
	}

	// User is the profile returned by login/register with the token merged in.
	User struct {
		ID       string `json:"id,omitempty"`
		Username string `json:"username,omitempty"`
		Email    string `json:"email,omitempty"`
		Token    string `json:"token,omitempty"`
	}

	// Credentials carries login or register form input.
	Credentials struct {
		Username string
		Email    string
		Password string
	}
)

var (
	ErrEmptyText     = errors.New("empty description")
	ErrMissingAmount = errors.New("missing amount")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrMissingFields = errors.New("missing required fields")
)

// ValidationError is a client-side rejection that never reaches the network.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsIncome reports amount > 0.
func (t Transaction) IsIncome() bool { return t.Amount.IsPositive() }

// IsExpense reports amount < 0.
func (t Transaction) IsExpense() bool { return t.Amount.IsNegative() }

// Kind classifies zero amounts as income for display purposes only;
// filtering uses IsIncome/IsExpense and excludes zero from both.
func (t Transaction) Kind() Kind {
	if t.IsExpense() {
		return Expense
	}
	return Income
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.Text) == "" {
		return &ValidationError{Field: "text", Err: ErrEmptyText}
	}
	return nil
}

// MarshalJSON writes the wire body {text, amount} with amount as a JSON number.
func (d Draft) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Text   string      `json:"text"`
		Amount json.Number `json:"amount"`
	}{
		Text:   d.Text,
		Amount: json.Number(d.Amount.String()),
	})
}

// MarshalJSON keeps amount a JSON number; decimal quotes it by default.
func (t Transaction) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID        string      `json:"id"`
		Text      string      `json:"text"`
		Amount    json.Number `json:"amount"`
		CreatedAt string      `json:"created_at,omitempty"`
	}
	w := wire{ID: t.ID, Text: t.Text, Amount: json.Number(t.Amount.String())}
	if !t.CreatedAt.IsZero() {
		w.CreatedAt = t.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(w)
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	var w struct {
		ID        json.RawMessage `json:"id"`
		Text      string          `json:"text"`
		Amount    decimal.Decimal `json:"amount"`
		CreatedAt string          `json:"created_at"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id, err := decodeID(w.ID)
	if err != nil {
		return err
	}
	t.ID = id
	t.Text = w.Text
	t.Amount = w.Amount
	t.CreatedAt = ParseTimestamp(w.CreatedAt)
	return nil
}

// decodeID accepts string or numeric identifiers.
func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("decode id: %w", err)
	}
	return n.String(), nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02",
}

// ParseTimestamp accepts ISO-8601 and the RFC 1123 form Flask emits.
// Unparseable input yields the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (c Credentials) Validate(register bool) error {
	if strings.TrimSpace(c.Email) == "" || c.Password == "" {
		return &ValidationError{Field: "credentials", Err: ErrMissingFields}
	}
	if register && strings.TrimSpace(c.Username) == "" {
		return &ValidationError{Field: "username", Err: ErrMissingFields}
	}
	return nil
}
