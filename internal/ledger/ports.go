// Package ledger is the client side of the transactions API: the ports the
// API adapters implement, the error taxonomy shared by every caller, and the
// Gateway that binds an API to a user session.
package ledger

import (
	"context"

	"ledgerly/internal/core"
)

// Ports for outbound adapters.
type (
	// Authenticator exchanges credentials for a bearer token.
	Authenticator interface {
		Login(ctx context.Context, email, password string) (AuthResult, error)
		Register(ctx context.Context, username, email, password string) (AuthResult, error)
		// ValidateToken succeeds only for a token the server still accepts.
		ValidateToken(ctx context.Context, token string) error
	}

	// TransactionStore is the bearer-authenticated CRUD surface.
	TransactionStore interface {
		List(ctx context.Context, token string) ([]core.Transaction, error)
		// Create returns what the server echoed; fields it did not send
		// are taken from the draft.
		Create(ctx context.Context, token string, d core.Draft) (core.Transaction, error)
		// Update returns the server's copy of the record, or a local one
		// built from id and d when the response omits it. CreatedAt is
		// zero in the latter case.
		Update(ctx context.Context, token, id string, d core.Draft) (core.Transaction, error)
		Delete(ctx context.Context, token, id string) error
	}

	API interface {
		Authenticator
		TransactionStore
	}
)

// AuthResult is the body of a successful login or register call.
type AuthResult struct {
	Token string    `json:"token"`
	User  core.User `json:"user"`
}
