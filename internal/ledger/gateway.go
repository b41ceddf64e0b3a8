package ledger

import (
	"context"
	"errors"
	"time"

	"ledgerly/internal/cache"
	"ledgerly/internal/core"
	"ledgerly/internal/log"
)

// Session is the slice of the session store the gateway needs.
type Session interface {
	Token() string
	User() core.User
	Logout(ctx context.Context) error
}

// Gateway attaches the session token to every transaction call and ends the
// session when the server rejects it. One Gateway serves one session.
type Gateway struct {
	api       TransactionStore
	session   Session
	logger    *log.Logger
	lists     cache.Cache[[]core.Transaction]
	publisher Publisher
	now       func() time.Time
}

type GatewayOption func(*Gateway)

// WithListCache serves List from c, keyed by user id, until a mutation or
// an external event invalidates the entry.
func WithListCache(c cache.Cache[[]core.Transaction]) GatewayOption {
	return func(g *Gateway) { g.lists = c }
}

func WithPublisher(p Publisher) GatewayOption {
	return func(g *Gateway) { g.publisher = p }
}

func NewGateway(api TransactionStore, session Session, logger *log.Logger, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		api:     api,
		session: session,
		logger:  logger.WithComponent(log.ComponentGateway),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) token() (string, error) {
	t := g.session.Token()
	if t == "" {
		return "", ErrAuthRequired
	}
	return t, nil
}

// fail logs err and, for auth failures, logs the session out.
func (g *Gateway) fail(ctx context.Context, op Op, err error) error {
	if errors.Is(err, ErrUnauthorized) {
		g.logger.WarnContext(ctx, "Token rejected, ending session", log.FieldOperation, string(op))
		if lerr := g.session.Logout(ctx); lerr != nil {
			g.logger.ErrorContext(ctx, "Logout after rejection failed", log.FieldError, lerr)
		}
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	g.logger.WarnContext(ctx, "Ledger call failed", log.FieldOperation, string(op), log.FieldError, err)
	return err
}

func (g *Gateway) List(ctx context.Context) ([]core.Transaction, error) {
	token, err := g.token()
	if err != nil {
		return nil, err
	}
	key := g.session.User().ID
	if g.lists != nil && key != "" {
		if txs, ok := g.lists.Get(key); ok {
			return append([]core.Transaction(nil), txs...), nil
		}
	}

	txs, err := g.api.List(ctx, token)
	if err != nil {
		return nil, g.fail(ctx, OpList, err)
	}
	if g.lists != nil && key != "" {
		g.lists.Set(key, append([]core.Transaction(nil), txs...))
	}
	g.logger.DebugContext(ctx, "Fetched transactions", log.FieldCount, len(txs))
	return txs, nil
}

func (g *Gateway) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}
	token, err := g.token()
	if err != nil {
		return core.Transaction{}, err
	}
	tx, err := g.api.Create(ctx, token, d)
	if err != nil {
		return core.Transaction{}, g.fail(ctx, OpCreate, err)
	}
	g.changed(ctx, OpCreate, EventCreated, tx)
	return tx, nil
}

func (g *Gateway) Update(ctx context.Context, id string, d core.Draft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}
	token, err := g.token()
	if err != nil {
		return core.Transaction{}, err
	}
	tx, err := g.api.Update(ctx, token, id, d)
	if err != nil {
		return core.Transaction{}, g.fail(ctx, OpUpdate, err)
	}
	g.changed(ctx, OpUpdate, EventUpdated, tx)
	return tx, nil
}

// Delete removes tx on the server. The full record is passed so the event
// can carry the amount that left the balance.
func (g *Gateway) Delete(ctx context.Context, tx core.Transaction) error {
	token, err := g.token()
	if err != nil {
		return err
	}
	if err := g.api.Delete(ctx, token, tx.ID); err != nil {
		return g.fail(ctx, OpDelete, err)
	}
	g.changed(ctx, OpDelete, EventDeleted, tx)
	return nil
}

// Invalidate drops the cached list of userID.
func (g *Gateway) Invalidate(userID string) {
	if g.lists != nil {
		g.lists.Delete(userID)
	}
}

func (g *Gateway) changed(ctx context.Context, op Op, typ EventType, tx core.Transaction) {
	userID := g.session.User().ID
	g.Invalidate(userID)
	log.NewStructuredLogger(g.logger).LogTransaction(ctx, string(op), tx.ID, tx.Text, tx.Amount.StringFixed(2))

	if g.publisher == nil {
		return
	}
	ev := Event{Type: typ, UserID: userID, Transaction: tx, At: g.now().UTC()}
	// Delivery is best effort; the mutation already succeeded.
	if err := g.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		g.logger.WarnContext(ctx, "Failed to publish event", log.FieldOperation, string(typ), log.FieldError, err)
	}
}
