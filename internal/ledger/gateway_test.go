package ledger_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerly/internal/cache"
	"ledgerly/internal/core"
	"ledgerly/internal/ledger"
	"ledgerly/internal/ledger/memory"
	"ledgerly/internal/log"
)

type fakeSession struct {
	token   string
	user    core.User
	logouts int
}

func (f *fakeSession) Token() string { return f.token }
func (f *fakeSession) User() core.User { return f.user }
func (f *fakeSession) Logout(context.Context) error {
	f.logouts++
	f.token, f.user = "", core.User{}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ledger.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e ledger.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

// countingStore wraps an API to count List calls and inject failures.
type countingStore struct {
	ledger.TransactionStore
	lists int
	err   error
}

func (c *countingStore) List(ctx context.Context, token string) ([]core.Transaction, error) {
	c.lists++
	if c.err != nil {
		return nil, c.err
	}
	return c.TransactionStore.List(ctx, token)
}

func setup(t *testing.T) (*memory.Store, *fakeSession) {
	t.Helper()
	api := memory.New()
	res, err := api.Register(context.Background(), "asha", "asha@example.com", "secret123")
	require.NoError(t, err)
	return api, &fakeSession{token: res.Token, user: res.User}
}

func draft(text, amount string) core.Draft {
	return core.Draft{Text: text, Amount: decimal.RequireFromString(amount)}
}

func TestGateway_NoTokenNeverCallsAPI(t *testing.T) {
	api, _ := setup(t)
	store := &countingStore{TransactionStore: api}
	g := ledger.NewGateway(store, &fakeSession{}, log.Discard())

	_, err := g.List(context.Background())
	assert.ErrorIs(t, err, ledger.ErrAuthRequired)
	_, err = g.Create(context.Background(), draft("x", "1"))
	assert.ErrorIs(t, err, ledger.ErrAuthRequired)
	assert.Zero(t, store.lists)
}

func TestGateway_ValidationBeforeNetwork(t *testing.T) {
	api, sess := setup(t)
	g := ledger.NewGateway(api, sess, log.Discard())

	_, err := g.Create(context.Background(), draft("  ", "5"))
	var ve *core.ValidationError
	assert.ErrorAs(t, err, &ve)

	txs, err := g.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestGateway_UnauthorizedLogsOut(t *testing.T) {
	api, sess := setup(t)
	store := &countingStore{TransactionStore: api, err: &ledger.APIError{Op: ledger.OpList, Status: http.StatusUnauthorized}}
	g := ledger.NewGateway(store, sess, log.Discard())

	_, err := g.List(context.Background())
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
	assert.Equal(t, 1, sess.logouts)
	assert.Empty(t, sess.token)
}

func TestGateway_OtherErrorsKeepSession(t *testing.T) {
	api, sess := setup(t)
	store := &countingStore{TransactionStore: api, err: &ledger.TransportError{Op: ledger.OpList, Err: errors.New("refused")}}
	g := ledger.NewGateway(store, sess, log.Discard())

	_, err := g.List(context.Background())
	require.Error(t, err)
	assert.Zero(t, sess.logouts)
}

func TestGateway_ListCacheInvalidatedByMutation(t *testing.T) {
	ctx := context.Background()
	api, sess := setup(t)
	store := &countingStore{TransactionStore: api}
	lists := cache.NewLRUCache[[]core.Transaction](10, time.Minute)
	g := ledger.NewGateway(store, sess, log.Discard(), ledger.WithListCache(lists))

	_, err := g.List(ctx)
	require.NoError(t, err)
	_, err = g.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.lists, "second list served from cache")

	_, err = g.Create(ctx, draft("Salary", "100"))
	require.NoError(t, err)
	txs, err := g.List(ctx)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Equal(t, 2, store.lists)

	g.Invalidate(sess.user.ID)
	_, err = g.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, store.lists)
}

func TestGateway_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	api, sess := setup(t)
	pub := &recordingPublisher{err: errors.New("broker down")}
	g := ledger.NewGateway(api, sess, log.Discard(), ledger.WithPublisher(pub))

	tx, err := g.Create(ctx, draft("Coffee", "-3.50"))
	require.NoError(t, err, "publish failures must not fail the mutation")
	_, err = g.Update(ctx, tx.ID, draft("Coffee", "-4"))
	require.NoError(t, err)
	require.NoError(t, g.Delete(ctx, tx))

	require.Len(t, pub.events, 3)
	assert.Equal(t, ledger.EventCreated, pub.events[0].Type)
	assert.Equal(t, ledger.EventUpdated, pub.events[1].Type)
	assert.Equal(t, ledger.EventDeleted, pub.events[2].Type)
	assert.Equal(t, sess.user.ID, pub.events[2].UserID)
	assert.True(t, pub.events[2].Transaction.Amount.Equal(decimal.RequireFromString("-3.50")))
}
