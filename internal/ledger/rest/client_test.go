package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerly/internal/core"
	"ledgerly/internal/ledger"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestList_SendsBearerAndDecodes(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/transactions", r.URL.Path)
		assert.Equal(t, "Bearer tok-123456789", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success":true,"transactions":[
			{"id":"a","text":"Salary","amount":3000,"user_id":"u","created_at":"Mon, 15 Jan 2024 10:00:00 GMT"},
			{"id":"b","text":"Rent","amount":-1200.50,"created_at":"2024-01-16T09:00:00"}]}`)
	})

	txs, err := c.List(context.Background(), "tok-123456789")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "Salary", txs[0].Text)
	assert.True(t, txs[1].Amount.Equal(decimal.RequireFromString("-1200.5")))
	assert.Equal(t, 2024, txs[1].CreatedAt.Year())
}

func TestList_EmptyArray(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"transactions":null}`)
	})
	txs, err := c.List(context.Background(), "tok")
	require.NoError(t, err)
	assert.NotNil(t, txs)
	assert.Empty(t, txs)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		call        func(*Client) error
		wantMessage string
		wantUnauth  bool
	}{
		{
			name:        "list uses message",
			status:      http.StatusInternalServerError,
			body:        `{"message":"db down","success":false}`,
			call:        func(c *Client) error { _, err := c.List(context.Background(), "t"); return err },
			wantMessage: "db down",
		},
		{
			name:   "create prefers error field",
			status: http.StatusBadRequest,
			body:   `{"error":"Amount too large","message":"ignored"}`,
			call: func(c *Client) error {
				_, err := c.Create(context.Background(), "t", core.Draft{Text: "x", Amount: decimal.NewFromInt(1)})
				return err
			},
			wantMessage: "Amount too large",
		},
		{
			name:   "create falls back to message",
			status: http.StatusBadRequest,
			body:   `{"message":"Text and amount are required"}`,
			call: func(c *Client) error {
				_, err := c.Create(context.Background(), "t", core.Draft{Text: "x", Amount: decimal.NewFromInt(1)})
				return err
			},
			wantMessage: "Text and amount are required",
		},
		{
			name:        "delete not found",
			status:      http.StatusNotFound,
			body:        `{"message":"Transaction not found"}`,
			call:        func(c *Client) error { return c.Delete(context.Background(), "t", "x") },
			wantMessage: "Transaction not found",
		},
		{
			name:        "non json body leaves message empty",
			status:      http.StatusBadGateway,
			body:        `<html>bad gateway</html>`,
			call:        func(c *Client) error { return c.Delete(context.Background(), "t", "x") },
			wantMessage: "",
		},
		{
			name:        "401 matches ErrUnauthorized",
			status:      http.StatusUnauthorized,
			body:        `{"message":"Unauthorized"}`,
			call:        func(c *Client) error { _, err := c.List(context.Background(), "t"); return err },
			wantMessage: "Unauthorized",
			wantUnauth:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			err := tt.call(c)
			var apiErr *ledger.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.wantUnauth, errors.Is(err, ledger.ErrUnauthorized))

			var te *ledger.TransportError
			assert.False(t, errors.As(err, &te))
		})
	}
}

func TestTransportErrors(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		c := NewClient(srv.URL)
		srv.Close()

		_, err := c.List(context.Background(), "t")
		var te *ledger.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, ledger.OpList, te.Op)
		assert.Equal(t, ledger.GenericFailure, ledger.Describe(err, "Failed to fetch transactions"))
	})

	t.Run("malformed success body", func(t *testing.T) {
		c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"transactions":[`)
		})
		_, err := c.List(context.Background(), "t")
		var te *ledger.TransportError
		require.ErrorAs(t, err, &te)
	})

	t.Run("cancelled context is not a transport error", func(t *testing.T) {
		c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.List(ctx, "t")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCreate_SendsNumericAmount(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Groceries", body["text"])
		assert.Equal(t, -50.25, body["amount"])
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"message":"Transaction added successfully","id":"65b"}`)
	})

	tx, err := c.Create(context.Background(), "t", core.Draft{Text: "Groceries", Amount: decimal.RequireFromString("-50.25")})
	require.NoError(t, err)
	assert.Equal(t, "65b", tx.ID)
	assert.Equal(t, "Groceries", tx.Text)
}

func TestUpdate(t *testing.T) {
	t.Run("server copy", func(t *testing.T) {
		c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/api/transactions/abc", r.URL.Path)
			io.WriteString(w, `{"message":"Transaction updated","transaction":{"id":"abc","text":"Rent","amount":-900,"created_at":"2024-01-02T00:00:00Z"}}`)
		})
		tx, err := c.Update(context.Background(), "t", "abc", core.Draft{Text: "Rent", Amount: decimal.NewFromInt(-900)})
		require.NoError(t, err)
		assert.Equal(t, "abc", tx.ID)
		assert.False(t, tx.CreatedAt.IsZero())
	})

	t.Run("missing transaction falls back to draft", func(t *testing.T) {
		c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"message":"Transaction updated"}`)
		})
		tx, err := c.Update(context.Background(), "t", "abc", core.Draft{Text: "Rent", Amount: decimal.NewFromInt(-900)})
		require.NoError(t, err)
		assert.Equal(t, "abc", tx.ID)
		assert.Equal(t, "Rent", tx.Text)
		assert.True(t, tx.CreatedAt.IsZero())
	})
}

func TestLoginAndValidate(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login":
			assert.Empty(t, r.Header.Get("Authorization"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body["password"] != "secret123" {
				w.WriteHeader(http.StatusUnauthorized)
				io.WriteString(w, `{"message":"Invalid password"}`)
				return
			}
			io.WriteString(w, `{"message":"Login successful","token":"header.payload.sig","user":{"id":"u1","username":"asha","email":"a@x.io"}}`)
		case "/api/validate-token":
			if r.Header.Get("Authorization") != "Bearer header.payload.sig" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	res, err := c.Login(context.Background(), "a@x.io", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "header.payload.sig", res.Token)
	assert.Equal(t, "asha", res.User.Username)

	_, err = c.Login(context.Background(), "a@x.io", "wrong")
	assert.Equal(t, "Invalid password", ledger.Describe(err, "Login failed"))

	require.NoError(t, c.ValidateToken(context.Background(), res.Token))
	assert.ErrorIs(t, c.ValidateToken(context.Background(), "stale-token-value"), ledger.ErrUnauthorized)
}
