// Package rest talks to the transactions API over HTTP/JSON.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"ledgerly/internal/core"
	"ledgerly/internal/ledger"
)

const (
	loginPath         = "/api/login"
	registerPath      = "/api/register"
	validatePath      = "/api/validate-token"
	transactionsPath  = "/api/transactions"
	maxErrorBodyBytes = 64 << 10
)

// Client implements ledger.API. It applies no timeout of its own; callers
// bound each call through ctx.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ ledger.API = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// errorResponse is the failure body. Create failures use "error", every
// other endpoint uses "message".
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type listResponse struct {
	Transactions []core.Transaction `json:"transactions"`
}

type createResponse struct {
	ID          json.RawMessage   `json:"id"`
	Transaction *core.Transaction `json:"transaction"`
}

type updateResponse struct {
	Transaction *core.Transaction `json:"transaction"`
}

func (c *Client) Login(ctx context.Context, email, password string) (ledger.AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	var res ledger.AuthResult
	err := c.do(ctx, ledger.OpLogin, http.MethodPost, loginPath, "", body, &res)
	return res, err
}

func (c *Client) Register(ctx context.Context, username, email, password string) (ledger.AuthResult, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	var res ledger.AuthResult
	err := c.do(ctx, ledger.OpRegister, http.MethodPost, registerPath, "", body, &res)
	return res, err
}

func (c *Client) ValidateToken(ctx context.Context, token string) error {
	return c.do(ctx, ledger.OpValidate, http.MethodGet, validatePath, token, nil, nil)
}

func (c *Client) List(ctx context.Context, token string) ([]core.Transaction, error) {
	var res listResponse
	if err := c.do(ctx, ledger.OpList, http.MethodGet, transactionsPath, token, nil, &res); err != nil {
		return nil, err
	}
	if res.Transactions == nil {
		return []core.Transaction{}, nil
	}
	return res.Transactions, nil
}

func (c *Client) Create(ctx context.Context, token string, d core.Draft) (core.Transaction, error) {
	var res createResponse
	if err := c.do(ctx, ledger.OpCreate, http.MethodPost, transactionsPath, token, d, &res); err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{Text: d.Text, Amount: d.Amount}
	if res.Transaction != nil {
		tx = *res.Transaction
	} else {
		tx.ID = rawID(res.ID)
	}
	return tx, nil
}

func (c *Client) Update(ctx context.Context, token, id string, d core.Draft) (core.Transaction, error) {
	var res updateResponse
	path := transactionsPath + "/" + url.PathEscape(id)
	if err := c.do(ctx, ledger.OpUpdate, http.MethodPut, path, token, d, &res); err != nil {
		return core.Transaction{}, err
	}
	if res.Transaction != nil {
		return *res.Transaction, nil
	}
	return core.Transaction{ID: id, Text: d.Text, Amount: d.Amount}, nil
}

func (c *Client) Delete(ctx context.Context, token, id string) error {
	path := transactionsPath + "/" + url.PathEscape(id)
	return c.do(ctx, ledger.OpDelete, http.MethodDelete, path, token, nil, nil)
}

// do performs one request. A nil out skips decoding of the success body.
func (c *Client) do(ctx context.Context, op ledger.Op, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &ledger.TransportError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &ledger.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &ledger.APIError{Op: op, Status: resp.StatusCode, Message: errorMessage(op, raw)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ledger.TransportError{Op: op, Err: fmt.Errorf("read response body: %w", err)}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		if op == ledger.OpCreate || op == ledger.OpUpdate {
			return nil
		}
		return &ledger.TransportError{Op: op, Err: errors.New("empty response body")}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ledger.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// rawID accepts a string or numeric id; anything else yields "".
func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// errorMessage extracts the server's text from a failure body. Non-JSON
// bodies yield an empty message so callers fall back to a generic one.
func errorMessage(op ledger.Op, raw []byte) string {
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err != nil {
		return ""
	}
	primary, secondary := er.Message, er.Error
	if op == ledger.OpCreate {
		primary, secondary = er.Error, er.Message
	}
	if s := strings.TrimSpace(primary); s != "" {
		return s
	}
	return strings.TrimSpace(secondary)
}
