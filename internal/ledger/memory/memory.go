// Package memory is an in-process stand-in for the transactions API. It
// mirrors the server's observable behaviour: JWT bearer tokens valid for a
// day, per-user transaction lists and the same error messages.
package memory

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ledgerly/internal/core"
	"ledgerly/internal/ledger"
)

const tokenTTL = 24 * time.Hour

type user struct {
	profile  core.User
	password string
}

type Store struct {
	mu     sync.Mutex
	secret []byte
	users  map[string]*user // by email
	txs    map[string][]core.Transaction
	now    func() time.Time
}

var _ ledger.API = (*Store)(nil)

func New() *Store {
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)
	return &Store{
		secret: secret,
		users:  make(map[string]*user),
		txs:    make(map[string][]core.Transaction),
		now:    time.Now,
	}
}

// SetClock replaces time.Now; used in tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) Register(_ context.Context, username, email, password string) (ledger.AuthResult, error) {
	if username == "" || email == "" || password == "" {
		return ledger.AuthResult{}, apiErr(ledger.OpRegister, http.StatusBadRequest, "Missing required fields")
	}
	if len(password) < 8 {
		return ledger.AuthResult{}, apiErr(ledger.OpRegister, http.StatusBadRequest, "Password must be at least 8 characters")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	if _, exists := s.users[key]; exists {
		return ledger.AuthResult{}, apiErr(ledger.OpRegister, http.StatusConflict, "User already exists")
	}
	u := &user{
		profile:  core.User{ID: uuid.NewString(), Username: username, Email: email},
		password: password,
	}
	s.users[key] = u
	return s.issue(u)
}

func (s *Store) Login(_ context.Context, email, password string) (ledger.AuthResult, error) {
	if email == "" || password == "" {
		return ledger.AuthResult{}, apiErr(ledger.OpLogin, http.StatusBadRequest, "Missing email or password")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return ledger.AuthResult{}, apiErr(ledger.OpLogin, http.StatusNotFound, "User not found")
	}
	if u.password != password {
		return ledger.AuthResult{}, apiErr(ledger.OpLogin, http.StatusUnauthorized, "Invalid password")
	}
	return s.issue(u)
}

func (s *Store) ValidateToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.authenticate(ledger.OpValidate, token); err != nil {
		return err
	}
	return nil
}

func (s *Store) List(_ context.Context, token string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, err := s.authenticate(ledger.OpList, token)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(s.txs[uid])
	slices.SortStableFunc(out, func(a, b core.Transaction) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if out == nil {
		out = []core.Transaction{}
	}
	return out, nil
}

func (s *Store) Create(_ context.Context, token string, d core.Draft) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, err := s.authenticate(ledger.OpCreate, token)
	if err != nil {
		return core.Transaction{}, err
	}
	if strings.TrimSpace(d.Text) == "" {
		return core.Transaction{}, apiErr(ledger.OpCreate, http.StatusBadRequest, "Text and amount are required")
	}
	tx := core.Transaction{
		ID:        uuid.NewString(),
		Text:      d.Text,
		Amount:    d.Amount,
		CreatedAt: s.now().UTC(),
	}
	s.txs[uid] = append(s.txs[uid], tx)
	return tx, nil
}

func (s *Store) Update(_ context.Context, token, id string, d core.Draft) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, err := s.authenticate(ledger.OpUpdate, token)
	if err != nil {
		return core.Transaction{}, err
	}
	if strings.TrimSpace(d.Text) == "" {
		return core.Transaction{}, apiErr(ledger.OpUpdate, http.StatusBadRequest, "Text and amount are required")
	}
	list := s.txs[uid]
	for i := range list {
		if list[i].ID == id {
			list[i].Text = d.Text
			list[i].Amount = d.Amount
			return list[i], nil
		}
	}
	return core.Transaction{}, apiErr(ledger.OpUpdate, http.StatusNotFound, "Transaction not found")
}

func (s *Store) Delete(_ context.Context, token, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, err := s.authenticate(ledger.OpDelete, token)
	if err != nil {
		return err
	}
	list := s.txs[uid]
	for i := range list {
		if list[i].ID == id {
			s.txs[uid] = slices.Delete(list, i, i+1)
			return nil
		}
	}
	return apiErr(ledger.OpDelete, http.StatusNotFound, "Transaction not found")
}

// issue signs a token for u. Caller holds s.mu.
func (s *Store) issue(u *user) (ledger.AuthResult, error) {
	claims := jwt.MapClaims{
		"user_id": u.profile.ID,
		"exp":     jwt.NewNumericDate(s.now().Add(tokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return ledger.AuthResult{}, fmt.Errorf("sign token: %w", err)
	}
	return ledger.AuthResult{Token: signed, User: u.profile}, nil
}

// authenticate returns the user id carried by token. Caller holds s.mu.
func (s *Store) authenticate(op ledger.Op, token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", apiErr(op, http.StatusUnauthorized, "Unauthorized")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", apiErr(op, http.StatusUnauthorized, "Unauthorized")
	}
	uid, _ := claims["user_id"].(string)
	if uid == "" {
		return "", apiErr(op, http.StatusUnauthorized, "Unauthorized")
	}
	return uid, nil
}

func apiErr(op ledger.Op, status int, msg string) error {
	return &ledger.APIError{Op: op, Status: status, Message: msg}
}
