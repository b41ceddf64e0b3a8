package forms

import (
	"context"
	"strings"
	"time"

	"ledgerly/internal/core"
	"ledgerly/internal/ledger"
	"ledgerly/internal/log"
	"ledgerly/internal/session"
)

type Mode string

const (
	ModeLogin    Mode = "login"
	ModeRegister Mode = "register"
)

// ParseMode defaults to login.
func ParseMode(s string) Mode {
	if Mode(strings.ToLower(strings.TrimSpace(s))) == ModeRegister {
		return ModeRegister
	}
	return ModeLogin
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == ModeRegister {
		return ModeLogin
	}
	return ModeRegister
}

// SessionStarter persists a successful login.
type SessionStarter interface {
	Login(ctx context.Context, token string, user core.User) error
}

// Auth is the login/register form. Both modes end in a logged-in session.
type Auth struct {
	*machine
	api     ledger.Authenticator
	session SessionStarter
	logger  *log.Logger
}

func NewAuth(api ledger.Authenticator, s SessionStarter, redirectDelay time.Duration, logger *log.Logger) *Auth {
	return &Auth{
		machine: newMachine(redirectDelay),
		api:     api,
		session: s,
		logger:  logger.WithComponent(log.ComponentForms),
	}
}

func (f *Auth) Submit(ctx context.Context, mode Mode, c core.Credentials) Result {
	if err := f.begin(); err != nil {
		return Result{Status: Submitting, Error: "Please wait for the current submission to finish"}
	}

	c.Email = strings.TrimSpace(c.Email)
	c.Username = strings.TrimSpace(c.Username)
	if err := c.Validate(mode == ModeRegister); err != nil {
		f.fail()
		return Result{Status: Failed, Error: ledger.Describe(err, "")}
	}

	var (
		res      ledger.AuthResult
		err      error
		fallback = "Login failed"
		op       = log.OpLogin
	)
	if mode == ModeRegister {
		fallback, op = "Registration failed", log.OpRegister
		res, err = f.api.Register(ctx, c.Username, c.Email, c.Password)
	} else {
		res, err = f.api.Login(ctx, c.Email, c.Password)
	}
	if err != nil {
		f.fail()
		f.logger.WarnContext(ctx, "Authentication failed", log.FieldOperation, op, log.FieldError, err)
		return Result{Status: Failed, Error: ledger.Describe(err, fallback)}
	}

	if res.Token == "" || res.User == (core.User{}) {
		f.fail()
		return Result{Status: Failed, Error: "Invalid response from server"}
	}
	if !session.LooksLikeToken(res.Token) {
		f.fail()
		return Result{Status: Failed, Error: "Invalid token received"}
	}
	if err := f.session.Login(ctx, res.Token, res.User); err != nil {
		f.fail()
		f.logger.ErrorContext(ctx, "Failed to persist session", log.FieldError, err)
		return Result{Status: Failed, Error: ledger.GenericFailure}
	}

	f.succeed()
	f.logger.InfoContext(ctx, "User authenticated", log.FieldOperation, op, log.FieldUserID, res.User.ID)
	msg := "Login successful!"
	if mode == ModeRegister {
		msg = "Registration successful!"
	}
	return Result{
		Status:        Succeeded,
		Success:       msg,
		Redirect:      "/dashboard",
		RedirectAfter: f.delay,
	}
}
