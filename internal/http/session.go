package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"ledgerly/internal/core"
	"ledgerly/internal/forms"
	"ledgerly/internal/ledger"
	"ledgerly/internal/log"
	"ledgerly/internal/session"
	"ledgerly/internal/viewmodel"
)

const (
	SessionCookieName = "ledgerly_sid"
	// SessionNamespace prefixes the client-state namespace of every browser.
	SessionNamespace  = "web:"
)

type sessionCtxKey struct{}

// browserSession is everything the server keeps for one browser: the auth
// session, its gateway, and the form and page state built on top.
type browserSession struct {
	id      string
	store   *session.Store
	gw      *ledger.Gateway
	page    *viewmodel.TransactionsPage
	auth    *forms.Auth
	income  *forms.Entry
	expense *forms.Entry
}

func (s *Server) newBrowserSession(sid string) *browserSession {
	logger := s.logger.With(log.FieldSessionID, sid)
	store := session.New(s.state.Namespace(SessionNamespace+sid), s.api, logger)

	var opts []ledger.GatewayOption
	if s.listCache != nil {
		opts = append(opts, ledger.WithListCache(s.listCache))
	}
	if s.publisher != nil {
		opts = append(opts, ledger.WithPublisher(s.publisher))
	}
	gw := ledger.NewGateway(s.api, store, logger, opts...)

	return &browserSession{
		id:      sid,
		store:   store,
		gw:      gw,
		page:    viewmodel.NewTransactionsPage(gw, logger),
		auth:    forms.NewAuth(s.api, store, s.opts.RedirectDelay, logger),
		income:  forms.NewEntry(core.Income, gw, s.opts.RedirectDelay, logger),
		expense: forms.NewEntry(core.Expense, gw, s.opts.RedirectDelay, logger),
	}
}

// withSession resolves the browser session from its cookie, issuing a new
// one when absent or malformed, and validates it before the handler runs.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := ""
		if c, err := r.Cookie(SessionCookieName); err == nil {
			if id, err := uuid.Parse(c.Value); err == nil {
				sid = id.String()
			}
		}
		if sid == "" {
			sid = uuid.NewString()
		}
		s.setSessionCookie(w, sid)

		bs := s.sessions.GetOrCreate(sid, func() *browserSession { return s.newBrowserSession(sid) })
		if err := bs.store.Validate(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Session validation failed", log.FieldSessionID, sid, log.FieldError, err)
		}

		ctx := context.WithValue(r.Context(), sessionCtxKey{}, bs)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// setSessionCookie refreshes the sliding expiry on every request.
func (s *Server) setSessionCookie(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(s.opts.SessionIdleTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionFrom(r *http.Request) *browserSession {
	bs, _ := r.Context().Value(sessionCtxKey{}).(*browserSession)
	return bs
}

// requireAuth sends anonymous visitors to the login page.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bs := sessionFrom(r)
		if bs == nil || !bs.store.IsAuthenticated() {
			redirect(w, r, "/login")
			return
		}
		next(w, r)
	}
}

// redirect navigates the browser, via HX-Redirect for htmx requests.
func redirect(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMX(r) {
		NewHTMXResponse().Redirect(path).Write(w)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
