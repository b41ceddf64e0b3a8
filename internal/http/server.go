package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"ledgerly/internal/cache"
	"ledgerly/internal/config"
	"ledgerly/internal/core"
	"ledgerly/internal/ledger"
	"ledgerly/internal/log"
	"ledgerly/internal/middleware/ratelimit"
	"ledgerly/internal/middleware/security"
	"ledgerly/internal/middleware/trace"
	"ledgerly/internal/storage"
	appweb "ledgerly/web"
)

// Options are the server settings taken from config.
type Options struct {
	Addr             string
	SecureCookies    bool
	RedirectDelay    time.Duration
	CurrencySymbol   string
	SessionCacheSize int
	SessionIdleTTL   time.Duration
	ListCacheTTL     time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Addr:             ":" + cfg.Port,
		SecureCookies:    cfg.SecureCookies,
		RedirectDelay:    cfg.RedirectDelay,
		CurrencySymbol:   cfg.CurrencySymbol,
		SessionCacheSize: cfg.SessionCacheSize,
		SessionIdleTTL:   cfg.SessionIdleTTL,
		ListCacheTTL:     cfg.ListCacheTTL,
	}
}

// Exporter writes a transaction view somewhere outside the app.
type Exporter interface {
	Export(ctx context.Context, txs []core.Transaction) (string, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	opts   Options
	api    ledger.API
	state  storage.Namespaced
	logger *log.Logger

	pages    map[string]*template.Template
	partials *template.Template

	sessions  *cache.LRUCache[*browserSession]
	listCache *cache.LRUCache[[]core.Transaction]
	publisher ledger.Publisher
	exporter  Exporter

	limiter *ratelimit.Limiter
	tracer  *trace.Middleware

	started      time.Time
	shutdownOnce sync.Once
}

type ServerOption func(*Server)

// WithPublisher announces every successful mutation.
func WithPublisher(p ledger.Publisher) ServerOption {
	return func(s *Server) { s.publisher = p }
}

// WithExporter enables POST /transactions/export.
func WithExporter(e Exporter) ServerOption {
	return func(s *Server) { s.exporter = e }
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(opts Options, api ledger.API, state storage.Namespaced, logger *log.Logger, extra ...ServerOption) (*Server, error) {
	if opts.SessionCacheSize <= 0 {
		opts.SessionCacheSize = 1000
	}
	if opts.SessionIdleTTL <= 0 {
		opts.SessionIdleTTL = 12 * time.Hour
	}

	mux := http.NewServeMux()
	s := &Server{
		Server:  http.Server{Addr: opts.Addr, ReadHeaderTimeout: 10 * time.Second},
		opts:    opts,
		api:     api,
		state:   state,
		logger:  logger.WithComponent(log.ComponentHTTP),
		limiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		started: time.Now(),
	}
	s.sessions = cache.NewLRUCache[*browserSession](opts.SessionCacheSize, opts.SessionIdleTTL,
		cache.WithSlidingExpiry[*browserSession](),
		cache.WithEvictHook(func(sid string, _ *browserSession) {
			s.logger.Debug("Browser session evicted", log.FieldSessionID, sid)
		}))
	if opts.ListCacheTTL > 0 {
		s.listCache = cache.NewLRUCache[[]core.Transaction](opts.SessionCacheSize, opts.ListCacheTTL)
	}
	for _, o := range extra {
		o(s)
	}

	if err := s.parseTemplates(); err != nil {
		s.limiter.Stop()
		return nil, err
	}

	s.routes(mux)
	s.tracer = trace.NewMiddleware(logger, security.ClientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Handler = s.tracer.Middleware(headers.Middleware(mux))
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	page := func(h http.HandlerFunc) http.Handler {
		return security.NoStore(s.withSession(h))
	}
	private := func(h http.HandlerFunc) http.Handler {
		return page(s.requireAuth(h))
	}
	throttle := s.limiter.Middleware(security.ClientIP, s.handleTooManyAttempts, http.MethodPost)

	mux.Handle("GET /{$}", page(s.handleIndex))
	mux.Handle("GET /login", page(s.handleLoginPage))
	mux.Handle("POST /login", throttle(page(s.handleLogin)))
	mux.Handle("POST /logout", page(s.handleLogout))

	mux.Handle("GET /dashboard", private(s.handleDashboard))
	mux.Handle("GET /income", private(s.handleEntryPage(core.Income)))
	mux.Handle("POST /income", private(s.handleEntrySubmit(core.Income)))
	mux.Handle("GET /expenses", private(s.handleEntryPage(core.Expense)))
	mux.Handle("POST /expenses", private(s.handleEntrySubmit(core.Expense)))

	mux.Handle("GET /transactions", private(s.handleTransactions))
	mux.Handle("POST /transactions/export", private(s.handleExport))
	mux.Handle("GET /transactions/{id}/edit", private(s.handleEditRow))
	mux.Handle("GET /transactions/{id}/cancel", private(s.handleCancelEdit))
	mux.Handle("POST /transactions/{id}", private(s.handleSaveEdit))
	mux.Handle("DELETE /transactions/{id}", private(s.handleDelete))
}

// InvalidateUser drops the cached list of userID. Called when another
// instance reports a change.
func (s *Server) InvalidateUser(userID string) {
	if s.listCache != nil && userID != "" {
		s.listCache.Delete(userID)
	}
}

// RegisterCaches adds the server's caches to the periodic sweep.
func (s *Server) RegisterCaches(m *cache.Manager) {
	m.Register("sessions", s.sessions)
	if s.listCache != nil {
		m.Register("lists", s.listCache)
	}
}

// Shutdown gracefully shuts down the server and its background work.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
