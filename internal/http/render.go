package http

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"ledgerly/internal/core"
	"ledgerly/internal/ledger"
	"ledgerly/internal/log"
	appweb "ledgerly/web"
)

var pageFiles = []string{"login.html", "dashboard.html", "entry.html", "transactions.html"}

// view is the data every page template receives.
type view struct {
	Title  string
	Active string
	User   core.User
	Authed bool
	Data   any
}

// editRow is the inline edit form of one row.
type editRow struct {
	Tx     core.Transaction
	Text   string
	Amount string
}

func (s *Server) funcs() template.FuncMap {
	return template.FuncMap{
		"money": func(d decimal.Decimal) string {
			return core.FormatAmount(s.opts.CurrencySymbol, d)
		},
		// signed keeps the minus sign for display of balances.
		"signed": func(d decimal.Decimal) string {
			if d.IsNegative() {
				return "-" + core.FormatAmount(s.opts.CurrencySymbol, d)
			}
			return core.FormatAmount(s.opts.CurrencySymbol, d)
		},
		"currency": func() string { return s.opts.CurrencySymbol },
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Local().Format("Jan 2, 2006")
		},
		"datetime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.UTC().Format(time.RFC3339)
		},
		"editRow": func(tx core.Transaction, text, amount string) editRow {
			return editRow{Tx: tx, Text: text, Amount: amount}
		},
		"flashOf": func(msg string) flashData {
			if msg == "" {
				return flashData{}
			}
			return flashData{Kind: "error", Message: msg}
		},
	}
}

// parseTemplates builds one set per page, each with the shared layout and
// partials, plus a partials-only set for htmx fragments.
func (s *Server) parseTemplates() error {
	s.pages = make(map[string]*template.Template, len(pageFiles))
	for _, name := range pageFiles {
		t, err := template.New(name).Funcs(s.funcs()).ParseFS(appweb.TemplatesFS,
			"templates/layout.html", "templates/partials.html", "templates/"+name)
		if err != nil {
			return fmt.Errorf("parse template %s: %w", name, err)
		}
		s.pages[name] = t
	}
	t, err := template.New("partials").Funcs(s.funcs()).ParseFS(appweb.TemplatesFS, "templates/partials.html")
	if err != nil {
		return fmt.Errorf("parse partials: %w", err)
	}
	s.partials = t
	return nil
}

// render executes a page. htmx requests get only the content block.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, v view) {
	t, ok := s.pages[page]
	if !ok {
		InternalServerError(fmt.Sprintf("unknown page %s", page)).Write(w)
		return
	}
	if bs := sessionFrom(r); bs != nil {
		v.Authed = bs.store.IsAuthenticated()
		v.User = bs.store.User()
	}

	target := "layout"
	if isHTMX(r) && r.Header.Get("HX-Boosted") != "true" {
		target = "content"
	}
	s.execute(w, r, status, t, target, v)
}

// renderPartial executes a named fragment from partials.html.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	s.execute(w, r, status, s.partials, name, data)
}

// partial renders a fragment for use as an HTMXResponseBuilder body.
func (s *Server) partial(r *http.Request, name string, data any) (string, bool) {
	var buf bytes.Buffer
	if err := s.partials.ExecuteTemplate(&buf, name, data); err != nil {
		s.templateFailed(r, name, err)
		return "", false
	}
	return buf.String(), true
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, status int, t *template.Template, name string, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		s.templateFailed(r, name, err)
		InternalServerError(ledger.GenericFailure).Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) templateFailed(r *http.Request, name string, err error) {
	log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(),
		"Template execution failed", "template", name, log.FieldError, err)
}
