package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ledgerly/internal/core"
	"ledgerly/internal/forms"
	"ledgerly/internal/ledger"
	"ledgerly/internal/log"
	"ledgerly/internal/viewmodel"
)

type flashData struct {
	Kind    string
	Message string
}

type loginData struct {
	Mode     forms.Mode
	Toggle   forms.Mode
	Username string
	Email    string
	Error    string
}

// handleHealth performs basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports whether the client-state store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{"templates": "ok"}

	if p, ok := s.state.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			checks["state"] = fmt.Sprintf("failed: %v", err)
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["state"] = "ok"
		}
	} else {
		checks["state"] = "ok"
	}

	metrics := s.tracer.GetMetrics()
	checks["sessions"] = map[string]any{"active": s.sessions.Size()}
	checks["requests"] = map[string]any{"total": metrics.TotalRequests, "in_flight": metrics.InFlight}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients(), "rejected": s.limiter.Hits()}
	if s.listCache != nil {
		checks["list_cache"] = map[string]any{"entries": s.listCache.Size()}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if sessionFrom(r).store.IsAuthenticated() {
		redirect(w, r, "/dashboard")
		return
	}
	redirect(w, r, "/login")
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if sessionFrom(r).store.IsAuthenticated() {
		redirect(w, r, "/dashboard")
		return
	}
	mode := forms.ParseMode(r.URL.Query().Get("mode"))
	s.render(w, r, http.StatusOK, "login.html", view{
		Title: loginTitle(mode),
		Data:  loginData{Mode: mode, Toggle: mode.Toggle()},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	bs := sessionFrom(r)
	if bs.store.IsAuthenticated() {
		redirect(w, r, "/dashboard")
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid form submission").Write(w)
		return
	}
	mode, creds := CredentialsFrom(p)

	res := bs.auth.Submit(r.Context(), mode, creds)
	if res.Status == forms.Succeeded {
		if isHTMX(r) {
			s.flashWithRedirect(w, r, res)
			return
		}
		redirect(w, r, res.Redirect)
		return
	}

	status := statusFor(res)
	if isHTMX(r) {
		s.renderPartial(w, r, status, "flash", flashData{Kind: "error", Message: res.Error})
		return
	}
	s.render(w, r, status, "login.html", view{
		Title: loginTitle(mode),
		Data: loginData{
			Mode:     mode,
			Toggle:   mode.Toggle(),
			Username: creds.Username,
			Email:    creds.Email,
			Error:    res.Error,
		},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	bs := sessionFrom(r)
	if err := bs.store.Logout(r.Context()); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Logout failed", log.FieldError, err)
	}
	s.endSession(w, r, bs)
}

func (s *Server) handleTooManyAttempts(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Login rate limit exceeded", log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many attempts. Please try again later.").Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	bs := sessionFrom(r)
	d, err := viewmodel.LoadDashboard(r.Context(), bs.gw)
	if err != nil {
		// Client went away.
		return
	}
	if d.AuthLost {
		s.endSession(w, r, bs)
		return
	}
	s.render(w, r, http.StatusOK, "dashboard.html", view{Title: "Dashboard", Active: "dashboard", Data: d})
}

// endSession forgets the page state of bs and sends the browser to login.
func (s *Server) endSession(w http.ResponseWriter, r *http.Request, bs *browserSession) {
	s.sessions.Delete(bs.id)
	redirect(w, r, "/login")
}

// flashWithRedirect shows the success message and navigates once the
// redirect delay has passed.
func (s *Server) flashWithRedirect(w http.ResponseWriter, r *http.Request, res forms.Result) {
	body, ok := s.partial(r, "flash", flashData{Kind: "success", Message: res.Success})
	if !ok {
		InternalServerError(ledger.GenericFailure).Write(w)
		return
	}
	NewHTMXResponse().
		TriggerFormReset().
		TriggerRedirectAfter(res.Redirect, res.RedirectAfter).
		BodyHTML(body).
		Write(w)
}

// statusFor maps a failed form result onto an HTTP status.
func statusFor(res forms.Result) int {
	switch res.Status {
	case forms.Submitting:
		return http.StatusConflict
	case forms.Failed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusOK
	}
}

func loginTitle(m forms.Mode) string {
	if m == forms.ModeRegister {
		return "Create account"
	}
	return "Log in"
}

func kindTitle(k core.Kind) string {
	if k == core.Expense {
		return "Add expense"
	}
	return "Add income"
}

func kindPath(k core.Kind) string {
	if k == core.Expense {
		return "/expenses"
	}
	return "/income"
}
