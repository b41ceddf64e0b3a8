package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ledgerly/internal/ledger"
	"ledgerly/internal/log"
	"ledgerly/internal/viewmodel"
)

// txListData feeds the "tx-list" partial, which is both part of the full
// transactions page and the swap target of every row action.
type txListData struct {
	View      viewmodel.PageView
	CanExport bool
}

func (s *Server) listData(bs *browserSession) txListData {
	return txListData{View: bs.page.View(), CanExport: s.exporter != nil}
}

// handleTransactions renders the list. A full page load always refetches;
// htmx filter requests reuse the snapshot unless it went stale.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	bs := sessionFrom(r)
	bs.page.SetCriteria(CriteriaFromQuery(r.URL.Query()))

	partial := isHTMX(r) && r.Header.Get("HX-Target") == "tx-list"
	var err error
	if partial {
		err = bs.page.EnsureFresh(r.Context())
	} else {
		err = bs.page.Refresh(r.Context())
	}
	if s.abandoned(r.Context(), err) {
		return
	}

	data := s.listData(bs)
	if data.View.AuthLost {
		s.endSession(w, r, bs)
		return
	}
	if partial {
		s.renderPartial(w, r, http.StatusOK, "tx-list", data)
		return
	}
	s.render(w, r, http.StatusOK, "transactions.html", view{Title: "Transactions", Active: "transactions", Data: data})
}

func (s *Server) handleEditRow(w http.ResponseWriter, r *http.Request) {
	bs := sessionFrom(r)
	id := r.PathValue("id")
	if !bs.page.BeginEdit(id) {
		bs.page.MarkStale()
		if s.abandoned(r.Context(), bs.page.EnsureFresh(r.Context())) {
			return
		}
		if !bs.page.BeginEdit(id) {
			NotFoundError("Transaction not found").
				Header("HX-Retarget", "#flash").
				Header("HX-Reswap", "innerHTML").
				Write(w)
			return
		}
	}
	s.renderList(w, r, bs, http.StatusOK, nil)
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	bs := sessionFrom(r)
	bs.page.CancelEdit()
	s.renderList(w, r, bs, http.StatusOK, nil)
}

func (s *Server) handleSaveEdit(w http.ResponseWriter, r *http.Request) {
	bs := sessionFrom(r)
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid form submission").Write(w)
		return
	}
	id := r.PathValue("id")
	res := bs.page.SaveEdit(r.Context(), id, p.Get("text"), p.Get("amount"))
	if res.AuthLost {
		s.endSession(w, r, bs)
		return
	}
	if res.Error != "" {
		s.renderList(w, r, bs, statusFor(res), nil)
		return
	}
	if s.abandoned(r.Context(), bs.page.EnsureFresh(r.Context())) {
		return
	}
	s.renderList(w, r, bs, http.StatusOK, func(b *HTMXResponseBuilder) {
		b.TriggerTransactionsChanged().TriggerSuccessNotification("Transaction updated")
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	bs := sessionFrom(r)
	id := r.PathValue("id")
	if err := bs.page.Delete(r.Context(), id); err != nil {
		if bs.page.View().AuthLost {
			s.endSession(w, r, bs)
			return
		}
		msg := bs.page.Err()
		s.renderList(w, r, bs, http.StatusOK, func(b *HTMXResponseBuilder) {
			b.TriggerErrorNotification(msg)
		})
		return
	}
	if s.abandoned(r.Context(), bs.page.EnsureFresh(r.Context())) {
		return
	}
	s.renderList(w, r, bs, http.StatusOK, func(b *HTMXResponseBuilder) {
		b.TriggerTransactionsChanged().TriggerSuccessNotification("Transaction deleted")
	})
}

// handleExport writes the rows currently visible to the configured sheet.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		s.renderPartial(w, r, http.StatusNotFound, "flash", flashData{Kind: "error", Message: "Export is not configured"})
		return
	}
	bs := sessionFrom(r)
	if s.abandoned(r.Context(), bs.page.EnsureFresh(r.Context())) {
		return
	}
	v := bs.page.View()
	if v.AuthLost {
		s.endSession(w, r, bs)
		return
	}
	if v.Error != "" {
		s.renderPartial(w, r, http.StatusBadGateway, "flash", flashData{Kind: "error", Message: v.Error})
		return
	}

	rng, err := s.exporter.Export(r.Context(), v.Rows)
	if err != nil {
		u := bs.store.User()
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Export failed", err,
			log.ComponentExport, log.OpExport, log.NewFields().WithUser(u.ID, u.Username).WithCount(len(v.Rows)))
		s.renderPartial(w, r, http.StatusBadGateway, "flash", flashData{Kind: "error", Message: "Export failed"})
		return
	}
	msg := fmt.Sprintf("Exported %d transactions", len(v.Rows))
	if rng != "" {
		msg += " to " + rng
	}
	s.renderPartial(w, r, http.StatusOK, "flash", flashData{Kind: "success", Message: msg})
}

// renderList swaps the whole list so balance, rows and edit state stay
// consistent with each other.
func (s *Server) renderList(w http.ResponseWriter, r *http.Request, bs *browserSession, status int, decorate func(*HTMXResponseBuilder)) {
	body, ok := s.partial(r, "tx-list", s.listData(bs))
	if !ok {
		InternalServerError(ledger.GenericFailure).Write(w)
		return
	}
	b := NewHTMXResponse().Status(status).BodyHTML(body)
	if decorate != nil {
		decorate(b)
	}
	b.Write(w)
}

// abandoned reports whether the request is done for: the client left, or a
// newer refresh took over and will render the result.
func (s *Server) abandoned(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled)
}
