package http

import (
	"net/http"

	"ledgerly/internal/core"
	"ledgerly/internal/forms"
)

type entryData struct {
	Kind   core.Kind
	Action string
	Text   string
	Amount string
	Error  string
}

func (bs *browserSession) entry(k core.Kind) *forms.Entry {
	if k == core.Expense {
		return bs.expense
	}
	return bs.income
}

func (s *Server) handleEntryPage(k core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusOK, "entry.html", view{
			Title:  kindTitle(k),
			Active: string(k),
			Data:   entryData{Kind: k, Action: kindPath(k)},
		})
	}
}

func (s *Server) handleEntrySubmit(k core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bs := sessionFrom(r)
		p := NewRequestBodyParser(r)
		if err := p.Parse(); err != nil {
			BadRequestError("Invalid form submission").Write(w)
			return
		}
		text, amount := p.Get("text"), p.Get("amount")

		_, res := bs.entry(k).Submit(r.Context(), text, amount)
		if res.AuthLost {
			s.endSession(w, r, bs)
			return
		}
		if res.Status == forms.Succeeded {
			bs.page.MarkStale()
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
		s.render(w, r, status, "entry.html", view{
			Title:  kindTitle(k),
			Active: string(k),
			Data:   entryData{Kind: k, Action: kindPath(k), Text: text, Amount: amount, Error: res.Error},
		})
	}
}
