package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ledger/internal/core"
	"ledger/internal/log"
)

// entryView is an entry formatted for template rendering.
type entryView struct {
	ID          int64
	Date        string
	Category    string
	Amount      string
	Description string
	Kind        string
}

func newEntryView(e core.Entry) entryView {
	return entryView{
		ID:          e.ID,
		Date:        e.Date,
		Category:    e.Category,
		Amount:      core.FormatCents(e.AmountCents),
		Description: e.Description,
		Kind:        string(e.Kind),
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parsePathID extracts the {id} path segment as an entry id.
func parsePathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// entryParamsFromForm builds entry params from a submitted form. The amount
// must parse as a decimal number; everything else is passed through.
func entryParamsFromForm(form url.Values) (core.EntryParams, error) {
	cents, err := core.ParseAmountToCents(form.Get("amount"))
	if err != nil {
		return core.EntryParams{}, err
	}

	return core.EntryParams{
		Date:        strings.TrimSpace(form.Get("date")),
		Category:    sanitizeInput(form.Get("category")),
		AmountCents: cents,
		Description: sanitizeInput(form.Get("description")),
		Kind:        core.Kind(strings.TrimSpace(form.Get("kind"))),
	}, nil
}

// render executes a template, logging and failing the response on error.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err.Error(), "template", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
