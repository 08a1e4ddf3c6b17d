package http

import (
	"errors"
	"net/http"
	"strings"

	"ledger/internal/core"
	"ledger/internal/events"
	"ledger/internal/log"
	"ledger/internal/store"
)

type indexPage struct {
	Username         string
	Entries          []entryView
	Income           string
	Spending         string
	Balance          string
	Categories       []string
	StartDate        string
	EndDate          string
	SelectedCategory string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	acc, ok := accountFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	q := r.URL.Query()
	filter := store.Filter{
		Start:    strings.TrimSpace(q.Get("start_date")),
		End:      strings.TrimSpace(q.Get("end_date")),
		Category: strings.TrimSpace(q.Get("category")),
	}

	entries, err := s.store.ListEntries(r.Context(), acc.ID, filter)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "List entries failed",
			log.FieldError, err.Error(), log.FieldAccountID, acc.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	totals, err := s.store.SummarizeTotals(r.Context(), acc.ID, filter)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Summarize totals failed",
			log.FieldError, err.Error(), log.FieldAccountID, acc.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	categories, err := s.categoriesFor(r.Context(), acc.ID)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "List categories failed",
			log.FieldError, err.Error(), log.FieldAccountID, acc.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	page := indexPage{
		Username:         acc.Name,
		Income:           core.FormatCents(totals.IncomeCents),
		Spending:         core.FormatCents(totals.SpendingCents),
		Balance:          core.FormatCents(totals.BalanceCents()),
		Categories:       categories,
		StartDate:        filter.Start,
		EndDate:          filter.End,
		SelectedCategory: filter.Category,
	}
	for _, e := range entries {
		page.Entries = append(page.Entries, newEntryView(e))
	}

	s.render(w, r, "index.html", page)
}

type entryFormPage struct {
	Error string
	Entry entryView
}

func (s *Server) handleAddForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "add.html", entryFormPage{Entry: entryView{Date: core.Today(), Kind: string(core.KindExpense)}})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	acc, _ := accountFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	params, err := entryParamsFromForm(r.Form)
	if err == nil {
		err = params.Validate()
	}
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "add.html", entryFormPage{
			Error: "Invalid entry: check amount, category and kind",
			Entry: entryView{Date: r.Form.Get("date"), Category: r.Form.Get("category"), Description: r.Form.Get("description"), Kind: r.Form.Get("kind")},
		})
		return
	}

	entry, err := s.store.AddEntry(r.Context(), acc.ID, params)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Add entry failed",
			log.FieldError, err.Error(), log.FieldAccountID, acc.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.invalidateCategories(acc.ID)
	s.publishEntryEvent(r.Context(), events.EntryCreated, acc.ID, entry.ID, entry.Kind, entry.AmountCents)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	acc, _ := accountFromContext(r.Context())
	id, ok := parsePathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	entry, err := s.store.GetEntry(r.Context(), acc.ID, id)
	if errors.Is(err, core.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Get entry failed",
			log.FieldError, err.Error(), log.FieldEntryID, id)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "edit.html", entryFormPage{Entry: newEntryView(entry)})
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	acc, _ := accountFromContext(r.Context())
	id, ok := parsePathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	params, err := entryParamsFromForm(r.Form)
	if err == nil {
		err = params.Validate()
	}
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "edit.html", entryFormPage{
			Error: "Invalid entry: check amount, category and kind",
			Entry: entryView{ID: id, Date: r.Form.Get("date"), Category: r.Form.Get("category"), Description: r.Form.Get("description"), Kind: r.Form.Get("kind")},
		})
		return
	}

	entry, err := s.store.EditEntry(r.Context(), acc.ID, id, params)
	if errors.Is(err, core.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Edit entry failed",
			log.FieldError, err.Error(), log.FieldEntryID, id)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.invalidateCategories(acc.ID)
	s.publishEntryEvent(r.Context(), events.EntryUpdated, acc.ID, entry.ID, entry.Kind, entry.AmountCents)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	acc, _ := accountFromContext(r.Context())
	id, ok := parsePathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	found, err := s.store.DeleteEntry(r.Context(), acc.ID, id)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Delete entry failed",
			log.FieldError, err.Error(), log.FieldEntryID, id)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// The store reports found/not-found; the page flow treats both the same.
	if found {
		s.invalidateCategories(acc.ID)
		s.publishEntryEvent(r.Context(), events.EntryDeleted, acc.ID, id, "", 0)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
