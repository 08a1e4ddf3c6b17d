package http

import (
	"net/http"

	"ledger/internal/core"
	"ledger/internal/log"
)

type breakdownRow struct {
	Label    string
	Income   string
	Spending string
}

type dashboardPage struct {
	Username   string
	Months     []breakdownRow
	Categories []breakdownRow
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	acc, _ := accountFromContext(r.Context())

	months, err := s.store.MonthlyBreakdown(r.Context(), acc.ID)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Monthly breakdown failed",
			log.FieldError, err.Error(), log.FieldAccountID, acc.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	categories, err := s.store.CategoryBreakdown(r.Context(), acc.ID)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Category breakdown failed",
			log.FieldError, err.Error(), log.FieldAccountID, acc.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	page := dashboardPage{Username: acc.Name}
	for _, m := range months {
		page.Months = append(page.Months, breakdownRow{
			Label:    m.Month,
			Income:   core.FormatCents(m.IncomeCents),
			Spending: core.FormatCents(m.SpendingCents),
		})
	}
	for _, c := range categories {
		page.Categories = append(page.Categories, breakdownRow{
			Label:    c.Category,
			Income:   core.FormatCents(c.IncomeCents),
			Spending: core.FormatCents(c.SpendingCents),
		})
	}

	s.render(w, r, "dashboard.html", page)
}
