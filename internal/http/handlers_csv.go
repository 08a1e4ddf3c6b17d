package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"ledger/internal/core"
	"ledger/internal/csvio"
	"ledger/internal/log"
)

// maxImportSize caps uploaded CSV files at 8 MiB.
const maxImportSize = 8 << 20

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	acc, _ := accountFromContext(r.Context())

	entries, err := s.store.ExportAll(r.Context(), acc.ID)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Export failed",
			log.FieldError, err.Error(), log.FieldAccountID, acc.ID, log.FieldOperation, log.OpExport)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "ledger_"+time.Now().Format("20060102")+".csv"))

	if err := csvio.Export(w, entries); err != nil {
		// Headers are already out; all that is left is logging.
		log.FromContext(r.Context()).ErrorContext(r.Context(), "CSV write failed",
			log.FieldError, err.Error(), log.FieldAccountID, acc.ID)
	}
}

type importPage struct {
	Error    string
	Imported int
}

func (s *Server) handleImportForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "import.html", importPage{})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	acc, _ := accountFromContext(r.Context())

	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		s.render(w, r, "import.html", importPage{Error: "Upload a CSV file"})
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		s.render(w, r, "import.html", importPage{Error: "Upload a CSV file"})
		return
	}
	defer file.Close()

	rows, err := csvio.ParseImport(file)
	if errors.Is(err, core.ErrImport) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "import.html", importPage{Error: err.Error()})
		return
	}
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Import parse failed",
			log.FieldError, err.Error(), log.FieldAccountID, acc.ID, log.FieldOperation, log.OpImport)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	n, err := s.store.BulkImport(r.Context(), acc.ID, rows)
	if errors.Is(err, core.ErrImport) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "import.html", importPage{Error: err.Error()})
		return
	}
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Import failed",
			log.FieldError, err.Error(), log.FieldAccountID, acc.ID, log.FieldOperation, log.OpImport)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Import completed",
		log.FieldAccountID, acc.ID, "rows", n)

	s.invalidateCategories(acc.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
