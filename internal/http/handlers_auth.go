package http

import (
	"errors"
	"net/http"
	"strings"

	"ledger/internal/core"
	"ledger/internal/log"
)

type authPage struct {
	Error string
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "register.html", authPage{})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.Form.Get("username"))
	password := strings.TrimSpace(r.Form.Get("password"))
	if name == "" || password == "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "register.html", authPage{Error: "Username and password are required"})
		return
	}

	_, err := s.store.Register(r.Context(), name, password)
	if errors.Is(err, core.ErrDuplicateName) {
		w.WriteHeader(http.StatusConflict)
		s.render(w, r, "register.html", authPage{Error: "Username already exists"})
		return
	}
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Registration failed",
			log.FieldError, err.Error(), log.FieldOperation, log.OpRegister)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "login.html", authPage{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.Form.Get("username"))
	password := strings.TrimSpace(r.Form.Get("password"))

	acc, err := s.store.Authenticate(r.Context(), name, password)
	if errors.Is(err, core.ErrInvalidCredentials) {
		w.WriteHeader(http.StatusUnauthorized)
		s.render(w, r, "login.html", authPage{Error: "Invalid credentials"})
		return
	}
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Login failed",
			log.FieldError, err.Error(), log.FieldOperation, log.OpLogin)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	token, err := s.sessions.Issue(acc.ID, acc.Name)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Session issue failed",
			log.FieldError, err.Error(), log.FieldAccountID, acc.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.sessions.setCookie(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.clearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
