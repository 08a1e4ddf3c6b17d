package http

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ledger/internal/log"
	"ledger/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := log.New(log.DefaultConfig())
	sessions := NewSessions("test-secret-0123456789", time.Hour)

	srv, err := NewServer(":0", st, nil, sessions, logger)
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

// multipartUpload posts a single-file multipart form, matching what the
// import page submits.
func multipartUpload(t *testing.T, srv *Server, path, filename, contents string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(contents)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for _, c := range cookies {
		req.AddCookie(c)
	}
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func postForm(t *testing.T, srv *Server, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func get(t *testing.T, srv *Server, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

// registerAndLogin creates an account and returns its session cookie.
func registerAndLogin(t *testing.T, srv *Server, name string) *http.Cookie {
	t.Helper()
	form := url.Values{"username": {name}, "password": {"secret123"}}
	if rr := postForm(t, srv, "/register", form); rr.Code != http.StatusSeeOther {
		t.Fatalf("register status = %d", rr.Code)
	}

	rr := postForm(t, srv, "/login", form)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("login status = %d", rr.Code)
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := get(t, srv, path); rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}
}

func TestAnonymousRedirectedToLogin(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/", "/add", "/dashboard", "/export", "/import"} {
		rr := get(t, srv, path)
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("%s status = %d, want redirect", path, rr.Code)
		}
		if loc := rr.Header().Get("Location"); loc != "/login" {
			t.Fatalf("%s redirects to %q, want /login", path, loc)
		}
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	srv := newTestServer(t)
	form := url.Values{"username": {"alice"}, "password": {"pw"}}

	if rr := postForm(t, srv, "/register", form); rr.Code != http.StatusSeeOther {
		t.Fatalf("first register status = %d", rr.Code)
	}

	rr := postForm(t, srv, "/register", form)
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "already exists") {
		t.Fatal("duplicate register page missing error message")
	}
}

func TestLoginFailure(t *testing.T) {
	srv := newTestServer(t)
	registerAndLogin(t, srv, "alice")

	rr := postForm(t, srv, "/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Invalid credentials") {
		t.Fatal("login page missing error message")
	}
}

func TestAddListAndDeleteEntry(t *testing.T) {
	srv := newTestServer(t)
	cookie := registerAndLogin(t, srv, "alice")

	rr := postForm(t, srv, "/add", url.Values{
		"date":        {"2024-01-05"},
		"category":    {"Food"},
		"amount":      {"12.50"},
		"description": {"lunch"},
		"kind":        {"Expense"},
	}, cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("add status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = get(t, srv, "/", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Food", "12.50", "lunch", "Spending: 12.50"} {
		if !strings.Contains(body, want) {
			t.Fatalf("index missing %q", want)
		}
	}

	rr = postForm(t, srv, "/delete/1", url.Values{}, cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("delete status = %d", rr.Code)
	}

	rr = get(t, srv, "/", cookie)
	if strings.Contains(rr.Body.String(), "lunch") {
		t.Fatal("deleted entry still rendered")
	}
}

func TestAddEntryRejectsBadAmount(t *testing.T) {
	srv := newTestServer(t)
	cookie := registerAndLogin(t, srv, "alice")

	rr := postForm(t, srv, "/add", url.Values{
		"category": {"Food"},
		"amount":   {"abc"},
		"kind":     {"Expense"},
	}, cookie)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("add with bad amount status = %d, want 422", rr.Code)
	}
}

func TestEditEntryAcrossAccountsIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	alice := registerAndLogin(t, srv, "alice")
	bob := registerAndLogin(t, srv, "bob")

	rr := postForm(t, srv, "/add", url.Values{
		"date":     {"2024-01-05"},
		"category": {"Food"},
		"amount":   {"12.50"},
		"kind":     {"Expense"},
	}, alice)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("add status = %d", rr.Code)
	}

	rr = postForm(t, srv, "/edit/1", url.Values{
		"category": {"Hijacked"},
		"amount":   {"1.00"},
		"kind":     {"Credit"},
	}, bob)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("foreign edit status = %d, want 404", rr.Code)
	}
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t)
	cookie := registerAndLogin(t, srv, "alice")

	postForm(t, srv, "/add", url.Values{
		"date":        {"2024-01-05"},
		"category":    {"Food"},
		"amount":      {"12.50"},
		"description": {"lunch"},
		"kind":        {"Expense"},
	}, cookie)

	rr := get(t, srv, "/export", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %q", ct)
	}
	body := rr.Body.String()
	if !strings.HasPrefix(body, "Date,Type,Category,Amount,Description") {
		t.Fatalf("export missing header:\n%s", body)
	}
	if !strings.Contains(body, "2024-01-05,Expense,Food,12.50,lunch") {
		t.Fatalf("export missing row:\n%s", body)
	}
}

func TestImportCSV(t *testing.T) {
	srv := newTestServer(t)
	cookie := registerAndLogin(t, srv, "alice")

	csvBody := "date,category,amount,description\n2024-01-05,Food,12.50,lunch\n"
	rr := multipartUpload(t, srv, "/import", "entries.csv", csvBody, cookie)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("import status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = get(t, srv, "/", cookie)
	if !strings.Contains(rr.Body.String(), "lunch") {
		t.Fatal("imported entry not listed")
	}
}

func TestImportCSVRejectsBadAmount(t *testing.T) {
	srv := newTestServer(t)
	cookie := registerAndLogin(t, srv, "alice")

	csvBody := "date,category,amount,description\n2024-01-05,Food,abc,lunch\n"
	rr := multipartUpload(t, srv, "/import", "entries.csv", csvBody, cookie)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("import status = %d, want 422", rr.Code)
	}
}

func TestDashboard(t *testing.T) {
	srv := newTestServer(t)
	cookie := registerAndLogin(t, srv, "alice")

	postForm(t, srv, "/add", url.Values{
		"date": {"2024-01-05"}, "category": {"Food"}, "amount": {"12.50"}, "kind": {"Expense"},
	}, cookie)
	postForm(t, srv, "/add", url.Values{
		"date": {"2024-02-01"}, "category": {"Salary"}, "amount": {"2000.00"}, "kind": {"Credit"},
	}, cookie)

	rr := get(t, srv, "/dashboard", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"2024-01", "2024-02", "Salary", "2000.00"} {
		if !strings.Contains(body, want) {
			t.Fatalf("dashboard missing %q", want)
		}
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	sessions := NewSessions("test-secret-0123456789", time.Hour)

	token, err := sessions.Issue(42, "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	id, name, err := sessions.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id != 42 || name != "alice" {
		t.Fatalf("verify = (%d, %q)", id, name)
	}

	t.Run("tampered token rejected", func(t *testing.T) {
		if _, _, err := sessions.Verify(token + "x"); err == nil {
			t.Fatal("tampered token accepted")
		}
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		other := NewSessions("another-secret-9876543210", time.Hour)
		if _, _, err := other.Verify(token); err == nil {
			t.Fatal("token accepted across keys")
		}
	})

	t.Run("expired token rejected", func(t *testing.T) {
		expired := NewSessions("test-secret-0123456789", -time.Minute)
		tok, err := expired.Issue(42, "alice")
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if _, _, err := sessions.Verify(tok); err == nil {
			t.Fatal("expired token accepted")
		}
	})
}
