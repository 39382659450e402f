package secretkeeper_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	sk "github.com/secretkeeper/secretkeeper"
)

func testMiddleware() *sk.Middleware {
	return &sk.Middleware{
		ValidateToken: func(token string) (string, error) {
			if token == "good-token" {
				return "acct123", nil
			}
			return "", errors.New("bad token")
		},
	}
}

func TestRequireAccountNoCredential(t *testing.T) {
	mw := testMiddleware()
	handler := mw.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/secrets", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRequireAccountRedirect(t *testing.T) {
	mw := testMiddleware()
	mw.GetRedirURL = func(r *http.Request) string { return "/login" }
	handler := mw.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/secrets", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/login?callbackURL=%2Fsecrets" {
		t.Errorf("unexpected redirect location %q", got)
	}
}

func TestRequireAccountBearerToken(t *testing.T) {
	mw := testMiddleware()
	var seenAccount string
	handler := mw.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAccount = mw.GetLoggedInAccountId(r)
	}))

	req := httptest.NewRequest("GET", "/secrets", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if seenAccount != "acct123" {
		t.Errorf("expected acct123 in context, got %q", seenAccount)
	}
}

func TestRequireAccountCookieToken(t *testing.T) {
	mw := testMiddleware()
	mw.AuthTokenCookieName = "AuthToken"
	called := false
	handler := mw.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("GET", "/secrets", nil)
	req.AddCookie(&http.Cookie{Name: "AuthToken", Value: "good-token"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Errorf("expected handler to run for a valid cookie token, got %d", w.Code)
	}
}

func TestRequireAccountInvalidToken(t *testing.T) {
	mw := testMiddleware()
	handler := mw.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	req := httptest.NewRequest("GET", "/secrets", nil)
	req.Header.Set("Authorization", "Bearer forged-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for invalid token, got %d", w.Code)
	}
}

func TestExtractAccountAnonymous(t *testing.T) {
	mw := testMiddleware()
	var seenAccount string
	called := false
	handler := mw.ExtractAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		seenAccount = mw.GetLoggedInAccountId(r)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if !called {
		t.Fatal("ExtractAccount must not block anonymous requests")
	}
	if seenAccount != "" {
		t.Errorf("expected empty account id, got %q", seenAccount)
	}
}

func TestSessionGetterWins(t *testing.T) {
	mw := testMiddleware()
	mw.SessionGetter = func(r *http.Request, param string) any { return "session-acct" }

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	if got := mw.GetLoggedInAccountId(req); got != "session-acct" {
		t.Errorf("expected the session account to win, got %q", got)
	}
}
