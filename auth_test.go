package secretkeeper_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alexedwards/scs/v2"

	sk "github.com/secretkeeper/secretkeeper"
)

func setupAuthServer(t *testing.T) (*sk.Auth, *httptest.Server) {
	t.Helper()
	accounts, sessions := setupStores(t)

	auth := sk.New("Test", accounts, sessions)
	auth.Session = scs.New()
	auth.Signer.SecretKey = "test-signing-secret"
	auth.EnsureDefaults()

	local := &sk.LocalAuth{
		Accounts:      accounts,
		Hasher:        sk.Hasher{Cost: 4},
		HandleAccount: auth.HandleLocalAccount("/done"),
	}
	auth.AddAuth("/login", local)
	auth.AddAuth("/signup", http.HandlerFunc(local.HandleSignup))

	server := httptest.NewServer(auth.Session.LoadAndSave(auth.Handler()))
	t.Cleanup(server.Close)
	return auth, server
}

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func postForm(t *testing.T, client *http.Client, target string, form url.Values, cookies []*http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest("POST", target, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, cookie := range cookies {
		if cookie.Name == name && cookie.Value != "" {
			return cookie
		}
	}
	return nil
}

func TestSignupEstablishesSession(t *testing.T) {
	auth, server := setupAuthServer(t)
	client := noRedirectClient()

	form := url.Values{"username": {"alice@example.com"}, "password": {"password123"}}
	resp := postForm(t, client, server.URL+"/signup/", form, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302 after signup, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != "/done" {
		t.Errorf("expected redirect to /done, got %q", got)
	}

	cookies := resp.Cookies()
	sessionCookie := cookieByName(cookies, "sessionToken")
	if sessionCookie == nil {
		t.Fatal("expected a sessionToken cookie")
	}
	if !sessionCookie.HttpOnly {
		t.Error("sessionToken cookie must be HttpOnly")
	}

	// The opaque token maps back to the account server-side.
	accountID, err := auth.Sessions.Validate(t.Context(), sessionCookie.Value)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if accountID == "" {
		t.Error("expected a resolved account id")
	}

	// The signed token cookie verifies with the signer.
	authCookie := cookieByName(cookies, auth.AuthTokenSessionVar)
	if authCookie == nil {
		t.Fatal("expected a signed auth token cookie")
	}
	signedID, err := auth.Signer.Verify(authCookie.Value)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if signedID != accountID {
		t.Errorf("signed token resolves to %q, session to %q", signedID, accountID)
	}
}

func TestLoginThenLogout(t *testing.T) {
	auth, server := setupAuthServer(t)
	client := noRedirectClient()

	form := url.Values{"username": {"alice@example.com"}, "password": {"password123"}}
	resp := postForm(t, client, server.URL+"/signup/", form, nil)
	resp.Body.Close()

	resp = postForm(t, client, server.URL+"/login/", form, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302 after login, got %d", resp.StatusCode)
	}
	sessionCookie := cookieByName(resp.Cookies(), "sessionToken")
	if sessionCookie == nil {
		t.Fatal("expected a sessionToken cookie after login")
	}

	// Logout revokes the server-side session.
	req, _ := http.NewRequest("GET", server.URL+"/logout?to=/", nil)
	req.AddCookie(sessionCookie)
	logoutResp, err := client.Do(req)
	if err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	logoutResp.Body.Close()
	if logoutResp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302 after logout, got %d", logoutResp.StatusCode)
	}

	if _, err := auth.Sessions.Validate(t.Context(), sessionCookie.Value); err == nil {
		t.Error("expected the session to be revoked after logout")
	}
}

func TestLoginWithoutTrailingSlashRedirects(t *testing.T) {
	_, server := setupAuthServer(t)
	client := noRedirectClient()

	form := url.Values{"username": {"alice@example.com"}, "password": {"password123"}}
	resp := postForm(t, client, server.URL+"/login", form, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPermanentRedirect {
		t.Fatalf("expected 308 for missing trailing slash, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != "/login/" {
		t.Errorf("expected redirect to /login/, got %q", got)
	}
}
