package oauth2

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	sk "github.com/secretkeeper/secretkeeper"
)

// fakeProvider serves a token endpoint and a userinfo endpoint the way a
// real provider would.
func fakeProvider(t *testing.T, subjectField string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.PostFormValue("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "provider-access-token", "token_type": "Bearer"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-access-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"` + subjectField + `": "subject-1", "email": "alice@example.com", "name": "Alice"}`))
	})
	return httptest.NewServer(mux)
}

func pointAtProvider(b *BaseOAuth2, server *httptest.Server) {
	b.oauthConfig.Endpoint = oauth2.Endpoint{
		AuthURL:  server.URL + "/auth",
		TokenURL: server.URL + "/token",
	}
	b.HTTPClient = server.Client()
}

func TestOauthRedirector(t *testing.T) {
	config := &oauth2.Config{
		ClientID:    "cid",
		RedirectURL: "http://localhost/auth/google/callback/",
		Endpoint:    oauth2.Endpoint{AuthURL: "https://provider/auth"},
	}

	req := httptest.NewRequest("GET", "/?callbackURL=/secrets", nil)
	w := httptest.NewRecorder()
	OauthRedirector(config)(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}

	var state string
	for _, cookie := range w.Result().Cookies() {
		switch cookie.Name {
		case "oauthstate":
			state = cookie.Value
		case "oauthCallbackURL":
			if cookie.Value != "/secrets" {
				t.Errorf("expected callback cookie /secrets, got %q", cookie.Value)
			}
		}
	}
	if state == "" {
		t.Fatal("expected an oauthstate cookie")
	}

	location, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad redirect location: %v", err)
	}
	if !strings.HasPrefix(location.String(), "https://provider/auth") {
		t.Errorf("expected redirect to provider auth URL, got %s", location)
	}
	if location.Query().Get("state") != state {
		t.Error("expected the state param to match the cookie")
	}
}

func googleCallbackRequest(code, state string) *http.Request {
	req := httptest.NewRequest("GET", "/callback/?code="+code+"&state="+state, nil)
	req.AddCookie(&http.Cookie{Name: "oauthstate", Value: state})
	return req
}

func TestGoogleCallback(t *testing.T) {
	server := fakeProvider(t, "id")
	defer server.Close()

	var gotProvider, gotSubject string
	var gotProfile map[string]any
	g := NewGoogleOAuth2("cid", "csecret", "http://localhost/callback/",
		func(provider, subjectID string, profile map[string]any, w http.ResponseWriter, r *http.Request) {
			gotProvider, gotSubject, gotProfile = provider, subjectID, profile
			w.WriteHeader(http.StatusOK)
		})
	pointAtProvider(g.BaseOAuth2, server)
	g.UserInfoURL = server.URL + "/userinfo"

	w := httptest.NewRecorder()
	g.ServeHTTP(w, googleCallbackRequest("good-code", "state123"))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if gotProvider != "google" || gotSubject != "subject-1" {
		t.Errorf("expected (google, subject-1), got (%q, %q)", gotProvider, gotSubject)
	}
	if gotProfile["email"] != "alice@example.com" {
		t.Errorf("expected profile email, got %v", gotProfile["email"])
	}
}

func TestGoogleCallbackBadState(t *testing.T) {
	g := NewGoogleOAuth2("cid", "csecret", "http://localhost/callback/",
		func(provider, subjectID string, profile map[string]any, w http.ResponseWriter, r *http.Request) {
			t.Error("HandleIdentity should not be called")
		})

	req := httptest.NewRequest("GET", "/callback/?code=good-code&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "original"})
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for state mismatch, got %d", w.Code)
	}
}

func TestGoogleCallbackMissingStateCookie(t *testing.T) {
	g := NewGoogleOAuth2("cid", "csecret", "http://localhost/callback/",
		func(provider, subjectID string, profile map[string]any, w http.ResponseWriter, r *http.Request) {
			t.Error("HandleIdentity should not be called")
		})

	req := httptest.NewRequest("GET", "/callback/?code=good-code&state=state123", nil)
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing state cookie, got %d", w.Code)
	}
}

func TestGoogleCallbackRejectedCode(t *testing.T) {
	server := fakeProvider(t, "id")
	defer server.Close()

	g := NewGoogleOAuth2("cid", "csecret", "http://localhost/callback/",
		func(provider, subjectID string, profile map[string]any, w http.ResponseWriter, r *http.Request) {
			t.Error("HandleIdentity should not be called")
		})
	pointAtProvider(g.BaseOAuth2, server)
	g.UserInfoURL = server.URL + "/userinfo"

	w := httptest.NewRecorder()
	g.ServeHTTP(w, googleCallbackRequest("expired-code", "state123"))

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected redirect to failure URL, got %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != g.AuthFailureUrl {
		t.Errorf("expected redirect to %q, got %q", g.AuthFailureUrl, got)
	}
}

func TestFacebookCallback(t *testing.T) {
	server := fakeProvider(t, "id")
	defer server.Close()

	var gotProvider, gotSubject string
	f := NewFacebookOAuth2("cid", "csecret", "http://localhost/callback/",
		func(provider, subjectID string, profile map[string]any, w http.ResponseWriter, r *http.Request) {
			gotProvider, gotSubject = provider, subjectID
			w.WriteHeader(http.StatusOK)
		})
	pointAtProvider(f.BaseOAuth2, server)
	f.UserInfoURL = server.URL + "/userinfo"

	w := httptest.NewRecorder()
	f.ServeHTTP(w, googleCallbackRequest("good-code", "state123"))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if gotProvider != "facebook" || gotSubject != "subject-1" {
		t.Errorf("expected (facebook, subject-1), got (%q, %q)", gotProvider, gotSubject)
	}
}

func TestExchangeErrorClassification(t *testing.T) {
	server := fakeProvider(t, "id")

	b := NewBaseOAuth2("cid", "csecret", "http://localhost/callback/", nil)
	pointAtProvider(b, server)

	// A 4xx from the token endpoint means the provider rejected the code.
	_, err := b.exchange(context.Background(), "expired-code")
	if !errors.Is(err, sk.ErrProviderRejected) {
		t.Errorf("expected ErrProviderRejected, got %v", err)
	}

	// With the provider gone the exchange is a transport failure.
	server.Close()
	b.HTTPClient = &http.Client{}
	_, err = b.exchange(context.Background(), "good-code")
	if !errors.Is(err, sk.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}
