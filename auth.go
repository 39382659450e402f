package secretkeeper

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
)

// Auth glues the auth core to the web layer: it mounts the login,
// signup, provider and logout handlers, establishes sessions on success
// and sets the auth cookies.  The content pages themselves belong to the
// host app.
type Auth struct {
	mux        *http.ServeMux
	Session    *scs.SessionManager
	Middleware Middleware

	// Optional name that can be used as a prefix for all required vars
	AppName string

	// Name of the session variable where the auth token is stored
	AuthTokenSessionVar string

	// Must be passed in
	Accounts AccountStore
	Resolver *Resolver
	Sessions *SessionManager

	// Signer issues the stateless token mirrored into a cookie so API
	// calls can authenticate without a session-store lookup.
	Signer *TokenSigner

	// All the domains where the auth token cookies will be set on a login success or logout
	CookieDomains []string

	// How long is a session cookie valid for.  Defaults to 1 day
	SessionTimeoutInSeconds int
}

func New(appName string, accounts AccountStore, sessions SessionStore) *Auth {
	out := &Auth{
		AppName:  appName,
		Accounts: accounts,
		Resolver: &Resolver{Accounts: accounts},
		Sessions: &SessionManager{Accounts: accounts, Sessions: sessions},
	}
	return out.EnsureDefaults()
}

func (a *Auth) EnsureDefaults() *Auth {
	if a.AppName == "" {
		a.AppName = "SecretKeeper"
	}
	if a.SessionTimeoutInSeconds <= 0 {
		a.SessionTimeoutInSeconds = 86400
	}
	if a.AuthTokenSessionVar == "" {
		a.AuthTokenSessionVar = fmt.Sprintf("%sAuthToken", a.AppName)
	}
	if a.Signer == nil {
		a.Signer = &TokenSigner{}
	}
	if a.Signer.Issuer == "" {
		a.Signer.Issuer = fmt.Sprintf("%s-Issuer", a.AppName)
	}
	if a.Signer.SecretKey == "" {
		a.Signer.SecretKey = strings.TrimSpace(os.Getenv("SECRETKEEPER_JWT_SECRET_KEY"))
	}
	if a.Signer.TTL <= 0 {
		a.Signer.TTL = time.Second * time.Duration(a.SessionTimeoutInSeconds)
	}
	if a.Sessions != nil && a.Sessions.TTL <= 0 {
		a.Sessions.TTL = time.Second * time.Duration(a.SessionTimeoutInSeconds)
	}
	if a.Middleware.AuthTokenCookieName == "" {
		a.Middleware.AuthTokenCookieName = a.AuthTokenSessionVar
	}
	if a.Middleware.ValidateToken == nil {
		a.Middleware.ValidateToken = a.Signer.Verify
	}
	return a
}

func (a *Auth) Handler() http.Handler {
	return a.setupRoutes().mux
}

// AddAuth mounts a credential handler (local login, a provider's consent
// flow) under the given prefix.
func (a *Auth) AddAuth(prefix string, handler http.Handler) *Auth {
	a.setupRoutes()
	a.EnsureDefaults()
	prefix = strings.TrimSuffix(prefix, "/")

	// Register the handler at prefix/ (with trailing slash) for subtree
	// matching so it receives /google/, /google/callback/, etc.
	withSlashPattern := prefix + "/"
	a.mux.Handle(withSlashPattern, http.StripPrefix(prefix, handler))

	// Redirect prefix (without trailing slash) to prefix/ so the
	// stripped path is never empty.  r.RequestURI preserves any parent
	// prefixes already stripped.  308 keeps the method intact.
	a.mux.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		origPath := r.RequestURI
		if idx := strings.Index(origPath, "?"); idx != -1 {
			origPath = origPath[:idx]
		}
		target := origPath + "/"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusPermanentRedirect)
	})

	return a
}

func (a *Auth) setupRoutes() *Auth {
	if a.mux == nil {
		a.mux = http.NewServeMux()
		a.mux.HandleFunc("/logout", a.onLogout)
	}
	return a
}

func (a *Auth) onLogout(w http.ResponseWriter, r *http.Request) {
	a.clearLoggedInAccount(w, r)
	toUrl := r.URL.Query()["to"]
	if len(toUrl) == 0 || toUrl[0] == "" {
		fmt.Fprintf(w, "Logged Out")
	} else {
		http.Redirect(w, r, toUrl[0], http.StatusFound)
	}
}

// SaveIdentityAndRedirect is called by a provider's callback handler with
// the canonical external identity after a successful consent flow.  It
// resolves the identity to an account (creating one on first sight),
// establishes the session and redirects back to where the flow started.
func (a *Auth) SaveIdentityAndRedirect(provider, subjectID string, profile map[string]any, w http.ResponseWriter, r *http.Request) {
	accountID, err := a.Resolver.FindOrCreateByExternalIdentity(r.Context(), provider, subjectID, profile)
	if err != nil {
		slog.Warn("error resolving external identity", "provider", provider, "err", err)
		status := http.StatusUnauthorized
		if Fatal(err) {
			status = http.StatusInternalServerError
		}
		http.Error(w, "Authentication failed", status)
		return
	}

	if err := a.LoginAccount(accountID, w, r); err != nil {
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}

	// Auth done - go back to where we need to be
	callbackURL := "/"
	if callbackURLCookie, _ := r.Cookie("oauthCallbackURL"); callbackURLCookie != nil && callbackURLCookie.Value != "" {
		callbackURL = callbackURLCookie.Value
	}
	u, _ := url.Parse(callbackURL)
	if u != nil && u.Scheme == "" {
		callbackURL = os.Getenv("OAUTH2_BASE_URL") + callbackURL
	}
	// delete it too so it wont be used for subsequent redirects
	http.SetCookie(w, &http.Cookie{
		Name:    "oauthCallbackURL",
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Now(),
	})
	http.Redirect(w, r, callbackURL, http.StatusFound)
}

// HandleLocalAccount adapts LoginAccount to the LocalAuth success
// callback.
func (a *Auth) HandleLocalAccount(redirectTo string) HandleAccountFunc {
	return func(provider string, accountID string, w http.ResponseWriter, r *http.Request) {
		if err := a.LoginAccount(accountID, w, r); err != nil {
			http.Error(w, "Login failed", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, redirectTo, http.StatusFound)
	}
}

// LoginAccount establishes the logged-in state for an already-persisted
// account: an opaque server-side session plus a signed token cookie.
func (a *Auth) LoginAccount(accountID string, w http.ResponseWriter, r *http.Request) error {
	a.EnsureDefaults()
	session, err := a.Sessions.Issue(r.Context(), accountID)
	if err != nil {
		slog.Warn("error issuing session", "err", err)
		return err
	}

	tokenString, err := a.Signer.Sign(accountID)
	if err != nil {
		slog.Warn("error signing token", "err", err)
		return err
	}

	if a.Session != nil {
		a.Session.Put(r.Context(), "loggedInAccountId", accountID)
		a.Session.Put(r.Context(), "sessionToken", session.Token)
		a.Session.Put(r.Context(), a.AuthTokenSessionVar, tokenString)
	}

	for _, cookieDomain := range a.cookieDomains() {
		http.SetCookie(w, &http.Cookie{
			Name:     "sessionToken",
			Value:    session.Token,
			Domain:   cookieDomain,
			Path:     "/",
			HttpOnly: true,
			Expires:  session.ExpiresAt,
			MaxAge:   a.SessionTimeoutInSeconds,
		})
		http.SetCookie(w, &http.Cookie{
			Name:    a.AuthTokenSessionVar,
			Value:   tokenString,
			Domain:  cookieDomain,
			Path:    "/",
			Expires: session.ExpiresAt,
			MaxAge:  a.SessionTimeoutInSeconds,
		})
	}
	return nil
}

// clearLoggedInAccount revokes the server-side session and clears the
// session and cookie values on every domain we set them on.
func (a *Auth) clearLoggedInAccount(w http.ResponseWriter, r *http.Request) {
	a.EnsureDefaults()
	if token, err := r.Cookie("sessionToken"); err == nil && token.Value != "" {
		if err := a.Sessions.Revoke(r.Context(), token.Value); err != nil {
			slog.Warn("error revoking session", "err", err)
		}
	}
	if a.Session != nil {
		if err := a.Session.Destroy(r.Context()); err != nil {
			slog.Warn("error clearing session", "err", err)
		}
	}
	for _, cookieDomain := range a.cookieDomains() {
		for _, name := range []string{"oauthstate", "sessionToken", a.AuthTokenSessionVar} {
			http.SetCookie(w, &http.Cookie{
				Name:    name,
				Domain:  cookieDomain,
				Path:    "/",
				MaxAge:  -1,
				Expires: time.Now(),
			})
		}
	}
	log.Println("Logged out account")
}

func (a *Auth) cookieDomains() []string {
	domains := a.CookieDomains
	if slices.Index(domains, "") < 0 { // default domain
		domains = append(domains, "")
	}
	return domains
}
