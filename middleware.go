package secretkeeper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

type accountParamNameKey string

// Middleware resolves the logged-in account for each request: from the
// request context, the host app's session, or an auth token in a header
// or cookie.  It never treats an invalid token as an anonymous-but-allowed
// request; RequireAccount callers only proceed with a resolved account.
type Middleware struct {
	AuthTokenHeaderName string
	AuthTokenCookieName string
	AccountParamName    string
	CallbackURLParam    string
	SessionGetter       func(r *http.Request, param string) any
	GetRedirURL         func(r *http.Request) string

	// ValidateToken resolves a bearer token to an account id.  Usually
	// TokenSigner.Verify or a SessionManager-backed closure.
	ValidateToken func(tokenString string) (accountID string, err error)
}

// EnsureReasonableDefaults fills in config values that were left unset.
func (a *Middleware) EnsureReasonableDefaults() {
	if a.AccountParamName == "" {
		a.AccountParamName = "loggedInAccountId"
	}
	if a.CallbackURLParam == "" {
		a.CallbackURLParam = "callbackURL"
	}
	if a.AuthTokenHeaderName == "" {
		a.AuthTokenHeaderName = "Authorization"
	}
}

// GetLoggedInAccountId returns the account id for the current request, or
// "" when no valid credential is present.
func (a *Middleware) GetLoggedInAccountId(r *http.Request) string {
	v := r.Context().Value(accountParamNameKey(a.AccountParamName))
	if v != nil {
		if accountID, ok := v.(string); ok && accountID != "" {
			return accountID
		}
	}

	if accountID := a.getSessionAccountId(r); accountID != "" {
		return accountID
	}

	if a.ValidateToken == nil {
		slog.Warn("No auth token validator found.  Please set one")
		return ""
	}

	// Otherwise check the auth header and cookies
	authTokens := a.bearerTokens(r)
	for _, cookie := range r.CookiesNamed(a.AuthTokenCookieName) {
		if len(cookie.Value) > 0 {
			authTokens = append(authTokens, cookie.Value)
		}
	}

	for _, authToken := range authTokens {
		accountID, err := a.ValidateToken(authToken)
		if err == nil && accountID != "" {
			return accountID
		} else if err != nil {
			slog.Warn("error validating token", "error", err)
		}
	}

	return ""
}

func (a *Middleware) bearerTokens(r *http.Request) []string {
	var out []string
	for _, header := range r.Header.Values(a.AuthTokenHeaderName) {
		out = append(out, strings.TrimPrefix(header, "Bearer "))
	}
	return out
}

// ExtractAccount loads the logged-in account id (if any) into the request
// context for downstream handlers.  It performs no redirects; to enforce a
// login, use RequireAccount.
func (a *Middleware) ExtractAccount(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			accountID := a.GetLoggedInAccountId(r)
			next.ServeHTTP(w, a.setLoggedInAccountId(accountID, r))
		},
	)
}

// RequireAccount runs next only for logged-in requests; everything else is
// redirected to the login page (or receives a 401 when no redirect URL is
// configured).
func (a *Middleware) RequireAccount(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			accountID := a.GetLoggedInAccountId(r)
			if accountID == "" {
				redirUrl := ""
				if a.GetRedirURL != nil {
					redirUrl = a.GetRedirURL(r)
				}
				if redirUrl != "" {
					originalUrl := r.URL.Path
					encodedUrl := strings.Replace(url.QueryEscape(originalUrl), "+", "%20", -1)
					fullRedirUrl := fmt.Sprintf("%s?%s=%s", redirUrl, a.CallbackURLParam, encodedUrl)
					http.Redirect(w, r, fullRedirUrl, http.StatusFound)
				} else {
					http.Error(w, "Login Required", http.StatusUnauthorized)
				}
				return
			}
			next.ServeHTTP(w, a.setLoggedInAccountId(accountID, r))
		},
	)
}

func (a *Middleware) getSessionAccountId(r *http.Request) string {
	if a.SessionGetter == nil {
		return ""
	}
	out := a.SessionGetter(r, a.AccountParamName)
	if out == nil {
		return ""
	}
	s, _ := out.(string)
	return s
}

// setLoggedInAccountId makes the account id available to all downstream
// handlers via the request context.
func (a *Middleware) setLoggedInAccountId(accountID string, r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), accountParamNameKey(a.AccountParamName), accountID)
	return r.WithContext(ctx)
}
