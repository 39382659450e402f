package main

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"

	sk "github.com/secretkeeper/secretkeeper"
	skoauth2 "github.com/secretkeeper/secretkeeper/oauth2"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Server is the secretsd web app: public home/login/register pages, the
// auth flows mounted under /auth/, and the logged-in secrets pages.
type Server struct {
	cfg       *Config
	auth      *sk.Auth
	local     *sk.LocalAuth
	secrets   sk.SecretStore
	session   *scs.SessionManager
	templates *template.Template
}

func NewServer(cfg *Config, accounts sk.AccountStore, sessions sk.SessionStore, secrets sk.SecretStore) (*Server, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	session := scs.New()

	auth := sk.New("Secrets", accounts, sessions)
	auth.Session = session
	auth.SessionTimeoutInSeconds = cfg.SessionTTLSeconds
	auth.Signer.SecretKey = cfg.SigningSecret
	auth.Middleware.SessionGetter = func(r *http.Request, param string) any {
		return session.GetString(r.Context(), param)
	}
	auth.Middleware.GetRedirURL = func(r *http.Request) string { return "/login" }
	auth.EnsureDefaults()

	s := &Server{
		cfg:       cfg,
		auth:      auth,
		secrets:   secrets,
		session:   session,
		templates: templates,
	}

	s.local = &sk.LocalAuth{
		Accounts:      accounts,
		Hasher:        sk.Hasher{Cost: cfg.BcryptCost},
		HandleAccount: auth.HandleLocalAccount("/secrets"),
		OnLoginError:  s.onLoginError,
		OnSignupError: s.onSignupError,
	}
	auth.AddAuth("/login", s.local)
	auth.AddAuth("/signup", http.HandlerFunc(s.local.HandleSignup))

	const authFailureURL = "/login?error=Authentication+failed"
	if cfg.Google.Enabled() {
		google := skoauth2.NewGoogleOAuth2(
			cfg.Google.ClientID, cfg.Google.ClientSecret,
			callbackURL(cfg, cfg.Google.CallbackURL, "/auth/google/callback/"),
			auth.SaveIdentityAndRedirect)
		google.AuthFailureUrl = authFailureURL
		auth.AddAuth("/google", google)
	}
	if cfg.Facebook.Enabled() {
		facebook := skoauth2.NewFacebookOAuth2(
			cfg.Facebook.ClientID, cfg.Facebook.ClientSecret,
			callbackURL(cfg, cfg.Facebook.CallbackURL, "/auth/facebook/callback/"),
			auth.SaveIdentityAndRedirect)
		facebook.AuthFailureUrl = authFailureURL
		auth.AddAuth("/facebook", facebook)
	}

	return s, nil
}

func callbackURL(cfg *Config, configured, defaultPath string) string {
	if configured != "" {
		return configured
	}
	return strings.TrimSuffix(cfg.BaseURL, "/") + defaultPath
}

// Handler builds the full route tree.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", s.onHome).Methods("GET")
	router.HandleFunc("/login", s.onLoginPage).Methods("GET")
	router.HandleFunc("/register", s.onRegisterPage).Methods("GET")

	router.PathPrefix("/auth/").Handler(http.StripPrefix("/auth", s.auth.Handler()))
	router.PathPrefix("/static/").Handler(http.FileServer(http.FS(staticFS)))

	requireAccount := s.auth.Middleware.RequireAccount
	router.Handle("/secrets", requireAccount(http.HandlerFunc(s.onSecrets))).Methods("GET")
	router.Handle("/submit", requireAccount(http.HandlerFunc(s.onSubmitPage))).Methods("GET")
	router.Handle("/submit", requireAccount(http.HandlerFunc(s.onSubmit))).Methods("POST")

	return s.session.LoadAndSave(router)
}

func (s *Server) render(w http.ResponseWriter, name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["GoogleEnabled"] = s.cfg.Google.Enabled()
	data["FacebookEnabled"] = s.cfg.Facebook.Enabled()
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("error rendering template", "template", name, "err", err)
	}
}

func (s *Server) onHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, "home.html", nil)
}

func (s *Server) onLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, "login.html", map[string]any{"Error": r.URL.Query().Get("error")})
}

func (s *Server) onRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, "register.html", map[string]any{"Error": r.URL.Query().Get("error")})
}

func (s *Server) onSecrets(w http.ResponseWriter, r *http.Request) {
	accountID := s.auth.Middleware.GetLoggedInAccountId(r)
	secret, err := s.secrets.GetSecret(r.Context(), accountID)
	if err != nil && !errors.Is(err, sk.ErrSecretNotFound) {
		slog.Error("error loading secret", "err", err)
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
		return
	}
	s.render(w, "secrets.html", map[string]any{"Secret": secret})
}

func (s *Server) onSubmitPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, "submit.html", nil)
}

func (s *Server) onSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	secret := strings.TrimSpace(r.PostFormValue("secret"))
	if secret == "" {
		http.Redirect(w, r, "/submit", http.StatusFound)
		return
	}
	accountID := s.auth.Middleware.GetLoggedInAccountId(r)
	if err := s.secrets.SetSecret(r.Context(), accountID, secret); err != nil {
		slog.Error("error saving secret", "err", err)
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

// onLoginError redirects browser form logins back to the login page with
// a friendly message instead of the JSON default.
func (s *Server) onLoginError(authErr *sk.AuthError, w http.ResponseWriter, r *http.Request) bool {
	if wantsJSON(r) {
		return false
	}
	http.Redirect(w, r, "/login?error="+url.QueryEscape(authErr.Message), http.StatusFound)
	return true
}

func (s *Server) onSignupError(authErr *sk.AuthError, w http.ResponseWriter, r *http.Request) bool {
	if wantsJSON(r) {
		return false
	}
	http.Redirect(w, r, "/register?error="+url.QueryEscape(authErr.Message), http.StatusFound)
	return true
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
