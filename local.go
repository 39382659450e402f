package secretkeeper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// HandleAccountFunc is called after any successful authentication with the
// persisted account's id.  The web layer uses it to establish the session
// and redirect.
type HandleAccountFunc func(provider string, accountID string, w http.ResponseWriter, r *http.Request)

// AuthErrorHandler lets apps render auth failures their own way.  Return
// true if the error was handled.
type AuthErrorHandler func(err *AuthError, w http.ResponseWriter, r *http.Request) bool

// LocalAuth verifies and registers password credentials.  Store and hasher
// are injected; there is no package-level state.
type LocalAuth struct {
	// Accounts is the persistent record store.  Required.
	Accounts AccountStore

	// Hasher performs password hashing.  The zero value is usable.
	Hasher Hasher

	// HandleAccount is called on login/signup success.
	HandleAccount HandleAccountFunc

	// SignupPolicy defines what is required for signup.  Nil means
	// DefaultSignupPolicy.
	SignupPolicy *SignupPolicy

	// OnLoginError / OnSignupError render failures.  Nil means JSON.
	OnLoginError  AuthErrorHandler
	OnSignupError AuthErrorHandler

	// Form field names.  Default "username" and "password".
	IdentifierField string
	PasswordField   string
}

// VerifyLocal validates an (identifier, password) pair and returns the
// owning account's id.  Unknown identifier, missing local credential and
// password mismatch are all reported as ErrInvalidCredentials so the
// response does not disclose whether the account exists.
func (a *LocalAuth) VerifyLocal(ctx context.Context, identifier, password string) (string, error) {
	identifier = NormalizeIdentifier(identifier)
	account, err := a.Accounts.FindByLocalIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if account.LocalCredential == nil {
		// The account exists but only via external identities.
		return "", ErrInvalidCredentials
	}
	if !a.Hasher.Verify(password, account.LocalCredential.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return account.ID, nil
}

// Register creates a new account holding only a local credential and
// returns its id.  The store's uniqueness constraint makes registration of
// the same identifier race-free.
func (a *LocalAuth) Register(ctx context.Context, identifier, password string) (string, error) {
	identifier = NormalizeIdentifier(identifier)
	hash, err := a.Hasher.Hash(password)
	if err != nil {
		return "", err
	}

	now := time.Now()
	account := &Account{
		ID: GenerateAccountID(),
		LocalCredential: &LocalCredential{
			Identifier:   identifier,
			PasswordHash: hash,
		},
		Profile:   map[string]any{"email": identifier},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.Accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicateIdentifier) {
			return "", ErrDuplicateIdentifier
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return account.ID, nil
}

// ServeHTTP handles login requests.
func (a *LocalAuth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if a.Accounts == nil {
		http.Error(w, `{"error": "Login not configured"}`, http.StatusInternalServerError)
		return
	}

	identifier, password, err := a.parseLoginForm(r)
	if err != nil {
		a.handleLoginError(NewAuthError(ErrCodeMissingField, err.Error(), a.getIdentifierField()), w, r)
		return
	}

	accountID, err := a.VerifyLocal(r.Context(), identifier, password)
	if err != nil {
		if Fatal(err) {
			log.Println("error validating credentials: ", err)
			http.Error(w, `{"error": "Internal error"}`, http.StatusInternalServerError)
			return
		}
		a.handleLoginError(NewAuthError(ErrCodeInvalidCreds, "Invalid credentials", a.getPasswordField()), w, r)
		return
	}

	a.HandleAccount("local", accountID, w, r)
}

func (a *LocalAuth) parseLoginForm(r *http.Request) (identifier, password string, err error) {
	contentType := r.Header.Get("Content-Type")
	identifierField := a.getIdentifierField()
	passwordField := a.getPasswordField()

	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err = r.ParseForm(); err != nil {
			return "", "", fmt.Errorf("error parsing form")
		}
		identifier = r.FormValue(identifierField)
		password = r.FormValue(passwordField)
	} else {
		var data map[string]any
		if err = json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return "", "", fmt.Errorf("invalid post body")
		}
		if u, ok := data[identifierField].(string); ok {
			identifier = u
		}
		if p, ok := data[passwordField].(string); ok {
			password = p
		}
	}

	if identifier == "" || password == "" {
		return "", "", fmt.Errorf("username and password required")
	}

	return identifier, password, nil
}

func (a *LocalAuth) getIdentifierField() string {
	if a.IdentifierField != "" {
		return a.IdentifierField
	}
	return "username"
}

func (a *LocalAuth) getPasswordField() string {
	if a.PasswordField != "" {
		return a.PasswordField
	}
	return "password"
}

// handleLoginError handles login errors using the configured handler or default JSON
func (a *LocalAuth) handleLoginError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnLoginError != nil && a.OnLoginError(err, w, r) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	statusCode := http.StatusUnauthorized
	if err.Code == ErrCodeMissingField {
		statusCode = http.StatusBadRequest
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(err)
}

// handleSignupError handles signup errors using the configured handler or default JSON
func (a *LocalAuth) handleSignupError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnSignupError != nil && a.OnSignupError(err, w, r) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	statusCode := http.StatusBadRequest
	if err.Code == ErrCodeEmailExists {
		statusCode = http.StatusConflict
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(err)
}
