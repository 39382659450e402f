package secretkeeper

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
)

// HandleSignup processes user registration.
func (a *LocalAuth) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if a.Accounts == nil {
		http.Error(w, `{"error": "Signup not configured"}`, http.StatusInternalServerError)
		return
	}

	creds, parseErr := a.parseSignupForm(r)
	if parseErr != nil {
		a.handleSignupError(parseErr, w, r)
		return
	}

	policy := a.getSignupPolicy()
	if authErr := policy.Validate(creds); authErr != nil {
		a.handleSignupError(authErr, w, r)
		return
	}

	accountID, err := a.Register(r.Context(), creds.Identifier, creds.Password)
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentifier) {
			a.handleSignupError(NewAuthError(ErrCodeEmailExists, "Email already registered", "username"), w, r)
			return
		}
		log.Println("error creating account: ", err)
		http.Error(w, `{"error": "Internal error"}`, http.StatusInternalServerError)
		return
	}

	// The account is persisted; log it straight in.
	a.HandleAccount("local", accountID, w, r)
}

func (a *LocalAuth) getSignupPolicy() SignupPolicy {
	if a.SignupPolicy != nil {
		return *a.SignupPolicy
	}
	return DefaultSignupPolicy()
}

// parseSignupForm parses signup form data without validation
func (a *LocalAuth) parseSignupForm(r *http.Request) (*Credentials, *AuthError) {
	contentType := r.Header.Get("Content-Type")
	identifierField := a.getIdentifierField()
	passwordField := a.getPasswordField()

	var identifier, password string

	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return nil, NewAuthError("parse_error", "Error parsing form", "")
		}
		identifier = r.FormValue(identifierField)
		password = r.FormValue(passwordField)
	} else {
		var data map[string]any
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return nil, NewAuthError("parse_error", "Invalid post body", "")
		}
		if u, ok := data[identifierField].(string); ok {
			identifier = u
		}
		if p, ok := data[passwordField].(string); ok {
			password = p
		}
	}

	return &Credentials{Identifier: identifier, Password: password}, nil
}
