package secretkeeper

import "errors"

// Sentinel errors returned by the auth core.  The presentation layer maps
// these to redirects/error pages; only ErrHashing and ErrStoreUnavailable
// indicate an environment failure rather than a user error.
var (
	// ErrInvalidCredentials covers unknown identifier, password-less
	// account and hash mismatch alike, so callers cannot probe for
	// account existence.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDuplicateIdentifier means the local identifier is already
	// registered to another account.
	ErrDuplicateIdentifier = errors.New("identifier already registered")

	// ErrIdentityAlreadyLinked means the (provider, subjectId) pair is
	// claimed by a different account.
	ErrIdentityAlreadyLinked = errors.New("identity already linked to another account")

	// ErrProviderUnavailable means the provider could not be reached
	// (network failure, timeout).
	ErrProviderUnavailable = errors.New("identity provider unavailable")

	// ErrProviderRejected means the provider refused the authorization
	// artifact (bad or expired code).
	ErrProviderRejected = errors.New("identity provider rejected the authorization code")

	ErrSessionExpired = errors.New("session expired")
	ErrSessionInvalid = errors.New("session invalid")

	// ErrHashing means the password hash function itself failed.  Never
	// treated as accept or reject.
	ErrHashing = errors.New("password hashing failed")

	// ErrStoreUnavailable wraps store failures that are not simple
	// not-found conditions.
	ErrStoreUnavailable = errors.New("account store unavailable")
)

// Errors returned by the store interfaces.
var (
	ErrAccountNotFound = errors.New("account not found")

	// ErrDuplicateExternalIdentity is returned by CreateAccount and
	// AddExternalIdentity when the (provider, subjectId) pair is already
	// claimed.  The resolver relies on this to make find-or-create
	// race-free.
	ErrDuplicateExternalIdentity = errors.New("external identity already exists")

	ErrSecretNotFound = errors.New("secret not found")
)

// Fatal reports whether err indicates an environment failure that the web
// layer should surface as a 5xx rather than a user-facing auth error.
func Fatal(err error) bool {
	return errors.Is(err, ErrHashing) || errors.Is(err, ErrStoreUnavailable)
}

// Error codes for HTTP responses
const (
	ErrCodeInvalidCreds   = "invalid_credentials"
	ErrCodeMissingField   = "missing_field"
	ErrCodeInvalidEmail   = "invalid_email"
	ErrCodeEmailExists    = "email_exists"
	ErrCodeWeakPassword   = "weak_password"
	ErrCodeProviderFailed = "provider_failed"
	ErrCodeSessionExpired = "session_expired"
	ErrCodeSessionInvalid = "session_invalid"
	ErrCodeInternal       = "internal_error"
	ErrCodeIdentityLinked = "identity_already_linked"
)

// AuthError is the structured error the HTTP handlers return to the
// presentation layer.  It never carries passwords, hashes or provider
// secrets.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *AuthError) Error() string {
	return e.Message
}

func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

// CodeForError maps a core sentinel to its HTTP error code.
func CodeForError(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return ErrCodeInvalidCreds
	case errors.Is(err, ErrDuplicateIdentifier):
		return ErrCodeEmailExists
	case errors.Is(err, ErrIdentityAlreadyLinked):
		return ErrCodeIdentityLinked
	case errors.Is(err, ErrProviderUnavailable), errors.Is(err, ErrProviderRejected):
		return ErrCodeProviderFailed
	case errors.Is(err, ErrSessionExpired):
		return ErrCodeSessionExpired
	case errors.Is(err, ErrSessionInvalid):
		return ErrCodeSessionInvalid
	default:
		return ErrCodeInternal
	}
}
