package secretkeeper

import (
	"context"
	"strings"
	"time"
)

// Account is the canonical user record.  An account may hold a local
// credential, external identities, or both.
type Account struct {
	// ID is assigned at creation, immutable and never reused.
	ID string `json:"id"`

	// LocalCredential is set only for accounts that can log in with a
	// password.
	LocalCredential *LocalCredential `json:"local_credential,omitempty"`

	// ExternalIdentities holds the (provider, subjectId) pairs vouching
	// for this account.  At most one entry per provider, and a given
	// pair belongs to exactly one account system-wide.
	ExternalIdentities []ExternalIdentity `json:"external_identities,omitempty"`

	// Profile is free-form display data.  Not security relevant.
	Profile map[string]any `json:"profile,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LocalCredential is an (identifier, password hash) pair.  The identifier
// is stored lowercased; the hash is always a bcrypt digest, never a
// plaintext.
type LocalCredential struct {
	Identifier   string `json:"identifier"`
	PasswordHash string `json:"password_hash"`
}

// ExternalIdentity asserts "this provider vouches for this subject as a
// distinct person".
type ExternalIdentity struct {
	Provider  string    `json:"provider"`   // "google", "facebook"
	SubjectID string    `json:"subject_id"` // provider-scoped stable id
	CreatedAt time.Time `json:"created_at"`
}

// Identity returns the account's external identity for provider, if any.
func (a *Account) Identity(provider string) *ExternalIdentity {
	for i := range a.ExternalIdentities {
		if a.ExternalIdentities[i].Provider == provider {
			return &a.ExternalIdentities[i]
		}
	}
	return nil
}

// HasIdentity reports whether the account holds the given pair.
func (a *Account) HasIdentity(provider, subjectID string) bool {
	for _, ident := range a.ExternalIdentities {
		if ident.Provider == provider && ident.SubjectID == subjectID {
			return true
		}
	}
	return false
}

// NormalizeIdentifier lowercases a local identifier.  Lookup and
// registration both normalize, making identifier matching
// case-insensitive.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// IdentityKey builds a consistent storage key for an external identity.
func IdentityKey(provider, subjectID string) string {
	return provider + ":" + subjectID
}

// AccountStore is the persistent record store the auth core runs against.
// Implementations must enforce uniqueness of the local identifier and of
// every (provider, subjectId) pair at the storage level, returning
// ErrDuplicateIdentifier / ErrDuplicateExternalIdentity on conflict, so
// that concurrent creates cannot yield duplicate accounts.
type AccountStore interface {
	// GetAccount retrieves an account by its ID.
	GetAccount(ctx context.Context, accountID string) (*Account, error)

	// FindByLocalIdentifier looks up the account owning a (normalized)
	// local identifier.  Returns ErrAccountNotFound on a miss.
	FindByLocalIdentifier(ctx context.Context, identifier string) (*Account, error)

	// FindByExternalIdentity looks up the account owning the pair.
	// Returns ErrAccountNotFound on a miss.
	FindByExternalIdentity(ctx context.Context, provider, subjectID string) (*Account, error)

	// CreateAccount persists a new account.  The account's ID must be
	// set by the caller.
	CreateAccount(ctx context.Context, account *Account) error

	// UpdateAccount replaces the stored profile and local credential of
	// an existing account.  It does not add or remove external
	// identities; use AddExternalIdentity for that.
	UpdateAccount(ctx context.Context, account *Account) error

	// AddExternalIdentity atomically attaches a pair to an account.
	AddExternalIdentity(ctx context.Context, accountID, provider, subjectID string) error
}

// Session binds an opaque token to an account id.  The account reference
// is weak: a deleted account invalidates the session lazily at Validate
// time.
type Session struct {
	Token     string    `json:"token"`
	AccountID string    `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the session's expiry has passed.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// SessionStore persists sessions.  Implementations key sessions by a hash
// of the token so a leaked store does not leak usable bearer tokens.
type SessionStore interface {
	// CreateSession persists a new session.
	CreateSession(ctx context.Context, session *Session) error

	// GetSession retrieves a session by token.  Returns
	// ErrSessionInvalid for unknown tokens.  Expiry is the caller's
	// concern.
	GetSession(ctx context.Context, token string) (*Session, error)

	// DeleteSession removes a session.  Deleting an unknown token is
	// not an error.
	DeleteSession(ctx context.Context, token string) error

	// DeleteAccountSessions removes every session for an account.
	DeleteAccountSessions(ctx context.Context, accountID string) error
}

// SecretStore wraps retrieval and update of a single named secret value,
// such as the session signing key.  Configuration use only.
type SecretStore interface {
	GetSecret(ctx context.Context, name string) (string, error)
	SetSecret(ctx context.Context, name, value string) error
}
