package secretkeeper

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultSessionTTL is used when a SessionManager is built without an
// explicit time-to-live.
const DefaultSessionTTL = 24 * time.Hour

// SessionManager issues, validates and revokes opaque session tokens.
// Issue only ever accepts an already-persisted account id; it refuses to
// bind a session to an account the store does not know about.
type SessionManager struct {
	Accounts AccountStore
	Sessions SessionStore

	// TTL bounds every issued session.  Zero means DefaultSessionTTL.
	TTL time.Duration

	// Now is the clock.  Tests override it to drive expiry.
	Now func() time.Time
}

func (m *SessionManager) ttl() time.Duration {
	if m.TTL <= 0 {
		return DefaultSessionTTL
	}
	return m.TTL
}

func (m *SessionManager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Issue creates a session bound to accountID.  The account must already be
// persisted; issuing for an unknown account fails.
func (m *SessionManager) Issue(ctx context.Context, accountID string) (*Session, error) {
	if _, err := m.Accounts.GetAccount(ctx, accountID); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, fmt.Errorf("cannot issue session: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	token, err := GenerateSecureToken()
	if err != nil {
		return nil, err
	}

	now := m.now()
	session := &Session{
		Token:     token,
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl()),
	}
	if err := m.Sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return session, nil
}

// Validate resolves a token to the account id it was issued for.  Unknown
// or revoked tokens fail with ErrSessionInvalid, expired ones with
// ErrSessionExpired.  Validation is read-only: no touch writes, no sliding
// expiry.
func (m *SessionManager) Validate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrSessionInvalid
	}
	session, err := m.Sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionInvalid) {
			return "", ErrSessionInvalid
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if m.now().After(session.ExpiresAt) {
		return "", ErrSessionExpired
	}
	return session.AccountID, nil
}

// Revoke tears the session down.  Subsequent Validate calls on the same
// token fail with ErrSessionInvalid.  Revoking an unknown token is not an
// error.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if err := m.Sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RevokeAll tears down every session for an account.
func (m *SessionManager) RevokeAll(ctx context.Context, accountID string) error {
	if err := m.Sessions.DeleteAccountSessions(ctx, accountID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
