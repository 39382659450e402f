package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	sk "github.com/secretkeeper/secretkeeper"
)

// SessionStore stores sessions as JSON files keyed by token hash.  The
// stored token field holds the hash too, so a copied storage directory
// cannot be replayed as bearer tokens.
type SessionStore struct {
	StoragePath string
}

func NewSessionStore(storagePath string) *SessionStore {
	return &SessionStore{StoragePath: storagePath}
}

func (s *SessionStore) sessionPath(token string) string {
	return filepath.Join(s.StoragePath, "sessions", sk.HashToken(token)+".json")
}

func (s *SessionStore) CreateSession(ctx context.Context, session *sk.Session) error {
	stored := *session
	stored.Token = sk.HashToken(session.Token)

	path := s.sessionPath(session.Token)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&stored, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data)
}

func (s *SessionStore) GetSession(ctx context.Context, token string) (*sk.Session, error) {
	data, err := os.ReadFile(s.sessionPath(token))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sk.ErrSessionInvalid
		}
		return nil, err
	}
	var session sk.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	// Hand the caller back the token it looked up with, not the hash.
	session.Token = token
	return &session, nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, token string) error {
	err := os.Remove(s.sessionPath(token))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *SessionStore) DeleteAccountSessions(ctx context.Context, accountID string) error {
	dir := filepath.Join(s.StoragePath, "sessions")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var session sk.Session
		if err := json.Unmarshal(data, &session); err != nil {
			continue
		}
		if session.AccountID == accountID {
			os.Remove(path)
		}
	}
	return nil
}
