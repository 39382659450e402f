package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sk "github.com/secretkeeper/secretkeeper"
)

// AccountStore stores accounts as JSON files.  Uniqueness of local
// identifiers and (provider, subjectId) pairs is enforced by exclusive
// claim files, so concurrent creates for the same identity cannot both
// succeed.
type AccountStore struct {
	StoragePath string

	mu sync.Mutex
}

func NewAccountStore(storagePath string) *AccountStore {
	return &AccountStore{StoragePath: storagePath}
}

func (s *AccountStore) accountPath(accountID string) string {
	safeID := filepath.Base(accountID) // prevents path traversal
	return filepath.Join(s.StoragePath, "accounts", safeID+".json")
}

func (s *AccountStore) identifierPath(identifier string) string {
	safeKey := filepath.Base(identifier)
	return filepath.Join(s.StoragePath, "identifiers", safeKey+".claim")
}

func (s *AccountStore) identityPath(provider, subjectID string) string {
	safeKey := filepath.Base(sk.IdentityKey(provider, subjectID))
	return filepath.Join(s.StoragePath, "identities", safeKey+".claim")
}

func (s *AccountStore) GetAccount(ctx context.Context, accountID string) (*sk.Account, error) {
	return s.readAccount(accountID)
}

func (s *AccountStore) readAccount(accountID string) (*sk.Account, error) {
	data, err := os.ReadFile(s.accountPath(accountID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sk.ErrAccountNotFound
		}
		return nil, err
	}
	var account sk.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *AccountStore) FindByLocalIdentifier(ctx context.Context, identifier string) (*sk.Account, error) {
	return s.resolveClaim(s.identifierPath(identifier))
}

func (s *AccountStore) FindByExternalIdentity(ctx context.Context, provider, subjectID string) (*sk.Account, error) {
	return s.resolveClaim(s.identityPath(provider, subjectID))
}

func (s *AccountStore) resolveClaim(claimPath string) (*sk.Account, error) {
	data, err := os.ReadFile(claimPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sk.ErrAccountNotFound
		}
		return nil, err
	}
	return s.readAccount(strings.TrimSpace(string(data)))
}

func (s *AccountStore) CreateAccount(ctx context.Context, account *sk.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []string
	undo := func() {
		for _, path := range claimed {
			os.Remove(path)
		}
	}

	if account.LocalCredential != nil {
		path := s.identifierPath(account.LocalCredential.Identifier)
		created, err := claimFile(path, account.ID)
		if err != nil {
			undo()
			return err
		}
		if !created {
			undo()
			return sk.ErrDuplicateIdentifier
		}
		claimed = append(claimed, path)
	}

	for _, ident := range account.ExternalIdentities {
		path := s.identityPath(ident.Provider, ident.SubjectID)
		created, err := claimFile(path, account.ID)
		if err != nil {
			undo()
			return err
		}
		if !created {
			undo()
			return sk.ErrDuplicateExternalIdentity
		}
		claimed = append(claimed, path)
	}

	if err := s.writeAccount(account); err != nil {
		undo()
		return err
	}
	return nil
}

func (s *AccountStore) UpdateAccount(ctx context.Context, account *sk.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readAccount(account.ID)
	if err != nil {
		return err
	}

	// Identities are managed through AddExternalIdentity; keep the
	// stored set authoritative.
	account.ExternalIdentities = existing.ExternalIdentities
	account.UpdatedAt = time.Now()
	return s.writeAccount(account)
}

func (s *AccountStore) AddExternalIdentity(ctx context.Context, accountID, provider, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.readAccount(accountID)
	if err != nil {
		return err
	}

	path := s.identityPath(provider, subjectID)
	created, err := claimFile(path, accountID)
	if err != nil {
		return err
	}
	if !created {
		return sk.ErrDuplicateExternalIdentity
	}

	account.ExternalIdentities = append(account.ExternalIdentities, sk.ExternalIdentity{
		Provider:  provider,
		SubjectID: subjectID,
		CreatedAt: time.Now(),
	})
	account.UpdatedAt = time.Now()
	if err := s.writeAccount(account); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

func (s *AccountStore) writeAccount(account *sk.Account) error {
	path := s.accountPath(account.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(account, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data)
}
