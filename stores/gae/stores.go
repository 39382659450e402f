//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	sk "github.com/secretkeeper/secretkeeper"
)

// Kind constants for Datastore entities
const (
	KindAccount    = "Account"
	KindIdentity   = "Identity"
	KindIdentifier = "Identifier"
	KindSession    = "Session"
	KindSecret     = "Secret"
)

// ============================================================================
// AccountStore
// ============================================================================

// AccountStore implements sk.AccountStore using Google Cloud Datastore.
// Identifier and identity claims are separate entities keyed by the claimed
// value; creating them inside a transaction with a prior Get is what makes
// find-or-create race-free.
type AccountStore struct {
	client    *datastore.Client
	namespace string
}

// NewAccountStore creates a new Datastore-backed AccountStore
func NewAccountStore(client *datastore.Client, namespace string) *AccountStore {
	return &AccountStore{client: client, namespace: namespace}
}

func (s *AccountStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *AccountStore) identityKeyName(provider, subjectID string) string {
	return sk.IdentityKey(provider, subjectID)
}

func (s *AccountStore) GetAccount(ctx context.Context, accountID string) (*sk.Account, error) {
	key := s.namespacedKey(KindAccount, accountID)
	var entity AccountEntity
	if err := s.client.Get(ctx, key, &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, sk.ErrAccountNotFound
		}
		return nil, err
	}

	identities, err := s.accountIdentities(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return entity.toAccount(accountID, identities), nil
}

func (s *AccountStore) accountIdentities(ctx context.Context, accountID string) ([]sk.ExternalIdentity, error) {
	query := datastore.NewQuery(KindIdentity).
		FilterField("account_id", "=", accountID)
	if s.namespace != "" {
		query = query.Namespace(s.namespace)
	}

	var identities []sk.ExternalIdentity
	it := s.client.Run(ctx, query)
	for {
		var entity IdentityEntity
		_, err := it.Next(&entity)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		identities = append(identities, sk.ExternalIdentity{
			Provider:  entity.Provider,
			SubjectID: entity.SubjectID,
			CreatedAt: entity.CreatedAt,
		})
	}
	return identities, nil
}

func (s *AccountStore) FindByLocalIdentifier(ctx context.Context, identifier string) (*sk.Account, error) {
	key := s.namespacedKey(KindIdentifier, identifier)
	var claim IdentifierEntity
	if err := s.client.Get(ctx, key, &claim); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, sk.ErrAccountNotFound
		}
		return nil, err
	}
	return s.GetAccount(ctx, claim.AccountID)
}

func (s *AccountStore) FindByExternalIdentity(ctx context.Context, provider, subjectID string) (*sk.Account, error) {
	key := s.namespacedKey(KindIdentity, s.identityKeyName(provider, subjectID))
	var claim IdentityEntity
	if err := s.client.Get(ctx, key, &claim); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, sk.ErrAccountNotFound
		}
		return nil, err
	}
	return s.GetAccount(ctx, claim.AccountID)
}

func (s *AccountStore) CreateAccount(ctx context.Context, account *sk.Account) error {
	accountKey := s.namespacedKey(KindAccount, account.ID)
	now := time.Now()

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		if account.LocalCredential != nil {
			claimKey := s.namespacedKey(KindIdentifier, account.LocalCredential.Identifier)
			var existing IdentifierEntity
			err := tx.Get(claimKey, &existing)
			if err == nil {
				return sk.ErrDuplicateIdentifier
			}
			if err != datastore.ErrNoSuchEntity {
				return err
			}
			claim := &IdentifierEntity{Key: claimKey, AccountID: account.ID, CreatedAt: now}
			if _, err := tx.Put(claimKey, claim); err != nil {
				return err
			}
		}

		for _, ident := range account.ExternalIdentities {
			claimKey := s.namespacedKey(KindIdentity, s.identityKeyName(ident.Provider, ident.SubjectID))
			var existing IdentityEntity
			err := tx.Get(claimKey, &existing)
			if err == nil {
				return sk.ErrDuplicateExternalIdentity
			}
			if err != datastore.ErrNoSuchEntity {
				return err
			}
			claim := &IdentityEntity{
				Key:       claimKey,
				Provider:  ident.Provider,
				SubjectID: ident.SubjectID,
				AccountID: account.ID,
				CreatedAt: now,
			}
			if _, err := tx.Put(claimKey, claim); err != nil {
				return err
			}
		}

		_, err := tx.Put(accountKey, accountToEntity(account, accountKey))
		return err
	})
	return err
}

func (s *AccountStore) UpdateAccount(ctx context.Context, account *sk.Account) error {
	key := s.namespacedKey(KindAccount, account.ID)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing AccountEntity
		if err := tx.Get(key, &existing); err != nil {
			if err == datastore.ErrNoSuchEntity {
				return sk.ErrAccountNotFound
			}
			return err
		}
		entity := accountToEntity(account, key)
		entity.CreatedAt = existing.CreatedAt
		entity.UpdatedAt = time.Now()
		_, err := tx.Put(key, entity)
		return err
	})
	return err
}

func (s *AccountStore) AddExternalIdentity(ctx context.Context, accountID, provider, subjectID string) error {
	accountKey := s.namespacedKey(KindAccount, accountID)
	claimKey := s.namespacedKey(KindIdentity, s.identityKeyName(provider, subjectID))

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var account AccountEntity
		if err := tx.Get(accountKey, &account); err != nil {
			if err == datastore.ErrNoSuchEntity {
				return sk.ErrAccountNotFound
			}
			return err
		}

		var existing IdentityEntity
		err := tx.Get(claimKey, &existing)
		if err == nil {
			return sk.ErrDuplicateExternalIdentity
		}
		if err != datastore.ErrNoSuchEntity {
			return err
		}

		claim := &IdentityEntity{
			Key:       claimKey,
			Provider:  provider,
			SubjectID: subjectID,
			AccountID: accountID,
			CreatedAt: time.Now(),
		}
		_, err = tx.Put(claimKey, claim)
		return err
	})
	return err
}

// ============================================================================
// SessionStore
// ============================================================================

// SessionStore implements sk.SessionStore using Google Cloud Datastore
type SessionStore struct {
	client    *datastore.Client
	namespace string
}

// NewSessionStore creates a new Datastore-backed SessionStore
func NewSessionStore(client *datastore.Client, namespace string) *SessionStore {
	return &SessionStore{client: client, namespace: namespace}
}

func (s *SessionStore) sessionKey(token string) *datastore.Key {
	key := datastore.NameKey(KindSession, sk.HashToken(token), nil)
	key.Namespace = s.namespace
	return key
}

func (s *SessionStore) CreateSession(ctx context.Context, session *sk.Session) error {
	key := s.sessionKey(session.Token)
	entity := &SessionEntity{
		Key:       key,
		AccountID: session.AccountID,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}
	_, err := s.client.Put(ctx, key, entity)
	return err
}

func (s *SessionStore) GetSession(ctx context.Context, token string) (*sk.Session, error) {
	var entity SessionEntity
	if err := s.client.Get(ctx, s.sessionKey(token), &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, sk.ErrSessionInvalid
		}
		return nil, err
	}
	return &sk.Session{
		Token:     token,
		AccountID: entity.AccountID,
		CreatedAt: entity.CreatedAt,
		ExpiresAt: entity.ExpiresAt,
	}, nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, token string) error {
	err := s.client.Delete(ctx, s.sessionKey(token))
	if err != nil && err != datastore.ErrNoSuchEntity {
		return err
	}
	return nil
}

func (s *SessionStore) DeleteAccountSessions(ctx context.Context, accountID string) error {
	query := datastore.NewQuery(KindSession).
		FilterField("account_id", "=", accountID).
		KeysOnly()
	if s.namespace != "" {
		query = query.Namespace(s.namespace)
	}

	var keys []*datastore.Key
	it := s.client.Run(ctx, query)
	for {
		key, err := it.Next(nil)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.DeleteMulti(ctx, keys)
}

// ============================================================================
// SecretStore
// ============================================================================

// SecretStore implements sk.SecretStore using Google Cloud Datastore
type SecretStore struct {
	client    *datastore.Client
	namespace string
}

// NewSecretStore creates a new Datastore-backed SecretStore
func NewSecretStore(client *datastore.Client, namespace string) *SecretStore {
	return &SecretStore{client: client, namespace: namespace}
}

func (s *SecretStore) secretKey(name string) *datastore.Key {
	key := datastore.NameKey(KindSecret, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *SecretStore) GetSecret(ctx context.Context, name string) (string, error) {
	var entity SecretEntity
	if err := s.client.Get(ctx, s.secretKey(name), &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return "", sk.ErrSecretNotFound
		}
		return "", err
	}
	return entity.Value, nil
}

func (s *SecretStore) SetSecret(ctx context.Context, name, value string) error {
	key := s.secretKey(name)
	entity := &SecretEntity{Key: key, Value: value, UpdatedAt: time.Now()}
	_, err := s.client.Put(ctx, key, entity)
	return err
}
