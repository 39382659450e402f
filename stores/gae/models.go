//go:build !wasm
// +build !wasm

package gae

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/datastore"

	sk "github.com/secretkeeper/secretkeeper"
)

// AccountEntity is the Datastore entity for accounts
type AccountEntity struct {
	Key          *datastore.Key `datastore:"__key__"`
	Identifier   string         `datastore:"identifier"`
	PasswordHash string         `datastore:"password_hash,noindex"`
	Profile      []byte         `datastore:"profile,noindex"` // JSON encoded
	CreatedAt    time.Time      `datastore:"created_at"`
	UpdatedAt    time.Time      `datastore:"updated_at"`
}

// IdentityEntity is the Datastore entity for external identities.
// Key format: Provider + ":" + SubjectID, so the keyspace itself enforces
// single ownership of each pair.
type IdentityEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	Provider  string         `datastore:"provider"`
	SubjectID string         `datastore:"subject_id"`
	AccountID string         `datastore:"account_id"`
	CreatedAt time.Time      `datastore:"created_at"`
}

// IdentifierEntity claims a local identifier for an account.
// Key format: the normalized identifier.
type IdentifierEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	AccountID string         `datastore:"account_id"`
	CreatedAt time.Time      `datastore:"created_at"`
}

// SessionEntity is the Datastore entity for sessions, keyed by token hash
type SessionEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	AccountID string         `datastore:"account_id"`
	CreatedAt time.Time      `datastore:"created_at"`
	ExpiresAt time.Time      `datastore:"expires_at"`
}

// SecretEntity is the Datastore entity for named configuration secrets
type SecretEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	Value     string         `datastore:"value,noindex"`
	UpdatedAt time.Time      `datastore:"updated_at"`
}

func (e *AccountEntity) toAccount(accountID string, identities []sk.ExternalIdentity) *sk.Account {
	account := &sk.Account{
		ID:                 accountID,
		ExternalIdentities: identities,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
	if e.Identifier != "" {
		account.LocalCredential = &sk.LocalCredential{
			Identifier:   e.Identifier,
			PasswordHash: e.PasswordHash,
		}
	}
	if e.Profile != nil {
		json.Unmarshal(e.Profile, &account.Profile)
	}
	return account
}

func accountToEntity(a *sk.Account, key *datastore.Key) *AccountEntity {
	entity := &AccountEntity{
		Key:       key,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.LocalCredential != nil {
		entity.Identifier = a.LocalCredential.Identifier
		entity.PasswordHash = a.LocalCredential.PasswordHash
	}
	if a.Profile != nil {
		entity.Profile, _ = json.Marshal(a.Profile)
	}
	return entity
}
