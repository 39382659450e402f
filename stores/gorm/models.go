//go:build !wasm
// +build !wasm

package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	sk "github.com/secretkeeper/secretkeeper"
)

// JSONMap is a helper type for storing JSON maps in GORM
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, m)
}

// AccountModel is the GORM model for accounts.  Identifier is nullable:
// provider-only accounts have no local credential.  The unique index on it
// is what makes registration race-free.
type AccountModel struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Identifier   *string   `gorm:"uniqueIndex;size:255"`
	PasswordHash string    `gorm:"size:128"`
	Profile      JSONMap   `gorm:"type:jsonb"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

// ExternalIdentityModel is the GORM model for external identities.  The
// composite primary key on (provider, subject_id) enforces system-wide
// single ownership of each pair.
type ExternalIdentityModel struct {
	Provider  string    `gorm:"primaryKey;size:32"`
	SubjectID string    `gorm:"primaryKey;size:255"`
	AccountID string    `gorm:"size:64;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ExternalIdentityModel) TableName() string {
	return "external_identities"
}

// SessionModel is the GORM model for sessions, keyed by token hash.
type SessionModel struct {
	TokenHash string    `gorm:"primaryKey;size:64"`
	AccountID string    `gorm:"size:64;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	ExpiresAt time.Time `gorm:"index"`
}

func (SessionModel) TableName() string {
	return "sessions"
}

// SecretModel is the GORM model for named configuration secrets.
type SecretModel struct {
	Name      string    `gorm:"primaryKey;size:64"`
	Value     string    `gorm:"size:1024"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (SecretModel) TableName() string {
	return "secrets"
}

func accountFromModels(m *AccountModel, identities []ExternalIdentityModel) *sk.Account {
	account := &sk.Account{
		ID:        m.ID,
		Profile:   m.Profile,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Identifier != nil {
		account.LocalCredential = &sk.LocalCredential{
			Identifier:   *m.Identifier,
			PasswordHash: m.PasswordHash,
		}
	}
	for _, ident := range identities {
		account.ExternalIdentities = append(account.ExternalIdentities, sk.ExternalIdentity{
			Provider:  ident.Provider,
			SubjectID: ident.SubjectID,
			CreatedAt: ident.CreatedAt,
		})
	}
	return account
}

func accountToModel(a *sk.Account) *AccountModel {
	model := &AccountModel{
		ID:        a.ID,
		Profile:   JSONMap(a.Profile),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.LocalCredential != nil {
		identifier := a.LocalCredential.Identifier
		model.Identifier = &identifier
		model.PasswordHash = a.LocalCredential.PasswordHash
	}
	return model
}
