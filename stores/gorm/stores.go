//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	sk "github.com/secretkeeper/secretkeeper"
)

// AutoMigrate runs database migrations for all secretkeeper tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&AccountModel{},
		&ExternalIdentityModel{},
		&SessionModel{},
		&SecretModel{},
	)
}

// isDuplicateKey detects unique-constraint violations across the dialects
// we run against (sqlite and postgres); not every driver translates to
// gorm.ErrDuplicatedKey.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// =============================================================================
// AccountStore
// =============================================================================

// AccountStore implements sk.AccountStore using GORM.  Uniqueness of
// identifiers and identity pairs is delegated to the database's unique
// indexes, which is what makes find-or-create safe under concurrency.
type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) GetAccount(ctx context.Context, accountID string) (*sk.Account, error) {
	var model AccountModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sk.ErrAccountNotFound
		}
		return nil, err
	}
	identities, err := s.accountIdentities(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return accountFromModels(&model, identities), nil
}

func (s *AccountStore) accountIdentities(ctx context.Context, accountID string) ([]ExternalIdentityModel, error) {
	var identities []ExternalIdentityModel
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Find(&identities).Error
	return identities, err
}

func (s *AccountStore) FindByLocalIdentifier(ctx context.Context, identifier string) (*sk.Account, error) {
	var model AccountModel
	if err := s.db.WithContext(ctx).First(&model, "identifier = ?", identifier).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sk.ErrAccountNotFound
		}
		return nil, err
	}
	identities, err := s.accountIdentities(ctx, model.ID)
	if err != nil {
		return nil, err
	}
	return accountFromModels(&model, identities), nil
}

func (s *AccountStore) FindByExternalIdentity(ctx context.Context, provider, subjectID string) (*sk.Account, error) {
	var ident ExternalIdentityModel
	err := s.db.WithContext(ctx).
		First(&ident, "provider = ? AND subject_id = ?", provider, subjectID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sk.ErrAccountNotFound
		}
		return nil, err
	}
	return s.GetAccount(ctx, ident.AccountID)
}

func (s *AccountStore) CreateAccount(ctx context.Context, account *sk.Account) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(accountToModel(account)).Error; err != nil {
			return err
		}
		for _, ident := range account.ExternalIdentities {
			createdAt := ident.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now()
			}
			model := &ExternalIdentityModel{
				Provider:  ident.Provider,
				SubjectID: ident.SubjectID,
				AccountID: account.ID,
				CreatedAt: createdAt,
			}
			if err := tx.Create(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil && isDuplicateKey(err) {
		if account.LocalCredential != nil && len(account.ExternalIdentities) == 0 {
			return sk.ErrDuplicateIdentifier
		}
		return sk.ErrDuplicateExternalIdentity
	}
	return err
}

func (s *AccountStore) UpdateAccount(ctx context.Context, account *sk.Account) error {
	model := accountToModel(account)
	result := s.db.WithContext(ctx).Model(&AccountModel{}).
		Where("id = ?", account.ID).
		Updates(map[string]any{
			"identifier":    model.Identifier,
			"password_hash": model.PasswordHash,
			"profile":       model.Profile,
		})
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return sk.ErrDuplicateIdentifier
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return sk.ErrAccountNotFound
	}
	return nil
}

func (s *AccountStore) AddExternalIdentity(ctx context.Context, accountID, provider, subjectID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account AccountModel
		if err := tx.First(&account, "id = ?", accountID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return sk.ErrAccountNotFound
			}
			return err
		}
		return tx.Create(&ExternalIdentityModel{
			Provider:  provider,
			SubjectID: subjectID,
			AccountID: accountID,
			CreatedAt: time.Now(),
		}).Error
	})
	if err != nil && isDuplicateKey(err) {
		return sk.ErrDuplicateExternalIdentity
	}
	return err
}

// =============================================================================
// SessionStore
// =============================================================================

// SessionStore implements sk.SessionStore using GORM
type SessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) CreateSession(ctx context.Context, session *sk.Session) error {
	model := &SessionModel{
		TokenHash: sk.HashToken(session.Token),
		AccountID: session.AccountID,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}
	return s.db.WithContext(ctx).Create(model).Error
}

func (s *SessionStore) GetSession(ctx context.Context, token string) (*sk.Session, error) {
	var model SessionModel
	err := s.db.WithContext(ctx).
		First(&model, "token_hash = ?", sk.HashToken(token)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sk.ErrSessionInvalid
		}
		return nil, err
	}
	return &sk.Session{
		Token:     token,
		AccountID: model.AccountID,
		CreatedAt: model.CreatedAt,
		ExpiresAt: model.ExpiresAt,
	}, nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).
		Delete(&SessionModel{}, "token_hash = ?", sk.HashToken(token)).Error
}

func (s *SessionStore) DeleteAccountSessions(ctx context.Context, accountID string) error {
	return s.db.WithContext(ctx).
		Delete(&SessionModel{}, "account_id = ?", accountID).Error
}

// CleanupExpiredSessions removes expired sessions (for maintenance)
func (s *SessionStore) CleanupExpiredSessions(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Delete(&SessionModel{}, "expires_at < ?", time.Now()).Error
}

// =============================================================================
// SecretStore
// =============================================================================

// SecretStore implements sk.SecretStore using GORM
type SecretStore struct {
	db *gorm.DB
}

func NewSecretStore(db *gorm.DB) *SecretStore {
	return &SecretStore{db: db}
}

func (s *SecretStore) GetSecret(ctx context.Context, name string) (string, error) {
	var model SecretModel
	if err := s.db.WithContext(ctx).First(&model, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", sk.ErrSecretNotFound
		}
		return "", err
	}
	return model.Value, nil
}

func (s *SecretStore) SetSecret(ctx context.Context, name, value string) error {
	return s.db.WithContext(ctx).Save(&SecretModel{Name: name, Value: value}).Error
}
