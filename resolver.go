package secretkeeper

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Resolver maps canonical external identities onto accounts, creating
// accounts on first sight.  The store's uniqueness constraint on
// (provider, subjectId) is what makes the create path race-free; the
// resolver never does an unguarded read-then-write.
type Resolver struct {
	Accounts AccountStore
}

// FindOrCreateByExternalIdentity returns the id of the account owning the
// (provider, subjectId) pair, creating the account if the pair has never
// been seen.  Concurrent calls for the same new pair yield exactly one
// account: the loser of the create race retries the lookup once and
// returns the winner's id.
func (rs *Resolver) FindOrCreateByExternalIdentity(ctx context.Context, provider, subjectID string, profileHint map[string]any) (string, error) {
	account, err := rs.Accounts.FindByExternalIdentity(ctx, provider, subjectID)
	if err == nil {
		return account.ID, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := time.Now()
	fresh := &Account{
		ID: GenerateAccountID(),
		ExternalIdentities: []ExternalIdentity{
			{Provider: provider, SubjectID: subjectID, CreatedAt: now},
		},
		Profile:   profileHint,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = rs.Accounts.CreateAccount(ctx, fresh)
	if err == nil {
		return fresh.ID, nil
	}
	if !errors.Is(err, ErrDuplicateExternalIdentity) {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Lost the create race; the winner's account must exist now.
	account, err = rs.Accounts.FindByExternalIdentity(ctx, provider, subjectID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return account.ID, nil
}

// LinkExternalIdentity attaches a new external identity to an
// already-authenticated account.  Linking a pair the account already holds
// is a no-op; a pair held by a different account fails with
// ErrIdentityAlreadyLinked.
func (rs *Resolver) LinkExternalIdentity(ctx context.Context, accountID, provider, subjectID string) error {
	owner, err := rs.Accounts.FindByExternalIdentity(ctx, provider, subjectID)
	if err == nil {
		if owner.ID == accountID {
			return nil
		}
		return ErrIdentityAlreadyLinked
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	err = rs.Accounts.AddExternalIdentity(ctx, accountID, provider, subjectID)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDuplicateExternalIdentity) {
		// Raced with another link or create.  Re-check the owner.
		owner, lookupErr := rs.Accounts.FindByExternalIdentity(ctx, provider, subjectID)
		if lookupErr == nil && owner.ID == accountID {
			return nil
		}
		return ErrIdentityAlreadyLinked
	}
	if errors.Is(err, ErrAccountNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
