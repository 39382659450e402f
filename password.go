package secretkeeper

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher performs one-way salted password hashing.  The zero value uses
// bcrypt's default cost (10).
type Hasher struct {
	// Cost is the bcrypt work factor.  Values outside bcrypt's valid
	// range fall back to the default.
	Cost int
}

func (h Hasher) cost() int {
	if h.Cost < bcrypt.MinCost || h.Cost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return h.Cost
}

// Hash derives a salted digest from plaintext.  Each call embeds a fresh
// random salt, so hashing the same plaintext twice yields different
// digests.  Failures wrap ErrHashing and must never be treated as a
// verification result.
func (h Hasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashing, err)
	}
	return string(digest), nil
}

// Verify recomputes the digest using the salt embedded in digest and
// compares in constant time.  Malformed digests verify as false rather
// than erroring.
func (h Hasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
