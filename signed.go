package secretkeeper

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSigner issues stateless session tokens: HS256-signed JWTs encoding
// the account id and expiry.  Verify checks the signature before trusting
// the encoded subject, so a forged-but-well-formed token fails signature
// verification rather than any secondary check.
type TokenSigner struct {
	// SecretKey signs and verifies tokens.  Required.
	SecretKey string

	// Issuer is the "iss" claim.
	Issuer string

	// TTL bounds every signed token.  Zero means DefaultSessionTTL.
	TTL time.Duration

	// Now is the clock.  Tests override it.
	Now func() time.Time
}

func (s *TokenSigner) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultSessionTTL
	}
	return s.TTL
}

func (s *TokenSigner) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Sign produces a token for an account id.
func (s *TokenSigner) Sign(accountID string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": accountID,
		"iss": s.Issuer,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl()).Unix(),
	})
	signed, err := token.SignedString([]byte(s.SecretKey))
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the account id the
// token was signed for.
func (s *TokenSigner) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString,
		func(token *jwt.Token) (any, error) {
			return []byte(s.SecretKey), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrSessionExpired
		}
		return "", ErrSessionInvalid
	}
	if !token.Valid {
		return "", ErrSessionInvalid
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", ErrSessionInvalid
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrSessionInvalid
	}
	return sub, nil
}
