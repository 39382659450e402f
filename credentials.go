package secretkeeper

import "regexp"

// Credentials carries the parsed fields of a signup or login form.
type Credentials struct {
	Identifier string // email used for local login
	Password   string
}

// SignupPolicy defines what is required for signup.
type SignupPolicy struct {
	// MinPasswordLength defaults to 8.
	MinPasswordLength int

	// RequireEmailIdentifier rejects identifiers that do not look like
	// an email address.
	RequireEmailIdentifier bool
}

// DefaultSignupPolicy returns the policy used when none is configured.
func DefaultSignupPolicy() SignupPolicy {
	return SignupPolicy{
		MinPasswordLength:      8,
		RequireEmailIdentifier: true,
	}
}

func (p SignupPolicy) GetMinPasswordLength() int {
	if p.MinPasswordLength <= 0 {
		return 8
	}
	return p.MinPasswordLength
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Validate checks credentials against the policy.  Returns nil when the
// credentials are acceptable.
func (p SignupPolicy) Validate(creds *Credentials) *AuthError {
	if creds.Identifier == "" {
		return NewAuthError(ErrCodeMissingField, "Email is required", "username")
	}
	if creds.Password == "" {
		return NewAuthError(ErrCodeMissingField, "Password is required", "password")
	}
	if p.RequireEmailIdentifier && !emailRegex.MatchString(creds.Identifier) {
		return NewAuthError(ErrCodeInvalidEmail, "Invalid email format", "username")
	}
	if minLen := p.GetMinPasswordLength(); len(creds.Password) < minLen {
		return NewAuthError(ErrCodeWeakPassword, "Password too short", "password")
	}
	return nil
}
