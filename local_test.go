package secretkeeper_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	sk "github.com/secretkeeper/secretkeeper"
	"github.com/secretkeeper/secretkeeper/stores/fs"
)

// setupStores creates temp-dir backed stores for a test.
func setupStores(t *testing.T) (*fs.AccountStore, *fs.SessionStore) {
	t.Helper()
	tmpDir := t.TempDir()
	return fs.NewAccountStore(tmpDir), fs.NewSessionStore(tmpDir)
}

func newLocalAuth(accounts sk.AccountStore) *sk.LocalAuth {
	return &sk.LocalAuth{
		Accounts: accounts,
		Hasher:   sk.Hasher{Cost: 4}, // MinCost keeps the test fast
	}
}

func TestRegisterAndVerify(t *testing.T) {
	accounts, _ := setupStores(t)
	local := newLocalAuth(accounts)
	ctx := context.Background()

	accountID, err := local.Register(ctx, "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if accountID == "" {
		t.Fatal("expected non-empty account id")
	}

	gotID, err := local.VerifyLocal(ctx, "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("VerifyLocal failed: %v", err)
	}
	if gotID != accountID {
		t.Errorf("expected account %q, got %q", accountID, gotID)
	}

	account, err := accounts.GetAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account.LocalCredential == nil {
		t.Fatal("expected a local credential on the account")
	}
	if strings.Contains(account.LocalCredential.PasswordHash, "hunter2") {
		t.Error("stored hash must not contain the plaintext password")
	}
}

func TestVerifyFailures(t *testing.T) {
	accounts, _ := setupStores(t)
	local := newLocalAuth(accounts)
	ctx := context.Background()

	if _, err := local.Register(ctx, "alice@example.com", "hunter2"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tests := []struct {
		name       string
		identifier string
		password   string
	}{
		{"wrong password", "alice@example.com", "not-hunter2"},
		{"unknown identifier", "bob@example.com", "hunter2"},
		{"empty password", "alice@example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := local.VerifyLocal(ctx, tt.identifier, tt.password)
			if !errors.Is(err, sk.ErrInvalidCredentials) {
				t.Errorf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestRegisterDuplicateIdentifier(t *testing.T) {
	accounts, _ := setupStores(t)
	local := newLocalAuth(accounts)
	ctx := context.Background()

	if _, err := local.Register(ctx, "alice@example.com", "hunter2"); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	_, err := local.Register(ctx, "alice@example.com", "different-password")
	if !errors.Is(err, sk.ErrDuplicateIdentifier) {
		t.Errorf("expected ErrDuplicateIdentifier, got %v", err)
	}
}

func TestIdentifierCaseInsensitive(t *testing.T) {
	accounts, _ := setupStores(t)
	local := newLocalAuth(accounts)
	ctx := context.Background()

	accountID, err := local.Register(ctx, "Alice@Example.COM", "hunter2")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	gotID, err := local.VerifyLocal(ctx, "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("VerifyLocal with lowercased identifier failed: %v", err)
	}
	if gotID != accountID {
		t.Errorf("expected account %q, got %q", accountID, gotID)
	}

	if _, err := local.Register(ctx, "ALICE@example.com", "other"); !errors.Is(err, sk.ErrDuplicateIdentifier) {
		t.Errorf("expected case-folded duplicate to be rejected, got %v", err)
	}
}

func TestVerifyExternalOnlyAccount(t *testing.T) {
	// An account created from a provider identity has no local credential;
	// a password attempt against its email must fail like any other bad login.
	accounts, _ := setupStores(t)
	local := newLocalAuth(accounts)
	resolver := &sk.Resolver{Accounts: accounts}
	ctx := context.Background()

	_, err := resolver.FindOrCreateByExternalIdentity(ctx, "google", "g1", map[string]any{"email": "carol@example.com"})
	if err != nil {
		t.Fatalf("FindOrCreateByExternalIdentity failed: %v", err)
	}

	_, err = local.VerifyLocal(ctx, "carol@example.com", "any-password")
	if !errors.Is(err, sk.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginHandler(t *testing.T) {
	accounts, _ := setupStores(t)
	local := newLocalAuth(accounts)
	ctx := context.Background()

	accountID, err := local.Register(ctx, "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	var handledProvider, handledAccount string
	local.HandleAccount = func(provider string, id string, w http.ResponseWriter, r *http.Request) {
		handledProvider = provider
		handledAccount = id
		w.WriteHeader(http.StatusOK)
	}

	form := url.Values{"username": {"alice@example.com"}, "password": {"hunter2"}}
	req := httptest.NewRequest("POST", "/login/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	local.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if handledProvider != "local" || handledAccount != accountID {
		t.Errorf("expected HandleAccount(local, %q), got (%q, %q)", accountID, handledProvider, handledAccount)
	}
}

func TestLoginHandlerBadPassword(t *testing.T) {
	accounts, _ := setupStores(t)
	local := newLocalAuth(accounts)

	if _, err := local.Register(context.Background(), "alice@example.com", "hunter2"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	form := url.Values{"username": {"alice@example.com"}, "password": {"wrong"}}
	req := httptest.NewRequest("POST", "/login/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	local.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "wrong") || strings.Contains(w.Body.String(), "hunter2") {
		t.Error("response must not echo passwords")
	}
}
