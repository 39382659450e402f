package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	sk "github.com/secretkeeper/secretkeeper"
)

// SecretStore stores named secret values (signing keys and the like) as
// single files with owner-only permissions.
type SecretStore struct {
	StoragePath string
}

func NewSecretStore(storagePath string) *SecretStore {
	return &SecretStore{StoragePath: storagePath}
}

func (s *SecretStore) secretPath(name string) string {
	safeName := filepath.Base(name)
	return filepath.Join(s.StoragePath, "secrets", safeName)
}

func (s *SecretStore) GetSecret(ctx context.Context, name string) (string, error) {
	data, err := os.ReadFile(s.secretPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", sk.ErrSecretNotFound
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *SecretStore) SetSecret(ctx context.Context, name, value string) error {
	path := s.secretPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	if err := writeAtomicFile(path, []byte(value)); err != nil {
		return err
	}
	return os.Chmod(path, 0600)
}
