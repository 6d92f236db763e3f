package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

// keyringUser is the fixed account name under the keyring service.
const keyringUser = "coordinator-token"

// TokenStore persists the coordinator bearer token. The OS keyring is
// preferred; a mode-0600 file is the fallback for headless hosts without
// a keyring daemon.
type TokenStore struct {
	service string
	file    string
}

// NewTokenStore creates a store using the given keyring service name and
// fallback file path.
func NewTokenStore(service, file string) *TokenStore {
	return &TokenStore{service: service, file: file}
}

// Load returns the stored token, or "" with no error when none is stored.
func (s *TokenStore) Load() (string, error) {
	// keyring first; any failure (not found, no daemon) falls through
	tok, err := keyring.Get(s.service, keyringUser)
	if err == nil {
		return tok, nil
	}

	data, err := os.ReadFile(s.file)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save stores the token in the keyring, falling back to the file.
func (s *TokenStore) Save(token string) error {
	if err := keyring.Set(s.service, keyringUser, token); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.file), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(s.file, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// Clear removes the token from both backends.
func (s *TokenStore) Clear() error {
	_ = keyring.Delete(s.service, keyringUser)
	if err := os.Remove(s.file); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
