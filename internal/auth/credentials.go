package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/1ureka/matchlink/internal/state"
)

// CredentialStore persists the identity used for auto-login.
type CredentialStore interface {
	Load() (state.Credentials, bool, error)
	Save(state.Credentials) error
	Clear() error
}

// FileCredentials stores credentials as a small YAML document.
type FileCredentials struct {
	Path string
}

var _ CredentialStore = FileCredentials{}

// Load returns ok=false when no credentials have been saved.
func (f FileCredentials) Load() (state.Credentials, bool, error) {
	var c state.Credentials
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return c, false, nil
	}
	if err != nil {
		return c, false, fmt.Errorf("read credentials: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, false, fmt.Errorf("parse credentials %s: %w", f.Path, err)
	}
	return c, c.UserID != "", nil
}

// Save writes c, creating the parent directory if needed.
func (f FileCredentials) Save(c state.Credentials) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	if err := os.WriteFile(f.Path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Clear removes the file. A missing file is not an error.
func (f FileCredentials) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

// MemoryCredentials keeps credentials for the lifetime of the process.
type MemoryCredentials struct {
	mu    sync.Mutex
	creds state.Credentials
	ok    bool
}

var _ CredentialStore = (*MemoryCredentials)(nil)

func (m *MemoryCredentials) Load() (state.Credentials, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds, m.ok, nil
}

func (m *MemoryCredentials) Save(c state.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds, m.ok = c, true
	return nil
}

func (m *MemoryCredentials) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds, m.ok = state.Credentials{}, false
	return nil
}
