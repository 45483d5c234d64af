// Package keystore manages the archive password: a single 256-bit secret
// generated once, persisted to a small key file, and retrieved by the
// consuming system. There is no rotation.
package keystore

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const keyEntry = "ENCRYPTION_KEY="

var (
	// ErrKeyNotFound is returned by Get when no key has been created yet.
	ErrKeyNotFound = errors.New("encryption key not found")
	// ErrKeyExists is returned by Create when a key is already on file.
	ErrKeyExists = errors.New("encryption key already exists")
)

// Keystore reads and writes the secret in a dotenv-style key file. The file
// is created with owner-only permissions and holds a single
// ENCRYPTION_KEY=<base64> entry.
type Keystore struct {
	path string
}

func New(path string) *Keystore {
	return &Keystore{path: path}
}

// Get returns the current secret, or ErrKeyNotFound when none exists.
func (k *Keystore) Get() (string, error) {
	b, err := os.ReadFile(k.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("read %s: %w", k.path, err)
	}
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, keyEntry); ok && v != "" {
			return v, nil
		}
	}
	return "", ErrKeyNotFound
}

// Create generates and persists a new secret, failing with ErrKeyExists if
// one is already present.
func (k *Keystore) Create() (string, error) {
	if _, err := k.Get(); err == nil {
		return "", ErrKeyExists
	} else if !errors.Is(err, ErrKeyNotFound) {
		return "", err
	}

	key, err := generateKey()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(k.path), 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", filepath.Dir(k.path), err)
	}
	content := "# datacarwash encryption key\n" +
		"# Never commit this file or share it over insecure channels.\n" +
		keyEntry + key + "\n"
	if err := os.WriteFile(k.path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", k.path, err)
	}
	return key, nil
}

// GetOrCreate returns the existing secret or creates one. The bool reports
// whether a new key was generated.
func (k *Keystore) GetOrCreate() (string, bool, error) {
	key, err := k.Get()
	if err == nil {
		return key, false, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return "", false, err
	}
	key, err = k.Create()
	if err != nil {
		return "", false, err
	}
	return key, true, nil
}

// generateKey produces 32 random bytes encoded as base64.
func generateKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
