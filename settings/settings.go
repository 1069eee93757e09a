// Package settings provides persistent storage for the translation
// service credential.
//
// Tokens are stored in the XDG data directory:
//
//	$XDG_DATA_HOME/loksync/auth.json  (default: ~/.local/share/loksync/)
//
// The file is a JSON object keyed by service host, with 0600
// permissions.
//
// Lookup order for the token:
//  1. --token flag (highest priority)
//  2. LOKSYNC_TOKEN environment variable
//  3. This store
//
// The token value itself is never logged; use MaskToken for display.
package settings

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

const (
	dataDirName = "loksync"
	fileName    = "auth.json"
)

// TokenEnvVar is the environment variable consulted before the store.
const TokenEnvVar = "LOKSYNC_TOKEN"

// Entry holds the stored credential for one service host.
type Entry struct {
	Token string `json:"token"`
}

// Store holds all service credentials, keyed by service host.
type Store map[string]*Entry

// dataDir returns the XDG data directory for loksync.
// Respects $XDG_DATA_HOME (falls back to ~/.local/share).
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the auth.json path for display purposes.
func FilePath() string {
	p, err := filePath()
	if err != nil {
		return ""
	}
	return p
}

// HostKey reduces a service base URL to the host used as the store key.
// Falls back to the raw string when it does not parse as a URL.
func HostKey(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return baseURL
	}
	return u.Host
}

// Load reads the store from disk. Returns an empty store if the file
// doesn't exist or is invalid.
func Load() Store {
	path, err := filePath()
	if err != nil {
		return make(Store)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil {
		return make(Store)
	}
	if store == nil {
		return make(Store)
	}
	return store
}

// Save writes the store to disk with 0600 permissions.
func Save(store Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return nil
}

// GetToken retrieves the stored token for a service base URL.
// Returns empty string if not found.
func GetToken(baseURL string) string {
	store := Load()
	entry := store[HostKey(baseURL)]
	if entry == nil {
		return ""
	}
	return entry.Token
}

// SetToken stores a token for a service base URL (upsert).
func SetToken(baseURL, token string) error {
	store := Load()
	store[HostKey(baseURL)] = &Entry{Token: token}
	return Save(store)
}

// Remove deletes the credential for a service base URL.
func Remove(baseURL string) error {
	store := Load()
	key := HostKey(baseURL)
	if _, ok := store[key]; !ok {
		return nil
	}
	delete(store, key)
	return Save(store)
}

// RemoveAll removes all stored credentials.
func RemoveAll() error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing auth file: %w", err)
	}
	return nil
}

// ResolveToken resolves the service token with the documented priority:
// flag value, then LOKSYNC_TOKEN, then the store. Returns empty string
// when no credential is configured (the soft-skip case).
func ResolveToken(baseURL, flagToken string) string {
	if flagToken != "" {
		return flagToken
	}
	if env := os.Getenv(TokenEnvVar); env != "" {
		return env
	}
	return GetToken(baseURL)
}

// MaskToken returns a masked version of a token for display.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
