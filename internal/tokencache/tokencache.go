// Package tokencache persists a Mattermost-style bearer token to a small
// encrypted sidecar file between runs, so back-to-back scheduled
// archiving runs can skip a redundant login. It is additive: a missing,
// unreadable, or undecryptable cache file is never an error, only a
// cache miss.
package tokencache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const fileName = ".token"

// Path returns the sidecar file path for an output directory.
func Path(outputDir string) string {
	return filepath.Join(outputDir, fileName)
}

// deriveKey builds the AES key from the configured passphrase. An empty
// passphrase falls back to a fixed low-entropy key — acceptable since the
// sidecar file's confidentiality depends on filesystem permissions
// either way, and the cache is disabled entirely when TokenCache.Enabled
// is false.
func deriveKey(passphrase string) ([]byte, error) {
	if passphrase == "" {
		passphrase = "mmarchive-token-cache"
	}

	return deriveAESKey(passphrase)
}

// Load reads and decrypts the cached token. It returns ("", nil) — not
// an error — whenever the cache is absent, unreadable, or fails to
// decrypt, since a cache miss simply means the caller must log in.
func Load(outputDir, passphrase string) (string, error) {
	key, err := deriveKey(passphrase)
	if err != nil {
		return "", err
	}

	raw, err := os.ReadFile(Path(outputDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}

		return "", nil
	}

	token, err := decrypt(string(raw), key)
	if err != nil {
		return "", nil
	}

	return token, nil
}

// Save encrypts and writes token to the sidecar file, creating
// outputDir if necessary. The file is written with 0600 permissions
// since it carries a live credential.
func Save(outputDir, passphrase, token string) error {
	key, err := deriveKey(passphrase)
	if err != nil {
		return err
	}

	encrypted, err := encrypt(token, key)
	if err != nil {
		return fmt.Errorf("tokencache: encrypt: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("tokencache: mkdir %s: %w", outputDir, err)
	}

	if err := os.WriteFile(Path(outputDir), []byte(encrypted), 0o600); err != nil {
		return fmt.Errorf("tokencache: write %s: %w", Path(outputDir), err)
	}

	return nil
}

// Clear removes the sidecar file, used when a cached token is rejected
// (401) so the next run doesn't retry the same stale value.
func Clear(outputDir string) error {
	err := os.Remove(Path(outputDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("tokencache: remove %s: %w", Path(outputDir), err)
	}

	return nil
}
