// Package securestore reads and writes the encrypted credentials file.
//
// The file holds a single opaque AES-256-GCM blob. Reads fall back to treating
// the bytes as plaintext when authentication fails, so first-run and legacy
// unencrypted files still load; anything unreadable is reported as "no
// credentials" rather than an error. Writes replace the whole file.
package securestore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"github.com/onnwee/streamcast/crypto"
)

// ErrDecryption means the stored blob does not authenticate under the current
// key: it was written on another host, is corrupted, or is plaintext.
var ErrDecryption = errors.New("stored credentials cannot be decrypted with this host's key")

// Store is safe for concurrent use; file writes are serialized.
type Store struct {
	enc     crypto.Encryptor
	writeMu sync.Mutex
	logger  *slog.Logger
}

// New returns a store backed by enc. The encryptor is the only holder of the key.
func New(enc crypto.Encryptor) *Store {
	return &Store{
		enc:    enc,
		logger: slog.Default().With(slog.String("component", "secure_store")),
	}
}

// Encrypt seals plaintext with the host key.
func (s *Store) Encrypt(plaintext []byte) ([]byte, error) {
	return s.enc.Encrypt(plaintext)
}

// Decrypt opens a blob produced by Encrypt. Authentication failures are
// reported as ErrDecryption.
func (s *Store) Decrypt(ciphertext []byte) ([]byte, error) {
	plaintext, err := s.enc.Decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return plaintext, nil
}

// LoadFile returns the plaintext content at path. A missing file, an
// undecryptable non-text blob or a read error all yield "".
func (s *Store) LoadFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("credentials file unreadable", slog.String("path", path), slog.Any("err", err))
		}
		return ""
	}
	if len(data) == 0 {
		return ""
	}

	plaintext, err := s.Decrypt(data)
	if err == nil {
		return string(plaintext)
	}

	// Legacy or hand-written plaintext file.
	if utf8.Valid(data) {
		s.logger.Info("credentials file is not encrypted for this host; reading as plaintext",
			slog.String("path", path))
		return string(data)
	}
	s.logger.Warn("credentials file cannot be decrypted; treating as absent", slog.String("path", path), slog.Any("err", err))
	return ""
}

// SaveFile encrypts plaintext and replaces the file at path.
//
// The blob is written to a temporary file in the same directory, synced and
// renamed over path, so plaintext never reaches disk and a crash leaves either
// the previous or the new file.
func (s *Store) SaveFile(path, plaintext string) error {
	blob, err := s.Encrypt([]byte(plaintext))
	if err != nil {
		return fmt.Errorf("encrypt credentials: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		if err := os.Remove(tmpName); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to remove temp file", slog.String("path", tmpName), slog.Any("err", err))
		}
	}

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace credentials file: %w", err)
	}
	s.logger.Debug("credentials file written", slog.String("path", path), slog.Int("bytes", len(blob)))
	return nil
}

// Reset deletes the credentials file, destroying the token, password and
// roster at once. A missing file is not an error.
func (s *Store) Reset(path string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete credentials file: %w", err)
	}
	s.logger.Info("credentials file deleted", slog.String("path", path))
	return nil
}
