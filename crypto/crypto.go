// Package crypto provides the at-rest encryption used for the credentials file.
// It implements AES-256-GCM authenticated encryption and derives the 256-bit
// key from the identity of the host machine (see KeyDeriver), so a credentials
// file copied to another host fails authentication instead of decrypting.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// KeySize is the length in bytes of an AES-256 key.
const KeySize = 32

// ErrAuthentication is returned by Decrypt when the authentication tag does not
// verify: wrong key (e.g. the file was moved to another host) or corrupted data.
var ErrAuthentication = errors.New("decryption failed: authentication or integrity check failed")

// Encryptor defines the interface for encrypting and decrypting data.
// Implementations must provide authenticated encryption (AEAD) to ensure
// both confidentiality and integrity of the ciphertext.
type Encryptor interface {
	// Encrypt transforms plaintext into ciphertext with authentication tag.
	Encrypt(plaintext []byte) ([]byte, error)

	// Decrypt verifies and transforms ciphertext back to plaintext.
	// Returns error if authentication fails or ciphertext is corrupted.
	Decrypt(ciphertext []byte) ([]byte, error)
}

// AESEncryptor implements Encryptor using AES-256-GCM.
type AESEncryptor struct {
	key []byte // 32 bytes for AES-256
}

// NewAESEncryptor creates an encryptor from a raw 32-byte key, typically the
// output of KeyDeriver.DeriveKey.
func NewAESEncryptor(key []byte) (*AESEncryptor, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("encryption key is empty")
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid encryption key: must be %d bytes (256 bits), got %d bytes", KeySize, len(key))
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &AESEncryptor{key: k}, nil
}

// NewAESEncryptorFromBase64 creates an encryptor from a base64-encoded 32-byte key.
// Used when an operator pins the key explicitly instead of deriving it from the host.
func NewAESEncryptorFromBase64(base64Key string) (*AESEncryptor, error) {
	if base64Key == "" {
		return nil, fmt.Errorf("encryption key is empty")
	}
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: base64 decode failed: %w", err)
	}
	return NewAESEncryptor(key)
}

func (e *AESEncryptor) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt encrypts plaintext using AES-256-GCM and returns
// nonce || ciphertext || auth_tag.
//
// The 12-byte nonce is random per call, so encrypting the same plaintext twice
// yields different output.
func (e *AESEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("plaintext is empty")
	}
	gcm, err := e.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts and authenticates ciphertext produced by Encrypt.
// Any failure to authenticate, including truncated input, returns ErrAuthentication.
func (e *AESEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("ciphertext is empty: %w", ErrAuthentication)
	}
	gcm, err := e.aead()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize+gcm.Overhead() {
		return nil, fmt.Errorf("ciphertext too short (%d bytes): %w", len(ciphertext), ErrAuthentication)
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		// Don't expose internal error details that might leak information
		return nil, ErrAuthentication
	}
	return plaintext, nil
}
