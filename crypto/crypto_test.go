package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate random key: %v", err)
	}
	return key
}

func TestNewAESEncryptor(t *testing.T) {
	tests := []struct {
		name      string
		key       []byte
		errorMsg  string
		wantError bool
	}{
		{name: "empty key", key: nil, wantError: true, errorMsg: "encryption key is empty"},
		{name: "key too short", key: make([]byte, 16), wantError: true, errorMsg: "must be 32 bytes"},
		{name: "key too long", key: make([]byte, 64), wantError: true, errorMsg: "must be 32 bytes"},
		{name: "valid 32-byte key", key: make([]byte, 32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewAESEncryptor(tt.key)
			if tt.wantError {
				if err == nil {
					t.Errorf("NewAESEncryptor() expected error but got nil")
				} else if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("NewAESEncryptor() error = %v, want error containing %q", err, tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewAESEncryptor() unexpected error = %v", err)
			}
			if enc == nil {
				t.Errorf("NewAESEncryptor() returned nil encryptor")
			}
		})
	}
}

func TestNewAESEncryptorFromBase64(t *testing.T) {
	if _, err := NewAESEncryptorFromBase64(""); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := NewAESEncryptorFromBase64("not-valid-base64!@#$"); err == nil || !strings.Contains(err.Error(), "base64 decode failed") {
		t.Errorf("expected base64 error, got %v", err)
	}
	if _, err := NewAESEncryptorFromBase64(base64.StdEncoding.EncodeToString(make([]byte, 32))); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	enc, err := NewAESEncryptor(randomKey(t))
	if err != nil {
		t.Fatalf("NewAESEncryptor() error = %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{name: "short string", plaintext: "hello"},
		{name: "credential record", plaintext: "DISCORD_TOKEN=abc\nOBS_PASSWORD=\nMODERATORS=1:Alice,2:Bob\n"},
		{name: "long string", plaintext: strings.Repeat("a", 1000)},
		{name: "unicode", plaintext: "Hello 世界 🌍"},
		{name: "special characters", plaintext: "!@#$%^&*()_+-={}[]|\\:;\"'<>,.?/~`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := enc.Encrypt([]byte(tt.plaintext))
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if bytes.Equal(ciphertext, []byte(tt.plaintext)) {
				t.Errorf("Encrypt() returned plaintext unchanged")
			}

			decrypted, err := enc.Decrypt(ciphertext)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if string(decrypted) != tt.plaintext {
				t.Errorf("Decrypt() = %q, want %q", string(decrypted), tt.plaintext)
			}
		})
	}
}

// Encrypting the same plaintext twice must produce different ciphertexts
// (random nonce) that both still decrypt.
func TestEncryptDeterminism(t *testing.T) {
	enc, err := NewAESEncryptor(randomKey(t))
	if err != nil {
		t.Fatalf("NewAESEncryptor() error = %v", err)
	}

	plaintext := []byte("test plaintext")
	c1, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	c2, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if bytes.Equal(c1, c2) {
		t.Errorf("Encrypt() produced identical ciphertexts for same plaintext")
	}

	for i, c := range [][]byte{c1, c2} {
		got, err := enc.Decrypt(c)
		if err != nil {
			t.Fatalf("Decrypt(%d) error = %v", i, err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Errorf("Decrypt(%d) = %q, want %q", i, got, plaintext)
		}
	}
}

func TestDecrypt_InvalidCiphertext(t *testing.T) {
	enc, err := NewAESEncryptor(randomKey(t))
	if err != nil {
		t.Fatalf("NewAESEncryptor() error = %v", err)
	}

	tests := []struct {
		name       string
		errorMsg   string
		ciphertext []byte
	}{
		{name: "empty ciphertext", ciphertext: []byte{}, errorMsg: "ciphertext is empty"},
		{name: "ciphertext too short", ciphertext: []byte{1, 2, 3}, errorMsg: "ciphertext too short"},
		{name: "corrupted ciphertext", ciphertext: make([]byte, 50), errorMsg: "authentication or integrity check failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Decrypt(tt.ciphertext)
			if err == nil {
				t.Fatalf("Decrypt() expected error but got nil")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Decrypt() error = %v, want error containing %q", err, tt.errorMsg)
			}
			if !errors.Is(err, ErrAuthentication) {
				t.Errorf("Decrypt() error = %v, want ErrAuthentication", err)
			}
		})
	}
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	enc, err := NewAESEncryptor(randomKey(t))
	if err != nil {
		t.Fatalf("NewAESEncryptor() error = %v", err)
	}

	ciphertext, err := enc.Encrypt([]byte("sensitive data"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	ciphertext[20] ^= 0x01

	if _, err := enc.Decrypt(ciphertext); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Decrypt() error = %v, want ErrAuthentication", err)
	}

	// Truncation is detected as well.
	ciphertext, _ = enc.Encrypt([]byte("sensitive data"))
	if _, err := enc.Decrypt(ciphertext[:len(ciphertext)-4]); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Decrypt(truncated) error = %v, want ErrAuthentication", err)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	enc1, err := NewAESEncryptor(randomKey(t))
	if err != nil {
		t.Fatalf("NewAESEncryptor(1) error = %v", err)
	}
	enc2, err := NewAESEncryptor(randomKey(t))
	if err != nil {
		t.Fatalf("NewAESEncryptor(2) error = %v", err)
	}

	ciphertext, err := enc1.Encrypt([]byte("secret message"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if _, err := enc2.Decrypt(ciphertext); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Decrypt() with wrong key error = %v, want ErrAuthentication", err)
	}
}

func TestEncrypt_EmptyPlaintext(t *testing.T) {
	enc, err := NewAESEncryptor(randomKey(t))
	if err != nil {
		t.Fatalf("NewAESEncryptor() error = %v", err)
	}
	_, err = enc.Encrypt([]byte{})
	if err == nil || !strings.Contains(err.Error(), "plaintext is empty") {
		t.Errorf("Encrypt() error = %v, want error about empty plaintext", err)
	}
}

func TestEncryptionOverhead(t *testing.T) {
	enc, err := NewAESEncryptor(randomKey(t))
	if err != nil {
		t.Fatalf("NewAESEncryptor() error = %v", err)
	}
	plaintext := []byte("test")
	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// GCM overhead: 12 bytes (nonce) + 16 bytes (auth tag) = 28 bytes
	if got := len(ciphertext) - len(plaintext); got != 28 {
		t.Errorf("Encryption overhead = %d bytes, want 28 bytes", got)
	}
}
