package crypto

import (
	"crypto/sha256"
	"log/slog"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySalt is the fixed PBKDF2 salt. Changing it invalidates every stored file.
	KeySalt = "streamcast_secure_v1_salt"
	// KeyIterations is the PBKDF2 iteration count.
	KeyIterations = 100000
	// FallbackHostID is used when no host identity strategy succeeds.
	FallbackHostID = "streamcast-static-salt-fallback-unique-id"
)

// HostIDStrategy returns a stable identifier for the current machine or an error
// when the identifier is unavailable on this host.
type HostIDStrategy struct {
	Name   string
	Lookup func() ([]byte, error)
}

// KeyDeriver derives the credentials key from the host identity. It is built once
// at startup and handed to the secure store; nothing else holds the key.
type KeyDeriver struct {
	strategies []HostIDStrategy
	logger     *slog.Logger
}

// NewKeyDeriver returns a deriver using the platform's default strategies.
func NewKeyDeriver() *KeyDeriver {
	return NewKeyDeriverWithStrategies(DefaultHostIDStrategies()...)
}

// NewKeyDeriverWithStrategies returns a deriver that tries strategies in order.
// The static fallback is always appended after them.
func NewKeyDeriverWithStrategies(strategies ...HostIDStrategy) *KeyDeriver {
	return &KeyDeriver{
		strategies: strategies,
		logger:     slog.Default().With(slog.String("component", "key_deriver")),
	}
}

// HostIdentity returns the first identity any strategy yields, plus the name of
// the strategy that produced it. It never fails.
func (d *KeyDeriver) HostIdentity() ([]byte, string) {
	for _, s := range d.strategies {
		id, err := s.Lookup()
		if err != nil {
			d.logger.Debug("host identity strategy unavailable", slog.String("strategy", s.Name), slog.Any("err", err))
			continue
		}
		if len(id) == 0 {
			continue
		}
		return id, s.Name
	}
	d.logger.Warn("no host identity available; credentials key is not bound to this machine",
		slog.String("strategy", "static_fallback"))
	return []byte(FallbackHostID), "static_fallback"
}

// DeriveKey returns PBKDF2-HMAC-SHA256(host identity, KeySalt, KeyIterations), 32 bytes.
func (d *KeyDeriver) DeriveKey() []byte {
	id, source := d.HostIdentity()
	d.logger.Debug("deriving credentials key", slog.String("strategy", source))
	return pbkdf2.Key(id, []byte(KeySalt), KeyIterations, KeySize, sha256.New)
}

// NewHostBoundEncryptor derives the host key and wraps it in an AESEncryptor.
func (d *KeyDeriver) NewHostBoundEncryptor() (*AESEncryptor, error) {
	return NewAESEncryptor(d.DeriveKey())
}
