package securestore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/onnwee/streamcast/crypto"
)

func hostStore(t *testing.T, host string) *Store {
	t.Helper()
	d := crypto.NewKeyDeriverWithStrategies(crypto.HostIDStrategy{
		Name:   "test",
		Lookup: func() ([]byte, error) { return []byte(host), nil },
	})
	enc, err := d.NewHostBoundEncryptor()
	if err != nil {
		t.Fatalf("NewHostBoundEncryptor() error = %v", err)
	}
	return New(enc)
}

const record = "DISCORD_TOKEN=abc\nOBS_PASSWORD=pw\nMODERATORS=1:Alice\n"

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := hostStore(t, "host-a")
	path := filepath.Join(t.TempDir(), ".env")

	if err := s.SaveFile(path, record); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(raw, []byte("DISCORD_TOKEN")) {
		t.Error("credentials file contains plaintext")
	}
	if got := s.LoadFile(path); got != record {
		t.Errorf("LoadFile() = %q, want %q", got, record)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the credentials file", len(entries))
	}
}

func TestEncrypt_Nondeterministic(t *testing.T) {
	s := hostStore(t, "host-a")
	a, err := s.Encrypt([]byte(record))
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Encrypt([]byte(record))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Error("Encrypt() is deterministic; expected random nonce")
	}
	for _, c := range [][]byte{a, b} {
		p, err := s.Decrypt(c)
		if err != nil || string(p) != record {
			t.Errorf("Decrypt() = %q, %v; want record", p, err)
		}
	}
}

func TestDecrypt_WrongHost(t *testing.T) {
	c, err := hostStore(t, "host-a").Encrypt([]byte(record))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := hostStore(t, "host-b").Decrypt(c); !errors.Is(err, ErrDecryption) {
		t.Errorf("Decrypt() error = %v, want ErrDecryption", err)
	}
}

func TestLoadFile_Fallbacks(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		if got := hostStore(t, "h").LoadFile(filepath.Join(dir, "missing")); got != "" {
			t.Errorf("LoadFile() = %q, want empty", got)
		}
	})

	t.Run("legacy plaintext", func(t *testing.T) {
		path := filepath.Join(dir, "plain.env")
		if err := os.WriteFile(path, []byte(record), 0o600); err != nil {
			t.Fatal(err)
		}
		if got := hostStore(t, "h").LoadFile(path); got != record {
			t.Errorf("LoadFile() = %q, want plaintext record", got)
		}
	})

	t.Run("encrypted on another host", func(t *testing.T) {
		path := filepath.Join(dir, "other.env")
		if err := hostStore(t, "host-a").SaveFile(path, record); err != nil {
			t.Fatal(err)
		}
		if got := hostStore(t, "host-b").LoadFile(path); got != "" {
			t.Errorf("LoadFile() = %q, want empty for foreign binary blob", got)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.env")
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			t.Fatal(err)
		}
		if got := hostStore(t, "h").LoadFile(path); got != "" {
			t.Errorf("LoadFile() = %q, want empty", got)
		}
	})
}

func TestSaveFile_Overwrites(t *testing.T) {
	s := hostStore(t, "h")
	path := filepath.Join(t.TempDir(), ".env")
	if err := s.SaveFile(path, "DISCORD_TOKEN=one\n"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveFile(path, "DISCORD_TOKEN=two\n"); err != nil {
		t.Fatal(err)
	}
	if got := s.LoadFile(path); !strings.Contains(got, "two") {
		t.Errorf("LoadFile() = %q, want latest content", got)
	}
}

func TestSaveFile_MissingDirectory(t *testing.T) {
	s := hostStore(t, "h")
	path := filepath.Join(t.TempDir(), "no", "such", "dir", ".env")
	if err := s.SaveFile(path, record); err == nil {
		t.Error("SaveFile() into missing directory should fail")
	}
}

func TestSaveFile_ConcurrentWriters(t *testing.T) {
	s := hostStore(t, "h")
	path := filepath.Join(t.TempDir(), ".env")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.SaveFile(path, record); err != nil {
				t.Errorf("SaveFile() error = %v", err)
			}
		}()
	}
	wg.Wait()
	if got := s.LoadFile(path); got != record {
		t.Errorf("LoadFile() after concurrent writes = %q", got)
	}
}

func TestReset(t *testing.T) {
	s := hostStore(t, "h")
	path := filepath.Join(t.TempDir(), ".env")
	if err := s.SaveFile(path, record); err != nil {
		t.Fatal(err)
	}
	if err := s.Reset(path); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still exists after Reset: %v", err)
	}
	if err := s.Reset(path); err != nil {
		t.Errorf("Reset() of missing file error = %v", err)
	}
}
