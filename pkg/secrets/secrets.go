// Package secrets implements the crypto manager used to decrypt values stored
// in a server's configuration repository.
//
// Secrets are Fernet tokens. The keys live in secrets.conf, section
// [secret_keys]; key1 is the primary key, any further keys are tried in turn
// when decrypting so that rotated values remain readable.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fernet/fernet-go"
	"gopkg.in/ini.v1"
)

const (
	// FileName is the name of the secrets file inside a repo directory.
	FileName = "secrets.conf"

	// Section holds the Fernet keys.
	Section = "secret_keys"

	// PrimaryKey is the key used for encryption.
	PrimaryKey = "key1"

	// TokenPrefix starts every Fernet token (version byte 0x80, base64url).
	TokenPrefix = "gAAAAA"
)

var (
	// ErrNoKeys is returned when no usable key is configured.
	ErrNoKeys = errors.New("no secret keys configured")

	// ErrDecrypt is returned when a token cannot be verified by any key.
	ErrDecrypt = errors.New("cannot decrypt secret")
)

// Manager encrypts and decrypts configuration secrets.
type Manager struct {
	keys []*fernet.Key
}

// NewManager builds a manager from encoded Fernet keys, primary key first.
func NewManager(encodedKeys ...string) (*Manager, error) {
	if len(encodedKeys) == 0 {
		return nil, ErrNoKeys
	}

	keys, err := fernet.DecodeKeys(encodedKeys...)
	if err != nil {
		return nil, fmt.Errorf("decode secret keys: %w", err)
	}

	return &Manager{keys: keys}, nil
}

// FromRepoDir loads the keys from <repoDir>/secrets.conf.
func FromRepoDir(repoDir string) (*Manager, error) {
	return FromFile(filepath.Join(repoDir, FileName))
}

// FromFile loads the keys from a secrets.conf file.
func FromFile(path string) (*Manager, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("secrets file: %w", err)
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	sec, err := f.GetSection(Section)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNoKeys)
	}

	primary := strings.TrimSpace(sec.Key(PrimaryKey).String())
	if primary == "" {
		return nil, fmt.Errorf("%s: %s missing: %w", path, PrimaryKey, ErrNoKeys)
	}

	var rest []string
	for _, name := range sec.KeyStrings() {
		if name == PrimaryKey {
			continue
		}
		if v := strings.TrimSpace(sec.Key(name).String()); v != "" {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)

	encoded := []string{primary}
	for _, name := range rest {
		encoded = append(encoded, strings.TrimSpace(sec.Key(name).String()))
	}

	return NewManager(encoded...)
}

// GenerateKey returns a new encoded Fernet key.
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return k.Encode(), nil
}

// Encrypt returns a Fernet token for plain, signed with the primary key.
func (m *Manager) Encrypt(plain string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plain), m.keys[0])
	if err != nil {
		return "", fmt.Errorf("encrypt secret: %w", err)
	}
	return string(tok), nil
}

// Decrypt verifies and decrypts a token. Token age is not checked.
func (m *Manager) Decrypt(token string) (string, error) {
	msg := fernet.VerifyAndDecrypt([]byte(strings.TrimSpace(token)), -1, m.keys)
	if msg == nil {
		return "", ErrDecrypt
	}
	return string(msg), nil
}

// IsEncrypted reports whether value looks like a Fernet token.
func (m *Manager) IsEncrypted(value string) bool {
	return IsEncrypted(value)
}

// IsEncrypted reports whether value looks like a Fernet token.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), TokenPrefix)
}
