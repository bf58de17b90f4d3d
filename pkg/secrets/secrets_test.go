package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()

	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() failed: %v", err)
	}
	m, err := NewManager(key)
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	return m, key
}

func TestEncryptDecrypt(t *testing.T) {
	m, _ := newTestManager(t)

	tok, err := m.Encrypt("s3cret")
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}
	if !IsEncrypted(tok) {
		t.Errorf("token %q should be recognised as encrypted", tok)
	}

	plain, err := m.Decrypt(tok)
	if err != nil {
		t.Fatalf("Decrypt() failed: %v", err)
	}
	if plain != "s3cret" {
		t.Errorf("Decrypt() = %q, want %q", plain, "s3cret")
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	m1, _ := newTestManager(t)
	m2, _ := newTestManager(t)

	tok, err := m1.Encrypt("value")
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}

	if _, err := m2.Decrypt(tok); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Decrypt() with wrong key error = %v, want ErrDecrypt", err)
	}
}

func TestNewManager_NoKeys(t *testing.T) {
	if _, err := NewManager(); !errors.Is(err, ErrNoKeys) {
		t.Errorf("NewManager() error = %v, want ErrNoKeys", err)
	}
}

func TestNewManager_BadKey(t *testing.T) {
	if _, err := NewManager("not-a-key"); err == nil {
		t.Error("Expected error for malformed key")
	}
}

func TestIsEncrypted(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"gAAAAABkZXJw", true},
		{"  gAAAAABkZXJw", true},
		{"plain", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsEncrypted(tt.value); got != tt.want {
			t.Errorf("IsEncrypted(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestFromRepoDir(t *testing.T) {
	dir := t.TempDir()
	m, key := newTestManager(t)
	old, oldKey := newTestManager(t)

	content := "[secret_keys]\nkey1=" + key + "\nkey2=" + oldKey + "\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600); err != nil {
		t.Fatalf("write secrets.conf: %v", err)
	}

	loaded, err := FromRepoDir(dir)
	if err != nil {
		t.Fatalf("FromRepoDir() failed: %v", err)
	}

	tok, _ := m.Encrypt("from primary")
	if plain, err := loaded.Decrypt(tok); err != nil || plain != "from primary" {
		t.Errorf("Decrypt(primary) = %q, %v", plain, err)
	}

	rotated, _ := old.Encrypt("from rotated")
	if plain, err := loaded.Decrypt(rotated); err != nil || plain != "from rotated" {
		t.Errorf("Decrypt(rotated) = %q, %v", plain, err)
	}
}

func TestFromRepoDir_Missing(t *testing.T) {
	if _, err := FromRepoDir(t.TempDir()); err == nil {
		t.Error("Expected error for missing secrets.conf")
	}
}

func TestFromFile_NoPrimaryKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("[secret_keys]\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := FromFile(path); !errors.Is(err, ErrNoKeys) {
		t.Errorf("FromFile() error = %v, want ErrNoKeys", err)
	}
}
