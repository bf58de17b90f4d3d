// Package serverconf loads a server's on-disk configuration repository.
//
// Configuration files are INI documents. Values may be stored in two
// protected forms that are resolved on load:
//
//   - Fernet tokens (gAAAAA...), decrypted with the crypto manager.
//   - References of the form zato+secret://<section>.<key>, looked up in
//     secrets.conf and then decrypted if needed.
package serverconf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

const (
	// ServerFile is the main server configuration file.
	ServerFile = "server.conf"

	// SecretsFile holds keys and referenced secrets.
	SecretsFile = "secrets.conf"

	// SecretURLPrefix marks a value stored in secrets.conf.
	SecretURLPrefix = "zato+secret://"
)

var (
	// ErrMissingValue is returned when a required option is empty.
	ErrMissingValue = errors.New("missing configuration value")

	// ErrSecretNotFound is returned when a secret reference cannot be resolved.
	ErrSecretNotFound = errors.New("secret not found")
)

// Decrypter is the part of the crypto manager the loader needs.
type Decrypter interface {
	IsEncrypted(value string) bool
	Decrypt(token string) (string, error)
}

// Options controls how protected values are resolved.
type Options struct {
	Crypto  Decrypter
	Secrets *File
}

// File is a loaded configuration file with protected values resolved.
type File struct {
	Path string
	ini  *ini.File
}

// RepoDir returns the configuration repository of a server, scheduler or
// other component directory.
func RepoDir(componentDir string) string {
	return filepath.Join(componentDir, "config", "repo")
}

// Load reads <repoDir>/<name> and resolves every protected value.
func Load(repoDir, name string, opts Options) (*File, error) {
	path := filepath.Join(repoDir, name)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}

	raw, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	f := &File{Path: path, ini: raw}
	if err := f.resolve(opts); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) resolve(opts Options) error {
	for _, sec := range f.ini.Sections() {
		for _, key := range sec.Keys() {
			value := key.String()
			resolved, err := resolveValue(value, opts)
			if err != nil {
				return fmt.Errorf("%s: %s.%s: %w", filepath.Base(f.Path), sec.Name(), key.Name(), err)
			}
			if resolved != value {
				key.SetValue(resolved)
			}
		}
	}
	return nil
}

func resolveValue(value string, opts Options) (string, error) {
	if ref, ok := strings.CutPrefix(value, SecretURLPrefix); ok {
		if opts.Secrets == nil {
			return "", fmt.Errorf("%w: %s (no secrets file)", ErrSecretNotFound, ref)
		}
		section, name, found := strings.Cut(ref, ".")
		if !found || !opts.Secrets.Has(section, name) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, ref)
		}
		value = opts.Secrets.Value(section, name)
	}

	if opts.Crypto != nil && opts.Crypto.IsEncrypted(value) {
		plain, err := opts.Crypto.Decrypt(value)
		if err != nil {
			return "", err
		}
		value = plain
	}

	return value, nil
}

// Value returns an option's value, or "" if absent.
func (f *File) Value(section, key string) string {
	sec, err := f.ini.GetSection(section)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(sec.Key(key).String())
}

// Has reports whether the option exists.
func (f *File) Has(section, key string) bool {
	sec, err := f.ini.GetSection(section)
	if err != nil {
		return false
	}
	return sec.HasKey(key)
}

// Int returns an option as an int, or def when absent or empty.
func (f *File) Int(section, key string, def int) (int, error) {
	if f.Value(section, key) == "" {
		return def, nil
	}
	v, err := f.ini.Section(section).Key(key).Int()
	if err != nil {
		return 0, fmt.Errorf("%s.%s: %w", section, key, err)
	}
	return v, nil
}
