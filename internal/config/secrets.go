package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSecretsDir is where mounted secrets are looked up when SECRETS_DIR is unset.
const DefaultSecretsDir = "/run/secrets"

// AllowedSecretDirs bounds FILE= references in addition to the store's own directory.
var AllowedSecretDirs = []string{
	"/etc/reportqa/secrets",
	"/run/secrets",
	"/var/run/secrets",
}

// SecretStore resolves credentials from the environment, then from one file per key in Dir.
type SecretStore struct {
	Dir string
}

// NewSecretStore returns a store reading from dir.
func NewSecretStore(dir string) *SecretStore {
	return &SecretStore{Dir: dir}
}

// Lookup returns the first non-empty value among keys, checking every key in
// the environment before any key in the secret directory. A value of the form
// ENV=NAME, FILE=/path or ${NAME} is resolved once more. An absent credential
// is not an error here; Validate decides whether it is required.
func (s *SecretStore) Lookup(keys ...string) (string, error) {
	for _, key := range keys {
		val, err := s.use(key, strings.TrimSpace(os.Getenv(key)))
		if err != nil || val != "" {
			return val, err
		}
	}
	for _, key := range keys {
		raw, err := s.readFile(key)
		if err != nil {
			return "", err
		}
		val, err := s.use(key, raw)
		if err != nil || val != "" {
			return val, err
		}
	}
	return "", nil
}

func (s *SecretStore) use(key, raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	val, err := s.resolve(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return val, nil
}

func (s *SecretStore) readFile(key string) (string, error) {
	if s.Dir == "" {
		return "", nil
	}
	for _, name := range []string{key, strings.ToLower(key)} {
		data, err := os.ReadFile(filepath.Join(s.Dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("reading secret %s: %w", name, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", nil
}

func (s *SecretStore) resolve(value string) (string, error) {
	switch {
	case strings.HasPrefix(value, "ENV="):
		name := strings.TrimPrefix(value, "ENV=")
		v := os.Getenv(name)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", name)
		}
		return v, nil
	case strings.HasPrefix(value, "FILE="):
		path := strings.TrimSpace(strings.TrimPrefix(value, "FILE="))
		if err := s.validatePath(path); err != nil {
			return "", fmt.Errorf("secret path validation failed: %w", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return strings.TrimSpace(string(data)), nil
	case strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}"):
		name := value[2 : len(value)-1]
		v := os.Getenv(name)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", name)
		}
		return v, nil
	}
	return value, nil
}

func (s *SecretStore) validatePath(path string) error {
	if strings.Contains(path, "..") {
		return fmt.Errorf("path traversal not allowed: %s", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	allowed := AllowedSecretDirs
	if s.Dir != "" {
		if dir, err := filepath.Abs(s.Dir); err == nil {
			allowed = append([]string{dir}, allowed...)
		}
	}
	for _, dir := range allowed {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("path %s not in allowed directories", abs)
}
