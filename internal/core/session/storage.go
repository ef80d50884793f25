package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/securecookie"
)

// Storage is the persistent key-value store the session record lives in,
// so a session survives process restarts. Implementations should treat a
// missing key as an absence, not an error.
type Storage interface {
	// Get returns the value for key. ok=false if not stored.
	Get(key string) (value []byte, ok bool, err error)

	// Set stores value for key, overwriting any previous value.
	Set(key string, value []byte) error

	// Delete removes the given keys; absence is not an error.
	Delete(keys ...string) error
}

// FileStore persists values as one file per key under a state directory.
// Values are encoded and HMAC-authenticated with securecookie so a record
// tampered with on disk fails to load instead of impersonating a session.
type FileStore struct {
	dir   string
	codec *securecookie.SecureCookie
}

// Ensure FileStore implements Storage.
var _ Storage = (*FileStore)(nil)

// NewFileStore creates a file-backed store rooted at dir. The secret keys
// the HMAC; it must be stable across restarts for records to remain
// readable.
func NewFileStore(dir string, secret []byte) (*FileStore, error) {
	if len(secret) == 0 {
		return nil, errors.New("file store secret must not be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	codec := securecookie.New(secret, nil)
	codec.MaxAge(0) // expiry is the session manager's job, not the codec's
	return &FileStore{dir: dir, codec: codec}, nil
}

// path maps a storage key to a file path, replacing separators so keys
// can't escape the state directory.
func (s *FileStore) path(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(s.dir, safe)
}

func (s *FileStore) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %q: %w", key, err)
	}

	var value []byte
	if err := s.codec.Decode(key, string(data), &value); err != nil {
		// Unreadable or tampered record; treat as absent.
		return nil, false, nil
	}
	return value, true, nil
}

func (s *FileStore) Set(key string, value []byte) error {
	sealed, err := s.codec.Encode(key, value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	if err := os.WriteFile(s.path(key), []byte(sealed), 0o600); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

func (s *FileStore) Delete(keys ...string) error {
	for _, key := range keys {
		if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete %q: %w", key, err)
		}
	}
	return nil
}
