// Package keystore keeps named signing keys in a local directory.
// Default location: ~/.wascap/keys/
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/capiscio/wascap/pkg/keys"
)

// Common errors returned by this package.
var (
	ErrKeyNotFound = errors.New("key not found in key store")
	ErrKeyExists   = errors.New("key already exists in key store")
	ErrInvalidName = errors.New("invalid key name")
)

// Entry describes one stored key.
type Entry struct {
	Name  string    `json:"name"`
	KeyID string    `json:"kid"`
	Role  keys.Role `json:"role"`
}

// Store is the interface for a key store.
type Store interface {
	// Add stores a key pair under name.
	Add(name string, kp *keys.KeyPair) error

	// Get loads the key pair stored under name.
	Get(name string) (*keys.KeyPair, error)

	// List returns all entries sorted by name.
	List() ([]Entry, error)

	// Remove deletes the key stored under name.
	Remove(name string) error
}

// FileStore implements Store with one JWK file per key plus an index
// recording each key's role, which the JWK format cannot hold.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

var _ Store = (*FileStore)(nil)

// DefaultDir returns the default key directory.
func DefaultDir() string {
	if envPath := os.Getenv("WASCAP_KEYS_DIR"); envPath != "" {
		return envPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wascap/keys"
	}
	return filepath.Join(home, ".wascap", "keys")
}

// NewFileStore creates a file-based key store, creating dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store's directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) keyPath(name string) string {
	return filepath.Join(s.dir, name+".jwk")
}

func (s *FileStore) indexPath() string {
	return filepath.Join(s.dir, "index.json")
}

// Add stores kp under name. Existing keys are never overwritten.
func (s *FileStore) Add(name string, kp *keys.KeyPair) error {
	if err := checkName(name); err != nil {
		return err
	}
	if kp == nil {
		return fmt.Errorf("%w: no key pair", ErrInvalidName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return err
	}
	if _, ok := index[name]; ok {
		return fmt.Errorf("%w: %s", ErrKeyExists, name)
	}

	data, err := json.MarshalIndent(kp.JWK(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal key: %w", err)
	}
	if err := os.WriteFile(s.keyPath(name), data, 0600); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}

	index[name] = Entry{Name: name, KeyID: kp.PublicKey(), Role: kp.Role()}
	return s.saveIndex(index)
}

// Get loads the key pair stored under name.
func (s *FileStore) Get(name string) (*keys.KeyPair, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	entry, ok := index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}

	data, err := os.ReadFile(s.keyPath(name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}

	kp, err := keys.ParseJWK(entry.Role, data)
	if err != nil {
		return nil, err
	}
	if kp.PublicKey() != entry.KeyID {
		return nil, fmt.Errorf("key %s does not match its index entry %s", name, entry.KeyID)
	}
	return kp, nil
}

// List returns all entries sorted by name.
func (s *FileStore) List() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(index))
	for _, e := range index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Remove deletes the key stored under name.
func (s *FileStore) Remove(name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return err
	}
	if _, ok := index[name]; !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}

	if err := os.Remove(s.keyPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove key: %w", err)
	}
	delete(index, name)
	return s.saveIndex(index)
}

// loadIndex reads the index; a missing index is an empty store.
func (s *FileStore) loadIndex() (map[string]Entry, error) {
	data, err := os.ReadFile(s.indexPath())
	if os.IsNotExist(err) {
		return make(map[string]Entry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key index: %w", err)
	}

	index := make(map[string]Entry)
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse key index: %w", err)
	}
	return index, nil
}

func (s *FileStore) saveIndex(index map[string]Entry) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal key index: %w", err)
	}
	if err := os.WriteFile(s.indexPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write key index: %w", err)
	}
	return nil
}

// checkName rejects names that are not plain file names.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || name == "index" {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, c := range []byte(name) {
		switch c {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}
