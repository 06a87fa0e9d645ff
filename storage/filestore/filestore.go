// Package filestore persists storage entries as a single JSON document on
// disk, optionally sealing every value with NaCl secretbox.
package filestore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-storefront/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	documentVersion = 1
	nonceSize       = 24
)

type document struct {
	Version   int               `json:"version"`
	Encrypted bool              `json:"encrypted"`
	Values    map[string]string `json:"values"`
}

// Store is a storage.Store backed by one file. Writes go to a temp file that
// is renamed over the original.
type Store struct {
	mu   sync.Mutex
	path string
	key  *[32]byte
}

var _ storage.Store = (*Store)(nil)

type Option func(*Store)

// WithEncryptionKey seals values at rest.
func WithEncryptionKey(key *[32]byte) Option {
	return func(s *Store) {
		s.key = key
	}
}

// New creates the parent directory with 0700 permissions if needed.
func New(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("filestore: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	s := &Store{path: path}
	for _, opt := range opts {
		opt(s)
	}

	log.Debug().Str("path", path).Bool("encrypted", s.key != nil).Msg("file store initialized")
	return s, nil
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := doc.Values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return s.open(v)
}

func (s *Store) Set(_ context.Context, entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	for k, v := range entries {
		sealed, err := s.seal(v)
		if err != nil {
			return err
		}
		doc.Values[k] = sealed
	}
	return s.save(doc)
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := doc.Values[k]; ok {
			delete(doc.Values, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save(doc)
}

func (s *Store) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &document{Version: documentVersion, Encrypted: s.key != nil, Values: map[string]string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse storage file: %w", err)
	}
	if doc.Encrypted != (s.key != nil) {
		return nil, fmt.Errorf("storage file encryption mismatch: file encrypted=%t", doc.Encrypted)
	}
	if doc.Values == nil {
		doc.Values = map[string]string{}
	}
	return &doc, nil
}

func (s *Store) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal storage file: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write storage file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save storage file: %w", err)
	}
	return nil
}

func (s *Store) seal(value string) (string, error) {
	if s.key == nil {
		return value, nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(value), &nonce, s.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Store) open(value string) (string, error) {
	if s.key == nil {
		return value, nil
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(raw) < nonceSize {
		return "", fmt.Errorf("corrupt storage value")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, s.key)
	if !ok {
		return "", fmt.Errorf("failed to decrypt storage value")
	}
	return string(plain), nil
}
