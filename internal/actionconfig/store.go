package actionconfig

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/gpiogw/internal/log"
)

// ErrNotFound is returned by Get for a name that has no loaded document.
var ErrNotFound = errors.New("config document not found")

// Document is a schema-less configuration blob. Only handlers interpret it.
type Document map[string]any

// Decode converts the document into a typed struct via its JSON form.
func (d Document) Decode(v any) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

type entry struct {
	doc    Document
	path   string
	digest string
}

// Store indexes the configuration documents found in one directory.
type Store struct {
	dir string

	mu      sync.RWMutex
	entries map[string]entry
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, entries: make(map[string]entry)}
}

// Start (re)loads every *.json, *.yaml and *.yml document in the directory.
// A document that fails to parse is skipped with a warning. Two files with the
// same base name resolve to the first in lexical order.
func (s *Store) Start() error {
	logger := log.WithComponent("actionconfig")

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read config dir %s: %w", s.dir, err)
	}

	loaded := make(map[string]entry)
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(de.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}

		name := strings.TrimSuffix(de.Name(), filepath.Ext(de.Name()))
		path := filepath.Join(s.dir, de.Name())
		if _, dup := loaded[name]; dup {
			logger.Warn("duplicate config name, keeping first", "name", name, "path", path)
			continue
		}

		e, err := loadFile(path, ext)
		if err != nil {
			logger.Warn("skipping config document", "path", path, "error", err)
			continue
		}
		loaded[name] = e
		logger.Info("added configuration", "name", name, "digest", e.digest)
	}

	s.mu.Lock()
	s.entries = loaded
	s.mu.Unlock()
	return nil
}

func loadFile(path, ext string) (entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return entry{}, err
	}

	doc := Document{}
	if ext == ".json" {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return entry{}, fmt.Errorf("parse: %w", err)
	}

	sum := blake3.Sum256(data)
	return entry{doc: doc, path: path, digest: hex.EncodeToString(sum[:])}, nil
}

// Stop clears the index.
func (s *Store) Stop() {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
}

func (s *Store) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[name]
	return ok
}

// Get returns the named document. Callers must not mutate it.
func (s *Store) Get(name string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return e.doc, nil
}

// Names returns the loaded document names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Digest returns the BLAKE3 hex digest of the document's source file.
func (s *Store) Digest(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	return e.digest, ok
}
