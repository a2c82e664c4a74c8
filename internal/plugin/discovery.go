package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Entry is one activated handler.
type Entry struct {
	Implementation string
	Description    string
	Path           string
	Kinds          []string
	Handler        Handler
}

// Registry maps action kinds to handlers. It is read-only once Discover returns.
type Registry struct {
	byKind  map[string]*Entry
	entries []*Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKind: make(map[string]*Entry)}
}

// Handler returns the handler serving kind.
func (r *Registry) Handler(kind string) (Handler, bool) {
	e, ok := r.byKind[kind]
	if !ok {
		return nil, false
	}
	return e.Handler, true
}

// Kinds returns every served kind in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.byKind))
	for k := range r.byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Handlers returns the activated handlers in implementation-name order.
func (r *Registry) Handlers() []*Entry {
	out := make([]*Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of activated handlers.
func (r *Registry) Len() int {
	return len(r.entries)
}

// add registers e and claims its kinds. Kinds already claimed are returned
// and left with their current owner.
func (r *Registry) add(e *Entry) []string {
	var lost []string
	claimed := make([]string, 0, len(e.Kinds))
	for _, kind := range e.Kinds {
		if _, taken := r.byKind[kind]; taken {
			lost = append(lost, kind)
			continue
		}
		r.byKind[kind] = e
		claimed = append(claimed, kind)
	}
	e.Kinds = claimed
	r.entries = append(r.entries, e)
	return lost
}

// Discover scans pluginsDir for manifest.yaml files and activates the named
// implementations from catalog. Implementations are considered in ascending
// name order; the first to claim a kind keeps it.
//
// A missing pluginsDir yields an empty registry. Invalid manifests, unknown
// implementations and failing factories are logged and skipped.
func Discover(pluginsDir string, catalog Catalog, logger func(level, msg string, args ...any)) (*Registry, error) {
	if logger == nil {
		logger = func(level, msg string, args ...any) {}
	}

	registry := NewRegistry()

	info, err := os.Stat(pluginsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger("warn", "plugin directory does not exist, no handlers loaded", "path", pluginsDir)
			return registry, nil
		}
		return nil, fmt.Errorf("failed to stat plugin dir %s: %w", pluginsDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("plugin dir is not a directory: %s", pluginsDir)
	}

	manifests := make(map[string]Manifest)
	err = filepath.WalkDir(pluginsDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != manifestFilename {
			return nil
		}

		pluginPath := filepath.Dir(path)
		m, err := loadManifest(pluginPath)
		if err != nil {
			logger("warn", "failed to load plugin manifest", "path", pluginPath, "error", err.Error())
			return nil
		}
		if !m.IsEnabled() {
			logger("info", "plugin disabled", "implementation", m.Implementation, "path", pluginPath)
			return nil
		}
		if existing, dup := manifests[m.Implementation]; dup {
			logger("warn", "duplicate manifest ignored (keeping first discovered)",
				"implementation", m.Implementation,
				"ignored_path", pluginPath,
				"kept_path", existing.Path,
			)
			return nil
		}
		manifests[m.Implementation] = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan plugin dir %s: %w", pluginsDir, err)
	}

	names := make([]string, 0, len(manifests))
	for name := range manifests {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := manifests[name]
		factory, ok := catalog[name]
		if !ok {
			logger("warn", "unknown handler implementation", "implementation", name, "path", m.Path)
			continue
		}

		h, err := factory()
		if err != nil {
			logger("warn", "handler factory failed", "implementation", name, "error", err.Error())
			continue
		}
		if h == nil {
			logger("warn", "handler factory returned nil", "implementation", name)
			continue
		}

		kinds := append([]string(nil), h.SupportedActions()...)
		e := &Entry{
			Implementation: name,
			Description:    m.Description,
			Path:           m.Path,
			Kinds:          kinds,
			Handler:        h,
		}
		for _, kind := range registry.add(e) {
			owner := registry.byKind[kind].Implementation
			logger("warn", "duplicate action kind ignored (keeping first handler)",
				"kind", kind,
				"ignored", name,
				"kept", owner,
			)
		}
		logger("info", "loaded handler", "implementation", name, "kinds", e.Kinds)
	}

	return registry, nil
}
