// Package registry provides the operator-name registry capability and the
// operator-name resolver. The registry is an injected, swappable read-only
// lookup so tests can substitute a fixed in-memory set without touching
// global state.
package registry

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Registry is the read-only operator catalog. An empty Names result means
// the catalog is currently unavailable; validation treats that as fail-open
// unless strict mode is on.
type Registry interface {
	// Names returns the canonical operator names, sorted.
	Names() []string

	// Refresh reloads the catalog from its backing source.
	Refresh() error
}

// Static is a fixed in-memory registry, mainly for tests and embedding.
type Static struct {
	names []string
}

// NewStatic builds a registry over a fixed name set.
func NewStatic(names ...string) *Static {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return &Static{names: sorted}
}

// Names returns the fixed name set.
func (s *Static) Names() []string { return s.names }

// Refresh is a no-op for a static registry.
func (s *Static) Refresh() error { return nil }

// catalogDoc is the on-disk operator catalog shape.
type catalogDoc struct {
	Operators []string `yaml:"operators"`
}

// File is a registry backed by a YAML operator catalog on disk. A missing
// or unreadable catalog yields an empty name set rather than an error, so
// offline environments degrade to fail-open validation.
type File struct {
	path string

	mu    sync.RWMutex
	names []string
}

// NewFile creates a file-backed registry and performs an initial load.
func NewFile(path string) *File {
	r := &File{path: path}
	if err := r.Refresh(); err != nil {
		log.Debug().Err(err).Str("path", path).Msg("Operator catalog unavailable")
	}
	return r
}

// Names returns the last loaded name set.
func (r *File) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names
}

// Refresh reloads the catalog file.
func (r *File) Refresh() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		r.mu.Lock()
		r.names = nil
		r.mu.Unlock()
		return fmt.Errorf("failed to read operator catalog: %w", err)
	}

	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode operator catalog: %w", err)
	}

	names := make([]string, 0, len(doc.Operators))
	for _, name := range doc.Operators {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	r.mu.Lock()
	r.names = names
	r.mu.Unlock()
	return nil
}

// Watch refreshes the catalog whenever the backing file changes, until the
// context is cancelled.
func (r *File) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalog watcher: %w", err)
	}
	if err := watcher.Add(r.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch operator catalog: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := r.Refresh(); err != nil {
					log.Warn().Err(err).Msg("Operator catalog refresh failed")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("Operator catalog watcher error")
			}
		}
	}()
	return nil
}
