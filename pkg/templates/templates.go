// Package templates loads workflow plan templates. Built-in templates are
// embedded in the binary; a template directory can override or extend them,
// and overrides are hot-reloaded on file change.
package templates

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/openjuicer/openjuicer/pkg/plan"
)

//go:embed defaults/*.yaml
var defaultsFS embed.FS

// Template is the declarative seed of a plan for one workflow.
type Template struct {
	// Description summarizes what the workflow is for.
	Description string `yaml:"description"`

	// DefaultModality seeds the plan modality when the intent implies none.
	DefaultModality string `yaml:"default_modality"`

	// DefaultTextKeys and DefaultImageKey seed the dataset field bindings.
	DefaultTextKeys []string `yaml:"default_text_keys"`
	DefaultImageKey string   `yaml:"default_image_key"`

	// DefaultExportPath seeds export_path when the caller supplies none.
	DefaultExportPath string `yaml:"default_export_path"`

	// Operators is the ordered pipeline the template prescribes.
	Operators []plan.OperatorStep `yaml:"operators"`

	// RiskNotes and Estimation are copied onto generated plans verbatim.
	RiskNotes  []string       `yaml:"risk_notes"`
	Estimation map[string]any `yaml:"estimation"`
}

// Library resolves workflow names to templates. Directory entries shadow
// embedded defaults of the same name.
type Library struct {
	dir string

	mu        sync.RWMutex
	overrides map[string]*Template
}

// NewLibrary builds a library backed by the embedded defaults plus the
// optional override directory. An empty dir means embedded-only.
func NewLibrary(dir string) (*Library, error) {
	l := &Library{dir: dir, overrides: map[string]*Template{}}
	if dir != "" {
		if err := l.Reload(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Get returns the template for the named workflow.
func (l *Library) Get(workflow plan.Workflow) (*Template, error) {
	name := string(workflow)

	l.mu.RLock()
	tpl, ok := l.overrides[name]
	l.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	data, err := defaultsFS.ReadFile("defaults/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("no template for workflow %q", name)
	}
	return parseTemplate(name, data)
}

// Names lists every available workflow template, embedded and overridden,
// sorted lexically.
func (l *Library) Names() []string {
	seen := map[string]struct{}{}

	entries, _ := defaultsFS.ReadDir("defaults")
	for _, e := range entries {
		seen[strings.TrimSuffix(e.Name(), ".yaml")] = struct{}{}
	}

	l.mu.RLock()
	for name := range l.overrides {
		seen[name] = struct{}{}
	}
	l.mu.RUnlock()

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reload re-reads every *.yaml in the override directory. Unparseable files
// are skipped with a warning so one bad edit cannot take down the library.
func (l *Library) Reload() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("failed to read template directory: %w", err)
	}

	overrides := map[string]*Template{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".yaml")
		data, err := os.ReadFile(filepath.Join(l.dir, e.Name()))
		if err != nil {
			log.Warn().Err(err).Str("template", name).Msg("Failed to read template override")
			continue
		}
		tpl, err := parseTemplate(name, data)
		if err != nil {
			log.Warn().Err(err).Str("template", name).Msg("Skipping unparseable template override")
			continue
		}
		overrides[name] = tpl
	}

	l.mu.Lock()
	l.overrides = overrides
	l.mu.Unlock()
	return nil
}

// Watch hot-reloads the override directory until ctx is cancelled. It is a
// no-op for embedded-only libraries.
func (l *Library) Watch(ctx context.Context) error {
	if l.dir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create template watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch template directory: %w", err)
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
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
					continue
				}
				if err := l.Reload(); err != nil {
					log.Warn().Err(err).Msg("Template reload failed")
				} else {
					log.Debug().Str("path", event.Name).Msg("Templates reloaded")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("Template watcher error")
			}
		}
	}()
	return nil
}

func parseTemplate(name string, data []byte) (*Template, error) {
	var tpl Template
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("failed to parse template %q: %w", name, err)
	}
	if len(tpl.Operators) == 0 {
		return nil, fmt.Errorf("template %q has no operators", name)
	}
	return &tpl, nil
}
