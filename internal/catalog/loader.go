package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Loader loads and caches syllabus content from the filesystem. Modules are
// held in catalog order; lookups are safe for concurrent use.
type Loader struct {
	rootDir string
	modules []Module
	byID    map[string]int
	topics  map[string]Topic
	mu      sync.RWMutex
}

// NewLoader creates a new syllabus loader and loads all content.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir: rootDir,
		byID:    make(map[string]int),
		topics:  make(map[string]Topic),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading syllabus: %w", err)
	}
	if len(l.modules) == 0 {
		return nil, fmt.Errorf("no modules found in %s", rootDir)
	}

	slog.Info("syllabus loaded", "modules", len(l.modules), "topics", len(l.topics))
	return l, nil
}

// Modules returns all modules in catalog order.
func (l *Loader) Modules() []Module {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Module(nil), l.modules...)
}

// GetModule returns a module by ID.
func (l *Loader) GetModule(id string) (Module, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.byID[id]
	if !ok {
		return Module{}, false
	}
	return l.modules[i], true
}

// GetTopic returns a topic by code, searching across all modules.
func (l *Loader) GetTopic(code string) (Topic, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.topics[code]
	return t, ok
}

// ModuleForTopic returns the module containing the given topic code.
func (l *Loader) ModuleForTopic(code string) (Module, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, m := range l.modules {
		if m.HasTopic(code) {
			return m, true
		}
	}
	return Module{}, false
}

// NextModule returns the module after the given one in catalog order.
// The second return is false when the given module is the last (or unknown);
// the caller then routes to the hub.
func (l *Loader) NextModule(id string) (Module, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.byID[id]
	if !ok || i+1 >= len(l.modules) {
		return Module{}, false
	}
	return l.modules[i+1], true
}

func (l *Loader) loadAll() error {
	err := filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}
		return l.loadModule(path)
	})
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sort.SliceStable(l.modules, func(i, j int) bool {
		if l.modules[i].Order != l.modules[j].Order {
			return l.modules[i].Order < l.modules[j].Order
		}
		return l.modules[i].ID < l.modules[j].ID
	})
	for i, m := range l.modules {
		l.byID[m.ID] = i
	}
	return nil
}

func (l *Loader) loadModule(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var mod Module
	if err := yaml.Unmarshal(data, &mod); err != nil {
		slog.Warn("skipping invalid module YAML", "path", path, "error", err)
		return nil
	}

	if mod.ID == "" {
		return nil // Not a module file
	}
	if mod.Kind == "" {
		mod.Kind = KindStandard
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.byID[mod.ID]; dup {
		return fmt.Errorf("duplicate module id %q in %s", mod.ID, path)
	}
	l.byID[mod.ID] = -1 // index assigned after sorting
	for _, t := range mod.Topics {
		if _, dup := l.topics[t.Code]; dup {
			return fmt.Errorf("duplicate topic code %q in %s", t.Code, path)
		}
		l.topics[t.Code] = t
	}
	l.modules = append(l.modules, mod)
	return nil
}
