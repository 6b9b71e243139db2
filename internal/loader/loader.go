package loader

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"grimoire/internal/kb"
	"grimoire/internal/verb"
)

// Loader reads catalog files into the knowledge base and the verb catalog.
// Loading is idempotent: definitions upsert by class and loader-owned verbs
// upsert by name, so a hot reload wins over the previous load. A verb name
// the loader does not own (a built-in) is a load error.
type Loader struct {
	kb      *kb.KnowledgeBase
	catalog *verb.Catalog

	mu    sync.Mutex
	owned map[string]bool
}

// Result counts what one load pass touched
type Result struct {
	Files       int `json:"files"`
	Definitions int `json:"definitions"`
	Verbs       int `json:"verbs"`
}

func (r *Result) add(other *Result) {
	r.Files += other.Files
	r.Definitions += other.Definitions
	r.Verbs += other.Verbs
}

// pass tracks what one load pass has declared so far, so the same class or
// verb declared by two files in one pass is caught as a conflict.
type pass struct {
	classes map[string]string
	verbs   map[string]string
}

func newPass() *pass {
	return &pass{classes: make(map[string]string), verbs: make(map[string]string)}
}

// New creates a loader over the given knowledge base and verb catalog
func New(k *kb.KnowledgeBase, c *verb.Catalog) *Loader {
	return &Loader{kb: k, catalog: c, owned: make(map[string]bool)}
}

// LoadDir loads every *.def.yaml and then every *.verb.yaml directly under
// dir. Definition files land first so verb targets can assume their
// classes. Publishes a catalog_reloaded event when anything loaded.
func (l *Loader) LoadDir(dir string) (*Result, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", dir, err)
	}
	defFiles, err := filepath.Glob(filepath.Join(dir, "*.def.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	verbFiles, err := filepath.Glob(filepath.Join(dir, "*.verb.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	total := &Result{}
	p := newPass()
	for _, path := range append(defFiles, verbFiles...) {
		res, err := l.loadFileLocked(path, p)
		if err != nil {
			return nil, err
		}
		total.add(res)
	}

	if total.Files > 0 {
		log.Printf("Loader: loaded %d definitions and %d verbs from %d files",
			total.Definitions, total.Verbs, total.Files)
		l.kb.Bus().Publish(kb.Event{Type: kb.EventCatalogReloaded, Payload: *total})
	}
	return total, nil
}

// LoadFile loads a single catalog file
func (l *Loader) LoadFile(path string) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadFileLocked(path, newPass())
}

func (l *Loader) loadFileLocked(path string, p *pass) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var doc catalogYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	name := filepath.Base(path)
	res := &Result{Files: 1}

	for _, dy := range doc.Definitions {
		def, err := buildDefinition(dy, l.kb)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if prev, dup := p.classes[def.Class()]; dup {
			return nil, fmt.Errorf("%s: class %s already declared in %s", name, def.Class(), prev)
		}
		if err := l.kb.RegisterDefinition(def); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		p.classes[def.Class()] = name
		res.Definitions++
	}

	for _, vy := range doc.Verbs {
		def, err := buildVerb(vy)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if prev, dup := p.verbs[def.Name]; dup {
			return nil, fmt.Errorf("%s: verb %s already declared in %s", name, def.Name, prev)
		}
		if err := l.registerVerb(def); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		p.verbs[def.Name] = name
		res.Verbs++
	}

	return res, nil
}

// registerVerb upserts a loader-owned verb. A name the loader has never
// owned but the catalog already knows belongs to a built-in.
func (l *Loader) registerVerb(def *verb.Definition) error {
	if l.owned[def.Name] {
		return l.catalog.Upsert(def)
	}
	if _, exists := l.catalog.Get(def.Name); exists {
		return fmt.Errorf("verb %q collides with a built-in", def.Name)
	}
	if err := l.catalog.Upsert(def); err != nil {
		return err
	}
	l.owned[def.Name] = true
	return nil
}
