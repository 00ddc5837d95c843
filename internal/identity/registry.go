package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"selene/internal/logging"
)

// Registry holds every loaded version of every identity document.
// Versions are append-only: a reload of a changed file registers a new
// version rather than mutating the old one, so in-flight turns and queued
// critique jobs keep the document they started with.
type Registry struct {
	mu       sync.RWMutex
	versions map[Ref]*Document
	latest   map[string]int

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		versions: make(map[Ref]*Document),
		latest:   make(map[string]int),
	}
}

// Register adds a document version. Registering an already-known version
// is a no-op; versions are immutable once seen.
func (r *Registry) Register(doc *Document) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref := doc.Ref()
	if _, exists := r.versions[ref]; exists {
		logging.IdentityDebug("document %s v%d already registered", ref.ID, ref.Version)
		return
	}
	r.versions[ref] = doc
	if doc.Version > r.latest[doc.ID] {
		r.latest[doc.ID] = doc.Version
	}
	logging.Identity("registered document %s v%d", ref.ID, ref.Version)
}

// Get returns the document at an exact version.
func (r *Registry) Get(ref Ref) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.versions[ref]
	if !ok {
		return nil, fmt.Errorf("identity document %s v%d not found", ref.ID, ref.Version)
	}
	return doc, nil
}

// Latest returns the newest version of a document.
func (r *Registry) Latest(id string) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.latest[id]
	if !ok {
		return nil, fmt.Errorf("identity document %s not found", id)
	}
	return r.versions[Ref{ID: id, Version: v}], nil
}

// LoadDir loads every .yaml document in a directory.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read identity dir: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		doc, err := LoadDocument(filepath.Join(dir, entry.Name()))
		if err != nil {
			logging.Get(logging.CategoryIdentity).Warn("skipping %s: %v", entry.Name(), err)
			continue
		}
		r.Register(doc)
		loaded++
	}
	logging.Identity("loaded %d identity documents from %s", loaded, dir)
	return nil
}

// Watch reloads changed documents in dir until Close is called. A changed
// file is registered as a new version; parse failures are logged and the
// previous version stays in force.
func (r *Registry) Watch(dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	r.mu.Lock()
	r.watcher = watcher
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if !strings.HasSuffix(event.Name, ".yaml") {
					continue
				}
				doc, err := LoadDocument(event.Name)
				if err != nil {
					logging.Get(logging.CategoryIdentity).Warn("reload of %s failed: %v", event.Name, err)
					continue
				}
				r.bumpAndRegister(doc)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Get(logging.CategoryIdentity).Warn("watcher error: %v", err)
			case <-done:
				return
			}
		}
	}()

	logging.Identity("watching %s for identity document changes", dir)
	return nil
}

// bumpAndRegister registers doc, assigning the next version number if the
// file's declared version is already registered.
func (r *Registry) bumpAndRegister(doc *Document) {
	r.mu.RLock()
	_, exists := r.versions[doc.Ref()]
	latest := r.latest[doc.ID]
	r.mu.RUnlock()

	if exists {
		doc.Version = latest + 1
	}
	r.Register(doc)
}

// Close stops the watcher.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done != nil {
		close(r.done)
		r.done = nil
	}
	if r.watcher != nil {
		err := r.watcher.Close()
		r.watcher = nil
		return err
	}
	return nil
}
