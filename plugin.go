package domwire

import (
	"fmt"
	"sync"

	"golang.org/x/net/html"
)

// Plugin declares one auto-initialized widget type: a selector its
// markup answers to and the callback that wires a matching node up.
type Plugin struct {
	// Name identifies the plugin; registering two plugins under one
	// name is a programming error.
	Name string
	// Selector picks the nodes this plugin owns.
	Selector string
	// Match optionally narrows the selector; a nil Match accepts every
	// selected node.
	Match func(*html.Node) bool
	// Init wires one node. It runs exactly once per node: immediately
	// for markup present at registration, and via the watcher for
	// markup inserted later.
	Init func(*html.Node)
}

// Registry is the thin glue between declared plugins and the Watcher.
type Registry struct {
	watcher *Watcher

	mu    sync.Mutex
	names map[string]struct{}
}

// NewRegistry creates a plugin registry feeding the given watcher.
func NewRegistry(w *Watcher) *Registry {
	return &Registry{watcher: w, names: make(map[string]struct{})}
}

// Add registers plugins. Each plugin's Init runs for every currently
// matching node, then the watcher takes over for future insertions.
// Panics on a duplicate plugin name.
func (r *Registry) Add(plugins ...Plugin) {
	for _, p := range plugins {
		r.register(p)
	}
}

func (r *Registry) register(p Plugin) {
	r.mu.Lock()
	if _, exists := r.names[p.Name]; exists {
		r.mu.Unlock()
		panic(fmt.Sprintf("domwire: duplicate plugin name %q", p.Name))
	}
	r.names[p.Name] = struct{}{}
	r.mu.Unlock()

	init := p.Init
	match := p.Match
	callback := func(n *html.Node) {
		if match != nil && !match(n) {
			return
		}
		init(n)
	}

	// Snapshot first so the init pass below cannot double-fire through
	// the watcher.
	existing := r.watcher.doc.QuerySelectorAll(p.Selector)
	r.watcher.Watch(p.Selector, callback)
	for _, n := range existing {
		r.watcher.fire(pendingFire{callback, n})
	}
}
