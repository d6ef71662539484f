package domwire

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/mlev/domwire/dom"
)

// Watcher owns a document's single subtree-mutation subscription and
// dispatches insertions to selector-keyed listeners.
//
// Each listener tracks the set of nodes it has already seen. Nodes
// matching the selector when Watch is called are seeded into that set
// and never fire; a node inserted afterwards fires the callback exactly
// once, regardless of how many mutation batches mention it. Removed
// nodes are evicted from every listener's set (together with their
// detached descendants), so re-inserting an equivalent subtree fires
// again, and memory stays bounded across a document's lifetime.
//
// Callbacks run outside the watcher's lock and may freely mutate the
// document; the resulting batches are processed re-entrantly. A panic
// in one callback is recovered and logged and does not prevent other
// nodes or listeners in the same batch from being handled.
type Watcher struct {
	doc *dom.Document
	log *zap.Logger

	mu        sync.Mutex
	listeners []*listener
}

// listener pairs a selector with its init callback and the nodes it has
// already fired for. Mutated only by the watcher's batch handler and
// Watch, both under the watcher's lock.
type listener struct {
	selector string
	callback func(*html.Node)
	known    map[*html.Node]struct{}
}

// NewWatcher subscribes a watcher to the document's mutation feed.
// The document must not have another observer.
func NewWatcher(doc *dom.Document, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Watcher{doc: doc, log: log}
	if err := doc.Observe(w.handleBatch); err != nil {
		return nil, err
	}
	return w, nil
}

// Watch registers callback for every node matching selector that is
// inserted after this call. Nodes already matching are recorded as
// known and do not trigger the callback.
func (w *Watcher) Watch(selector string, callback func(*html.Node)) {
	l := &listener{
		selector: selector,
		callback: callback,
		known:    make(map[*html.Node]struct{}),
	}
	for _, n := range w.doc.QuerySelectorAll(selector) {
		l.known[n] = struct{}{}
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, l)
	w.mu.Unlock()
}

type pendingFire struct {
	callback func(*html.Node)
	node     *html.Node
}

// handleBatch is the document's mutation observer. For every added node
// it matches the listener's selector against the node's parent scope
// (descendants-or-self), so the root of an inserted subtree is itself a
// candidate and a node moved under a non-matching parent cannot
// spuriously match ancestor context the move broke.
//
// Known sets are updated before any callback runs: a callback that
// re-enters the document (injecting markup) is processed recursively
// without double-firing.
func (w *Watcher) handleBatch(b dom.Batch) {
	w.mu.Lock()
	var fires []pendingFire
	for _, l := range w.listeners {
		for _, rec := range b {
			for _, added := range rec.Added {
				scope := added.Parent
				if scope == nil {
					scope = rec.Target
				}
				for _, m := range dom.Query(scope, l.selector) {
					if _, seen := l.known[m]; seen {
						continue
					}
					l.known[m] = struct{}{}
					fires = append(fires, pendingFire{l.callback, m})
				}
			}
			for _, removed := range rec.Removed {
				evictSubtree(l.known, removed)
			}
		}
	}
	w.mu.Unlock()

	for _, f := range fires {
		w.fire(f)
	}
}

func (w *Watcher) fire(f pendingFire) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("recovered panic in watch callback",
				zap.String("node", f.node.Data),
				zap.Any("panic", r))
		}
	}()
	f.callback(f.node)
}

// evictSubtree drops a detached node and its descendants from a known
// set. The mutation record only names the subtree root; everything
// below it left the document with it.
func evictSubtree(known map[*html.Node]struct{}, n *html.Node) {
	if len(known) == 0 {
		return
	}
	delete(known, n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		evictSubtree(known, c)
	}
}
