package domwire

import (
	"errors"
	"testing"

	"golang.org/x/net/html"

	"github.com/mlev/domwire/dom"
)

const watcherDoc = `<!DOCTYPE html>
<html><body>
  <div id="stage">
    <span class="tooltip">existing</span>
  </div>
</body></html>`

func newTestDoc(t *testing.T, src string) *dom.Document {
	t.Helper()
	d, err := dom.Parse(src, "http://example.com/page")
	if err != nil {
		t.Fatalf("dom.Parse() error = %v", err)
	}
	return d
}

func newTestWatcher(t *testing.T, src string) (*dom.Document, *Watcher) {
	t.Helper()
	d := newTestDoc(t, src)
	w, err := NewWatcher(d, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	return d, w
}

func stage(t *testing.T, d *dom.Document) *html.Node {
	t.Helper()
	nodes := d.QuerySelectorAll("#stage")
	if len(nodes) != 1 {
		t.Fatal("missing #stage")
	}
	return nodes[0]
}

func TestWatcherClaimsTheOnlySubscription(t *testing.T) {
	d, _ := newTestWatcher(t, watcherDoc)
	if _, err := NewWatcher(d, nil); !errors.Is(err, dom.ErrObserverSet) {
		t.Fatalf("second NewWatcher error = %v, want dom.ErrObserverSet", err)
	}
}

func TestPreExistingNodesDoNotFire(t *testing.T) {
	d, w := newTestWatcher(t, watcherDoc)

	var fired int
	w.Watch(".tooltip", func(*html.Node) { fired++ })

	// Unrelated mutation: the pre-existing tooltip is rescanned in its
	// parent scope but is already known.
	if _, err := d.AppendHTML(stage(t, d), `<p>noise</p>`); err != nil {
		t.Fatal(err)
	}
	if fired != 0 {
		t.Fatalf("pre-existing node fired %d times, want 0", fired)
	}
}

func TestInsertedNodeFiresExactlyOnce(t *testing.T) {
	d, w := newTestWatcher(t, watcherDoc)

	var fired []*html.Node
	w.Watch(".tooltip", func(n *html.Node) { fired = append(fired, n) })

	st := stage(t, d)
	nodes, err := d.AppendHTML(st, `<span class="tooltip">new</span>`)
	if err != nil {
		t.Fatal(err)
	}
	if len(fired) != 1 || fired[0] != nodes[0] {
		t.Fatalf("fired = %d nodes, want exactly the inserted node once", len(fired))
	}

	// Overlapping batches against the same parent scope must not
	// re-fire a known node.
	if _, err := d.AppendHTML(st, `<p>noise</p>`); err != nil {
		t.Fatal(err)
	}
	if len(fired) != 1 {
		t.Fatalf("node re-fired on a later batch: %d fires", len(fired))
	}
}

func TestSubtreeRootAndDescendantsBothFire(t *testing.T) {
	d, w := newTestWatcher(t, watcherDoc)

	var fired int
	w.Watch(".widget", func(*html.Node) { fired++ })

	// Bulk insertion: the root of the inserted subtree matches too.
	_, err := d.AppendHTML(stage(t, d), `<div class="widget"><span class="widget">inner</span></div>`)
	if err != nil {
		t.Fatal(err)
	}
	if fired != 2 {
		t.Fatalf("fired = %d, want 2 (subtree root and descendant)", fired)
	}
}

func TestEvictionAllowsReinsertedEquivalentToFire(t *testing.T) {
	d, w := newTestWatcher(t, watcherDoc)

	var fired int
	w.Watch(".card", func(*html.Node) { fired++ })

	st := stage(t, d)
	nodes, err := d.AppendHTML(st, `<div class="card"><span class="card">x</span></div>`)
	if err != nil {
		t.Fatal(err)
	}
	if fired != 2 {
		t.Fatalf("initial fires = %d, want 2", fired)
	}

	// Removal evicts the subtree from the known set...
	d.Remove(nodes[0])

	// ...so a fresh, equivalent subtree fires again.
	if _, err := d.AppendHTML(st, `<div class="card"><span class="card">x</span></div>`); err != nil {
		t.Fatal(err)
	}
	if fired != 4 {
		t.Fatalf("fires after re-insertion = %d, want 4", fired)
	}
}

func TestMultipleListenersShareOneBatch(t *testing.T) {
	d, w := newTestWatcher(t, watcherDoc)

	var spans, divs int
	w.Watch("span.item", func(*html.Node) { spans++ })
	w.Watch("div.item", func(*html.Node) { divs++ })

	_, err := d.AppendHTML(stage(t, d), `<div class="item"><span class="item">a</span></div>`)
	if err != nil {
		t.Fatal(err)
	}
	if spans != 1 || divs != 1 {
		t.Fatalf("spans = %d, divs = %d; want 1 and 1", spans, divs)
	}
}

func TestPanickingCallbackIsIsolated(t *testing.T) {
	d, w := newTestWatcher(t, watcherDoc)

	var survived int
	w.Watch(".boom", func(*html.Node) { panic("widget init failed") })
	w.Watch(".safe", func(*html.Node) { survived++ })

	_, err := d.AppendHTML(stage(t, d), `<i class="boom"></i><i class="boom"></i><i class="safe"></i>`)
	if err != nil {
		t.Fatal(err)
	}
	if survived != 1 {
		t.Fatalf("safe listener fired %d times, want 1 despite panicking sibling", survived)
	}
}

func TestCallbackMayMutateDocument(t *testing.T) {
	d, w := newTestWatcher(t, watcherDoc)

	var order []string
	w.Watch(".outer", func(n *html.Node) {
		order = append(order, "outer")
		// Re-entrant insertion from inside a watch callback.
		if _, err := d.AppendHTML(n, `<b class="inner"></b>`); err != nil {
			t.Errorf("nested AppendHTML: %v", err)
		}
	})
	w.Watch(".inner", func(*html.Node) { order = append(order, "inner") })

	if _, err := d.AppendHTML(stage(t, d), `<div class="outer"></div>`); err != nil {
		t.Fatal(err)
	}

	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Fatalf("order = %v, want [outer inner]", order)
	}
}
