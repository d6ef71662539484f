package domwire

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/a-h/templ"
	"golang.org/x/net/html"
)

const attrDoc = `<!DOCTYPE html>
<html><body>
  <button id="chained" data-chain='["refresh", {"method": "GET", "page": "items"}]'>go</button>
  <button id="broken" data-chain='[oops'>go</button>
  <a id="linked" data-request='{"method": "POST", "delay": 100, "q": "x"}'>go</a>
  <a id="named-only" data-request='{"function": "hook"}'>go</a>
  <a id="bad-req" data-request='{nope'>go</a>
  <p id="json-notice" data-notice="json"></p>
  <p id="text-notice" data-notice="text"></p>
  <p id="bare-notice" data-notice=""></p>
  <p id="plain"></p>
</body></html>`

func TestChainAttr(t *testing.T) {
	d := newTestDoc(t, attrDoc)

	steps, present, err := ChainAttr(d.QuerySelectorAll("#chained")[0])
	if err != nil || !present {
		t.Fatalf("ChainAttr() = present=%v, err=%v", present, err)
	}
	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(steps))
	}
	if s, ok := steps[0].(NamedStep); !ok || s != "refresh" {
		t.Errorf("step 0 = %#v", steps[0])
	}
	if _, ok := steps[1].(*RequestStep); !ok {
		t.Errorf("step 1 = %#v, want *RequestStep", steps[1])
	}

	if _, present, _ := ChainAttr(d.QuerySelectorAll("#plain")[0]); present {
		t.Error("ChainAttr() reported presence on an unadorned node")
	}

	if _, _, err := ChainAttr(d.QuerySelectorAll("#broken")[0]); !errors.Is(err, ErrInvalidChain) {
		t.Errorf("ChainAttr(broken) error = %v, want ErrInvalidChain", err)
	}
}

func TestRequestAttr(t *testing.T) {
	d := newTestDoc(t, attrDoc)

	step, present, err := RequestAttr(d.QuerySelectorAll("#linked")[0])
	if err != nil || !present {
		t.Fatalf("RequestAttr() = present=%v, err=%v", present, err)
	}
	if step.Method != "POST" || step.Delay != 100*time.Millisecond {
		t.Errorf("step = %+v", step)
	}
	if got := step.Data.Get("q"); got != "x" {
		t.Errorf("Data[q] = %q", got)
	}

	// A named-function object is not a request step.
	if _, _, err := RequestAttr(d.QuerySelectorAll("#named-only")[0]); !errors.Is(err, ErrMissingDispatch) {
		t.Errorf("RequestAttr(named) error = %v, want ErrMissingDispatch", err)
	}

	if _, _, err := RequestAttr(d.QuerySelectorAll("#bad-req")[0]); !errors.Is(err, ErrInvalidChain) {
		t.Errorf("RequestAttr(bad) error = %v, want ErrInvalidChain", err)
	}

	if _, present, _ := RequestAttr(d.QuerySelectorAll("#plain")[0]); present {
		t.Error("RequestAttr() reported presence on an unadorned node")
	}
}

func TestNoticeMode(t *testing.T) {
	d := newTestDoc(t, attrDoc)

	tests := []struct {
		selector string
		want     string
	}{
		{"#json-notice", NoticeJSON},
		{"#text-notice", NoticeText},
		{"#bare-notice", NoticeText},
		{"#plain", NoticeText},
	}
	for _, tt := range tests {
		if got := NoticeMode(d.QuerySelectorAll(tt.selector)[0]); got != tt.want {
			t.Errorf("NoticeMode(%s) = %q, want %q", tt.selector, got, tt.want)
		}
	}
}

func TestInsertComponent(t *testing.T) {
	d, w := newTestWatcher(t, watcherDoc)

	var inits int
	w.Watch(".widget", func(*html.Node) { inits++ })

	component := templ.Raw(`<div class="widget">hello</div>`)
	if err := InsertComponent(context.Background(), d, "#stage", component); err != nil {
		t.Fatalf("InsertComponent() error = %v", err)
	}

	widgets := d.QuerySelectorAll(".widget")
	if len(widgets) != 1 {
		t.Fatalf("got %d widgets in the document, want 1", len(widgets))
	}
	if inits != 1 {
		t.Errorf("watcher saw %d insertions, want 1", inits)
	}
}

func TestInsertComponentNoRegion(t *testing.T) {
	d := newTestDoc(t, watcherDoc)
	err := InsertComponent(context.Background(), d, "#missing", templ.Raw(`<p>x</p>`))
	if err == nil {
		t.Fatal("InsertComponent() accepted a selector with no match")
	}
}
