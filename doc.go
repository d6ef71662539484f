// Package domwire auto-wires declarative UI plugins to a live HTML
// document and orchestrates their outbound calls.
//
// The toolkit has two load-bearing subsystems. Everything else (the
// visual widgets themselves) consumes them:
//
//   - Watcher observes the document's single subtree-mutation feed and
//     fires a registered initialization callback exactly once per node
//     that starts matching a selector, no matter how many mutation
//     batches mention it.
//   - Engine executes ordered chains of heterogeneous steps - Go
//     callbacks, named functions from a process-wide registry, and HTTP
//     request descriptors - strictly in order, carrying each request's
//     response into its local callback before the next step starts.
//
// # Watching for inserted markup
//
// A Watcher owns the document's only mutation subscription. Nodes
// matching a selector at registration time are recorded as already
// known and never fire; nodes inserted later fire exactly once:
//
//	w, _ := domwire.NewWatcher(doc, logger)
//	w.Watch(".tooltip", func(n *html.Node) { initTooltip(n) })
//
// Plugins registered through a Registry additionally get an immediate
// initialization pass over markup already present:
//
//	reg := domwire.NewRegistry(w)
//	reg.Add(domwire.Plugin{Name: "tooltip", Selector: ".tooltip", Init: initTooltip})
//
// # Chained remote calls
//
// Chains arrive either as []Step values or serialized as a JSON array
// in the data-chain attribute:
//
//	[{"method": "POST", "page": "search", "type": "json", "callback": "renderHits"},
//	 "afterSearch"]
//
// String elements and objects with a "function" field name entries in
// the Funcs registry; objects with a "method" field become HTTP
// requests whose payload is assembled from the remaining fields. A
// request step's response routing keys (response_html, response_text,
// response_json) inject the interpreted response back into matching
// document regions, which re-enters the Watcher and closes the loop.
//
// # Form submission
//
// Submitter posts a form's fields, folding dot-path-tagged fields
// (data-json) into nested JSON objects, merging an optional static
// fragment (data-merge) underneath, writing the response into
// notification regions (data-notice), and continuing into the form's
// declared chain.
//
// # Error model
//
// Invalid input shapes to public entry points return sentinel errors
// immediately. Panics inside caller-supplied callbacks are recovered
// and logged, never propagated - one misbehaving plugin must not stall
// a mutation batch or a chain. Transport and parse failures degrade to
// a nil result handed to the waiting callback.
package domwire
