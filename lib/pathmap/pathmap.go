// Package pathmap folds flat, dot-path-annotated keys into nested
// map[string]any trees and deep-merges whole trees.
//
// It backs the form-to-JSON assembly: a field tagged with the path
// "address.geo" and the key "lat" lands at obj["address"]["geo"]["lat"].
package pathmap

import (
	"strings"

	"dario.cat/mergo"
)

// Set merges (path, key, value) into root, creating intermediate maps
// along the dot-separated path as needed. An empty path places the key
// at the root. A path segment that collides with an existing non-map
// value replaces it with a map; the deepest write wins.
func Set(root map[string]any, path, key string, value any) {
	cur := root
	if path != "" {
		for _, seg := range strings.Split(path, ".") {
			next, ok := cur[seg].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[seg] = next
			}
			cur = next
		}
	}
	cur[key] = value
}

// Merge deep-merges fragment underneath dst. Keys already present in
// dst win on conflict at every level; fragment only fills gaps.
func Merge(dst, fragment map[string]any) error {
	return mergo.Merge(&dst, fragment)
}
