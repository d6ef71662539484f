package pathmap

import (
	"reflect"
	"testing"
)

func TestSet(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		key   string
		value any
		want  map[string]any
	}{
		{
			name: "empty path lands at root",
			path: "", key: "name", value: "max",
			want: map[string]any{"name": "max"},
		},
		{
			name: "single segment",
			path: "address", key: "city", value: "berlin",
			want: map[string]any{"address": map[string]any{"city": "berlin"}},
		},
		{
			name: "deep path creates intermediate levels",
			path: "address.geo", key: "lat", value: "52.5",
			want: map[string]any{
				"address": map[string]any{
					"geo": map[string]any{"lat": "52.5"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := make(map[string]any)
			Set(root, tt.path, tt.key, tt.value)
			if !reflect.DeepEqual(root, tt.want) {
				t.Errorf("Set() produced %v, want %v", root, tt.want)
			}
		})
	}
}

func TestSetSharedPrefix(t *testing.T) {
	root := make(map[string]any)
	Set(root, "", "name", "max")
	Set(root, "", "email", "a@b.com")
	Set(root, "geo", "lat", "52.5")
	Set(root, "geo", "lng", "13.4")

	want := map[string]any{
		"name":  "max",
		"email": "a@b.com",
		"geo":   map[string]any{"lat": "52.5", "lng": "13.4"},
	}
	if !reflect.DeepEqual(root, want) {
		t.Errorf("Set() produced %v, want %v", root, want)
	}
}

func TestSetReplacesScalarCollision(t *testing.T) {
	root := map[string]any{"a": "scalar"}
	Set(root, "a", "b", "x")

	want := map[string]any{"a": map[string]any{"b": "x"}}
	if !reflect.DeepEqual(root, want) {
		t.Errorf("Set() produced %v, want %v", root, want)
	}
}

func TestMergeExistingKeysWin(t *testing.T) {
	dst := map[string]any{
		"name": "max",
		"geo":  map[string]any{"lat": "52.5"},
	}
	fragment := map[string]any{
		"name": "static",
		"role": "admin",
		"geo":  map[string]any{"lat": "0", "lng": "13.4"},
	}

	if err := Merge(dst, fragment); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	if dst["name"] != "max" {
		t.Errorf("constructed value overwritten: name = %v", dst["name"])
	}
	if dst["role"] != "admin" {
		t.Errorf("fragment gap not filled: role = %v", dst["role"])
	}
	geo := dst["geo"].(map[string]any)
	if geo["lat"] != "52.5" {
		t.Errorf("nested constructed value overwritten: lat = %v", geo["lat"])
	}
	if geo["lng"] != "13.4" {
		t.Errorf("nested fragment gap not filled: lng = %v", geo["lng"])
	}
}

func TestMergeEmptyFragment(t *testing.T) {
	dst := map[string]any{"a": "1"}
	if err := Merge(dst, nil); err != nil {
		t.Fatalf("Merge(nil) error = %v", err)
	}
	if !reflect.DeepEqual(dst, map[string]any{"a": "1"}) {
		t.Errorf("dst mutated by empty merge: %v", dst)
	}
}
