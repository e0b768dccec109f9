// Package schema defines the document model shared by every store and pattern in
// the bookstore: a schemaless Document addressed by dotted field paths, and the
// closed set of value kinds the migrations branch on.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mohae/deepcopy"
)

// IDField is the name of the immutable identifier field carried by every document.
const IDField = "_id"

// Document is a single stored record. Nested objects are map[string]any and
// sequences are []any once a document has been decoded from a store.
type Document map[string]any

// ID returns the document identifier and whether it is present.
func (d Document) ID() (any, bool) {
	v, ok := d[IDField]
	return v, ok
}

// Clone returns a deep copy of the document so that callers can mutate it without
// affecting the original.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(deepcopy.Copy(map[string]any(d)).(map[string]any))
}

// SplitPath breaks a dotted field path into its segments.
func SplitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("field path cannot be empty")
	}
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("field path %q contains an empty segment", path)
		}
	}
	return parts, nil
}

// asObject returns v as a plain map when it is an embedded object.
func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return map[string]any(m), true
	default:
		return nil, false
	}
}

// Get resolves a dotted path. The boolean is false when any segment is missing or
// traverses through a non-object value.
func (d Document) Get(path string) (any, bool) {
	parts, err := SplitPath(path)
	if err != nil {
		return nil, false
	}
	var current any = map[string]any(d)
	for _, part := range parts {
		obj, ok := asObject(current)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Has reports whether the path resolves to a present value (null counts as present).
func (d Document) Has(path string) bool {
	_, ok := d.Get(path)
	return ok
}

// Set assigns value at the dotted path, creating intermediate objects as needed.
// A scalar sitting on an intermediate segment is replaced by an object.
func (d Document) Set(path string, value any) error {
	parts, err := SplitPath(path)
	if err != nil {
		return err
	}
	current := map[string]any(d)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asObject(current[part])
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
	return nil
}

// Unset removes the value at the dotted path. It reports whether anything was removed.
func (d Document) Unset(path string) (bool, error) {
	parts, err := SplitPath(path)
	if err != nil {
		return false, err
	}
	current := map[string]any(d)
	for _, part := range parts[:len(parts)-1] {
		next, ok := asObject(current[part])
		if !ok {
			return false, nil
		}
		current = next
	}
	last := parts[len(parts)-1]
	if _, ok := current[last]; !ok {
		return false, nil
	}
	delete(current, last)
	return true, nil
}

// Equal compares two documents by their canonical JSON encoding, which sorts keys and
// folds numeric representations (int 1 and float64 1 encode identically).
func Equal(a, b Document) (bool, error) {
	ab, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("failed to encode document: %w", err)
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false, fmt.Errorf("failed to encode document: %w", err)
	}
	return string(ab) == string(bb), nil
}

// IDKey renders an identifier in canonical JSON so that equal identifiers of different
// numeric representations map to the same key.
func IDKey(id any) (string, error) {
	b, err := json.Marshal(id)
	if err != nil {
		return "", fmt.Errorf("failed to encode identifier %v: %w", id, err)
	}
	return string(b), nil
}
