// Package tree holds the path type, the Store contract and the generic JSON
// tree manipulation shared by every store backend.
//
// A store is a tree of JSON values addressed by key paths, like a realtime
// database: reading a path returns the whole subtree below it, and writing a
// path creates any missing parents. Arrays are addressed by decimal index.
// A node whose children are all removed disappears with them.
package tree

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/staffhub/staffhub/shared/domain"
	"github.com/staffhub/staffhub/shared/errors"
)

// Store is the path-addressed read/write/delete contract.
type Store interface {
	// Get returns the subtree at path, or a NotFound error.
	Get(ctx context.Context, path Path) (json.RawMessage, error)
	// Set replaces the node at path, creating parents.
	Set(ctx context.Context, path Path, value any) error
	// Update atomically writes several children of an existing node.
	// A nil value removes that child. A missing node is NotFound.
	Update(ctx context.Context, path Path, fields map[string]any) error
	// Remove deletes the node at path if it exists.
	Remove(ctx context.Context, path Path) error
	Ping(ctx context.Context) error
	Close() error
}

// Path is a sequence of key segments, root first.
type Path []string

// NewPath builds and validates a path.
func NewPath(segments ...string) (Path, error) {
	p := Path(segments)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that the path is non-empty and every segment is a legal key.
func (p Path) Validate() error {
	if len(p) == 0 {
		return errors.ParseError("empty store path")
	}
	for _, seg := range p {
		if err := ValidateKey(seg); err != nil {
			return err
		}
	}
	return nil
}

// ValidateKey checks a single key segment.
func ValidateKey(key string) error {
	if key == "" {
		return errors.ParseError("empty store key")
	}
	if strings.ContainsAny(key, domain.ForbiddenKeyChars) {
		return errors.ParseError("store key %q contains forbidden characters", key)
	}
	return nil
}

// Child returns a new path extended with segments.
func (p Path) Child(segments ...string) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, segments...)
}

func (p Path) Root() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

func (p Path) String() string {
	return strings.Join(p, "/")
}

// Normalize converts an arbitrary Go value into its generic JSON form
// (map[string]any, []any, string, float64, bool or nil).
func Normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, errors.ParseError("value is not JSON serializable: %v", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return out, nil
}

// Lookup walks path from node. It reports false for missing or null nodes.
func Lookup(node any, path []string) (any, bool) {
	cur := node
	for _, seg := range path {
		switch n := cur.(type) {
		case map[string]any:
			v, ok := n[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(n) {
				return nil, false
			}
			cur = n[i]
		default:
			return nil, false
		}
		if cur == nil {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// Assign writes value (already normalized) at path below node and returns
// the new node. A nil value deletes; emptied objects are pruned.
func Assign(node any, path []string, value any) any {
	if len(path) == 0 {
		return value
	}
	seg, rest := path[0], path[1:]

	if arr, ok := node.([]any); ok {
		if i, err := strconv.Atoi(seg); err == nil && i >= 0 && i < len(arr) {
			arr[i] = Assign(arr[i], rest, value)
			if allNil(arr) {
				return nil
			}
			return arr
		}
		node = arrayToObject(arr)
	}

	obj, ok := node.(map[string]any)
	if !ok {
		if value == nil {
			// deleting below a scalar or a missing node is a no-op
			return node
		}
		obj = make(map[string]any)
	}

	child := Assign(obj[seg], rest, value)
	if child == nil {
		delete(obj, seg)
	} else {
		obj[seg] = child
	}
	if len(obj) == 0 {
		return nil
	}
	return obj
}

// Merge applies fields to the object at path below node. The target must
// exist; nil field values delete children.
func Merge(node any, path []string, fields map[string]any) (any, error) {
	target, ok := Lookup(node, path)
	if !ok {
		return nil, errors.NotFound("node %s not found", strings.Join(path, "/"))
	}
	switch target.(type) {
	case map[string]any, []any:
	default:
		return nil, errors.ParseError("node %s is not an object", strings.Join(path, "/"))
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if err := ValidateKey(k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, err := Normalize(fields[k])
		if err != nil {
			return nil, err
		}
		full := make([]string, 0, len(path)+1)
		full = append(full, path...)
		node = Assign(node, append(full, k), v)
	}
	return node, nil
}

func arrayToObject(arr []any) map[string]any {
	obj := make(map[string]any, len(arr))
	for i, v := range arr {
		if v != nil {
			obj[strconv.Itoa(i)] = v
		}
	}
	return obj
}

func allNil(arr []any) bool {
	for _, v := range arr {
		if v != nil {
			return false
		}
	}
	return true
}
