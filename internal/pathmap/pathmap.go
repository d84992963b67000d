// Package pathmap reads and writes values at dot/bracket-style nested paths
// inside decoded JSON trees. Paths look like "userDetails.country_code",
// "userDetails[email]" or "items[0].sku"; bracket segments with a numeric
// body index into arrays, everything else is a map key.
package pathmap

import (
	"strconv"
	"strings"
)

type segment struct {
	key     string
	index   int
	isIndex bool
}

// parsePath splits a path into its segments. Dots separate segments outside
// brackets; bracket bodies are taken verbatim (quotes stripped).
func parsePath(path string) []segment {
	var segs []segment
	var buf strings.Builder

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		segs = append(segs, makeSegment(buf.String()))
		buf.Reset()
	}

	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '.':
			flush()
		case '[':
			flush()
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				// Unterminated bracket, treat the rest literally.
				buf.WriteString(path[i:])
				i = len(path)
				break
			}
			body := path[i+1 : i+end]
			body = strings.Trim(body, `"'`)
			segs = append(segs, makeSegment(body))
			i += end
		default:
			buf.WriteByte(path[i])
		}
	}
	flush()
	return segs
}

func makeSegment(s string) segment {
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return segment{key: s, index: n, isIndex: true}
	}
	return segment{key: s}
}

// Get reads the value at path inside tree, returning def when any segment of
// the path is absent or traverses a non-container.
func Get(tree interface{}, path string, def interface{}) interface{} {
	cur := tree
	for _, seg := range parsePath(path) {
		switch c := cur.(type) {
		case map[string]interface{}:
			v, ok := c[seg.key]
			if !ok {
				return def
			}
			cur = v
		case []interface{}:
			if !seg.isIndex || seg.index >= len(c) {
				return def
			}
			cur = c[seg.index]
		default:
			return def
		}
	}
	return cur
}

// Has reports whether path resolves inside tree.
func Has(tree interface{}, path string) bool {
	absent := new(struct{})
	return Get(tree, path, absent) != interface{}(absent)
}

// Set assigns value at path inside tree, creating intermediate containers as
// needed: maps for key segments, arrays (padded with nulls) for index
// segments. Existing siblings along the path are preserved.
func Set(tree map[string]interface{}, path string, value interface{}) {
	segs := parsePath(path)
	if len(segs) == 0 {
		return
	}
	first := segs[0]
	if len(segs) == 1 {
		tree[first.key] = value
		return
	}
	tree[first.key] = setIn(tree[first.key], segs[1:], value)
}

// setIn places value under the remaining segments of container, returning the
// (possibly replaced) container. Arrays must be returned because padding
// reallocates the backing slice.
func setIn(container interface{}, segs []segment, value interface{}) interface{} {
	seg := segs[0]

	if seg.isIndex {
		arr, ok := container.([]interface{})
		if !ok {
			arr = nil
		}
		for len(arr) <= seg.index {
			arr = append(arr, nil)
		}
		if len(segs) == 1 {
			arr[seg.index] = value
		} else {
			arr[seg.index] = setIn(arr[seg.index], segs[1:], value)
		}
		return arr
	}

	m, ok := container.(map[string]interface{})
	if !ok {
		m = make(map[string]interface{})
	}
	if len(segs) == 1 {
		m[seg.key] = value
	} else {
		m[seg.key] = setIn(m[seg.key], segs[1:], value)
	}
	return m
}

// DeepCopy returns a structural copy of a decoded JSON tree. Maps and arrays
// are copied recursively; scalars are shared (they are immutable).
func DeepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = DeepCopy(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = DeepCopy(e)
		}
		return out
	default:
		return v
	}
}

// CopyMap is DeepCopy specialised for a map root; a nil input yields an
// empty, writable map.
func CopyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = DeepCopy(v)
	}
	return out
}
