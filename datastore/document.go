package datastore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// lookup resolves a dotted path inside doc.
func lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	default:
		return nil, false
	}
}

// project copies the values found at paths into a new document, keeping
// their nesting. An empty path list returns a shallow copy of doc.
func project(doc Document, paths []string) Document {
	out := make(Document, len(paths))
	if len(paths) == 0 {
		for k, v := range doc {
			out[k] = v
		}
		return out
	}

	for _, path := range paths {
		v, ok := lookup(doc, path)
		if !ok {
			continue
		}
		parts := strings.Split(path, ".")
		target := map[string]any(out)
		for _, part := range parts[:len(parts)-1] {
			next, ok := target[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				target[part] = next
			}
			target = next
		}
		target[parts[len(parts)-1]] = v
	}
	return out
}

// matches evaluates an equality-only query against doc.
func matches(doc Document, query Query) (bool, error) {
	for path, want := range query {
		if err := checkEquality(path, want); err != nil {
			return false, err
		}
		got, ok := lookup(doc, path)
		if !ok {
			if want == nil {
				continue
			}
			return false, nil
		}
		if !valuesEqual(got, want) {
			return false, nil
		}
	}
	return true, nil
}

// checkEquality rejects operator keys and operator documents.
func checkEquality(path string, value any) error {
	if strings.HasPrefix(path, "$") {
		return fmt.Errorf("%w: operator %q", ErrUnsupportedQuery, path)
	}
	if m, ok := asMap(value); ok {
		for k := range m {
			if strings.HasPrefix(k, "$") {
				return fmt.Errorf("%w: operator %q on %s", ErrUnsupportedQuery, k, path)
			}
		}
		return fmt.Errorf("%w: document value for %s", ErrUnsupportedQuery, path)
	}
	if _, ok := value.([]any); ok {
		return fmt.Errorf("%w: array value for %s", ErrUnsupportedQuery, path)
	}
	return nil
}

func valuesEqual(a, b any) bool {
	if x, ok := toFloat(a); ok {
		y, ok := toFloat(b)
		return ok && x == y
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n)
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// sortDocuments orders docs by the value at field. Strings compare
// lexically, numbers numerically; missing values sort last.
func sortDocuments(docs []Document, field string, descending bool) {
	if field == "" {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, aok := lookup(docs[i], field)
		b, bok := lookup(docs[j], field)
		if !aok || !bok {
			return aok && !bok
		}
		less, greater := compare(a, b)
		if descending {
			return greater
		}
		return less
	})
}

func compare(a, b any) (less, greater bool) {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return x < y, x > y
		}
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	return sa < sb, sa > sb
}

// ParseQuery decodes a JSON object into a Query. Integral numbers become
// int64 so they compare equal to stored integers.
func ParseQuery(s string) (Query, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON object")
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("query must be a JSON object, got %T", v)
	}
	return Query(normalizeNumbers(m).(map[string]any)), nil
}

// DecodeDocuments parses a JSON array of documents. Integral numbers
// become int64 so equality with typed flight numbers holds in every
// backend.
func DecodeDocuments(data []byte) ([]Document, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	docs := make([]Document, 0, len(raw))
	for i, r := range raw {
		d, err := decodeDocument(r)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func decodeDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("document is null")
	}
	return Document(normalizeNumbers(m).(map[string]any)), nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeNumbers(val)
		}
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	default:
		return v
	}
}
