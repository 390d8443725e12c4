package environ

import (
	"net/http"
	"slices"
	"sort"
	"strings"
)

// Headers is a header mapping with case-insensitive names that remembers the
// order in which names were first added. Values for a name keep their order.
// The zero value is ready to use. Headers is not safe for concurrent use.
type Headers struct {
	names  []string            // display names in insertion order
	values map[string][]string // folded name -> values
}

// NewHeaders returns an empty Headers.
func NewHeaders() *Headers {
	return &Headers{values: make(map[string][]string)}
}

// HeadersFrom copies an http.Header. Names are added in sorted order because
// http.Header does not preserve insertion order.
func HeadersFrom(src http.Header) *Headers {
	h := NewHeaders()
	names := make([]string, 0, len(src))
	for name := range src {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range src[name] {
			h.Add(name, v)
		}
	}
	return h
}

func fold(name string) string {
	return strings.ToLower(name)
}

// Add appends value to the values of name.
func (h *Headers) Add(name, value string) {
	if h.values == nil {
		h.values = make(map[string][]string)
	}
	key := fold(name)
	if _, ok := h.values[key]; !ok {
		h.names = append(h.names, name)
	}
	h.values[key] = append(h.values[key], value)
}

// Set replaces the values of name. A name that already exists keeps its position.
func (h *Headers) Set(name string, values ...string) {
	if h.values == nil {
		h.values = make(map[string][]string)
	}
	key := fold(name)
	if _, ok := h.values[key]; !ok {
		h.names = append(h.names, name)
	}
	h.values[key] = append([]string(nil), values...)
}

// Get returns the first value of name, or "".
func (h *Headers) Get(name string) string {
	if h == nil || h.values == nil {
		return ""
	}
	if vs := h.values[fold(name)]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Values returns a copy of the values of name.
func (h *Headers) Values(name string) []string {
	if h == nil || h.values == nil {
		return nil
	}
	return slices.Clone(h.values[fold(name)])
}

// Has reports whether name is present.
func (h *Headers) Has(name string) bool {
	if h == nil || h.values == nil {
		return false
	}
	_, ok := h.values[fold(name)]
	return ok
}

// Del removes name and all of its values.
func (h *Headers) Del(name string) {
	if h == nil || h.values == nil {
		return
	}
	key := fold(name)
	if _, ok := h.values[key]; !ok {
		return
	}
	delete(h.values, key)
	for i, n := range h.names {
		if fold(n) == key {
			h.names = append(h.names[:i], h.names[i+1:]...)
			break
		}
	}
}

// Len returns the number of distinct names.
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.names)
}

// Names returns the header names in insertion order.
func (h *Headers) Names() []string {
	if h == nil {
		return nil
	}
	names := make([]string, len(h.names))
	copy(names, h.names)
	return names
}

// Range calls fn for each name in insertion order until fn returns false.
func (h *Headers) Range(fn func(name string, values []string) bool) {
	if h == nil {
		return
	}
	for _, name := range h.names {
		if !fn(name, h.values[fold(name)]) {
			return
		}
	}
}

// Clone returns a deep copy of h.
func (h *Headers) Clone() *Headers {
	c := NewHeaders()
	h.Range(func(name string, values []string) bool {
		c.Set(name, values...)
		return true
	})
	return c
}

// HTTPHeader converts h to an http.Header.
func (h *Headers) HTTPHeader() http.Header {
	out := make(http.Header, h.Len())
	h.Range(func(name string, values []string) bool {
		for _, v := range values {
			out.Add(name, v)
		}
		return true
	})
	return out
}
