package worker

import "strings"

// Header is a single header field. Stored case is preserved exactly;
// comparisons are case-insensitive.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered header sequence. Unlike net/http's map-backed
// model, order and multiplicity survive a round trip through the host
// unchanged, including duplicate names.
type Headers []Header

// Get returns the first value for name, case-insensitively.
func (h Headers) Get(name string) (string, bool) {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns all values for name in order of appearance.
func (h Headers) Values(name string) []string {
	var vals []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			vals = append(vals, f.Value)
		}
	}
	return vals
}

// Has reports whether any field matches name.
func (h Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Add appends a field, preserving existing entries.
func (h *Headers) Add(name, value string) {
	*h = append(*h, Header{Name: name, Value: value})
}

// Set replaces every field matching name with a single entry at the
// position of the first match, or appends when absent.
func (h *Headers) Set(name, value string) {
	out := (*h)[:0]
	replaced := false
	for _, f := range *h {
		if strings.EqualFold(f.Name, name) {
			if !replaced {
				out = append(out, Header{Name: name, Value: value})
				replaced = true
			}
			continue
		}
		out = append(out, f)
	}
	if !replaced {
		out = append(out, Header{Name: name, Value: value})
	}
	*h = out
}

// Del removes every field matching name.
func (h *Headers) Del(name string) {
	out := (*h)[:0]
	for _, f := range *h {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	*h = out
}

// Clone returns an independent copy.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	copy(out, h)
	return out
}
