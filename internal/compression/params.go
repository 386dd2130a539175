package compression

import (
	"math"
	"strings"
)

// Params is an algorithm-specific parameter mapping as decoded from a
// configuration document. Values are the generic shapes produced by
// YAML/JSON decoders: float64, int, string, bool, []any, map[string]any.
//
// Getters accept dotted keys ("initializer.range.num_init_steps") that
// descend into nested maps, and return the default when the key is absent.
// A present value of the wrong type is an ErrInvalidParam error.
type Params map[string]any

// Lookup returns the value at key, trying the literal key first and then
// descending through nested maps on ".".
func (p Params) Lookup(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	if v, ok := p[key]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(key, ".")
	if !found {
		return nil, false
	}
	child, ok := p[head]
	if !ok {
		return nil, false
	}
	sub, ok := asMap(child)
	if !ok {
		return nil, false
	}
	return sub.Lookup(rest)
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p.Lookup(key)
	return ok
}

// Float returns a numeric parameter.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p.Lookup(key)
	if !ok {
		return def, nil
	}
	f, ok := asFloat(v)
	if !ok {
		return 0, paramError(key, "expected number, got %T", v)
	}
	return f, nil
}

// Int returns an integral parameter. Floats with no fractional part are accepted.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p.Lookup(key)
	if !ok {
		return def, nil
	}
	i, ok := asInt(v)
	if !ok {
		return 0, paramError(key, "expected integer, got %v", v)
	}
	return i, nil
}

// String returns a string parameter.
func (p Params) String(key string, def string) (string, error) {
	v, ok := p.Lookup(key)
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", paramError(key, "expected string, got %T", v)
	}
	return s, nil
}

// Bool returns a boolean parameter.
func (p Params) Bool(key string, def bool) (bool, error) {
	v, ok := p.Lookup(key)
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, paramError(key, "expected bool, got %T", v)
	}
	return b, nil
}

// Floats returns a list of numbers, or nil when absent.
func (p Params) Floats(key string) ([]float64, error) {
	v, ok := p.Lookup(key)
	if !ok {
		return nil, nil
	}
	items, ok := asList(v)
	if !ok {
		return nil, paramError(key, "expected list, got %T", v)
	}
	out := make([]float64, len(items))
	for i, item := range items {
		f, ok := asFloat(item)
		if !ok {
			return nil, paramError(key, "element %d: expected number, got %T", i, item)
		}
		out[i] = f
	}
	return out, nil
}

// Ints returns a list of integers, or nil when absent.
func (p Params) Ints(key string) ([]int, error) {
	v, ok := p.Lookup(key)
	if !ok {
		return nil, nil
	}
	items, ok := asList(v)
	if !ok {
		return nil, paramError(key, "expected list, got %T", v)
	}
	out := make([]int, len(items))
	for i, item := range items {
		n, ok := asInt(item)
		if !ok {
			return nil, paramError(key, "element %d: expected integer, got %v", i, item)
		}
		out[i] = n
	}
	return out, nil
}

// Clone returns a deep copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Params:
		return t.Clone()
	case map[string]any:
		return map[string]any(Params(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []float64:
		return append([]float64(nil), t...)
	case []int:
		return append([]int(nil), t...)
	default:
		return v
	}
}

func asMap(v any) (Params, bool) {
	switch t := v.(type) {
	case Params:
		return t, true
	case map[string]any:
		return Params(t), true
	default:
		return nil, false
	}
}

func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []float64:
		out := make([]any, len(t))
		for i, f := range t {
			out[i] = f
		}
		return out, true
	case []int:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case uint64:
		return int(n), true //nolint:gosec // G115: config values are small
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
