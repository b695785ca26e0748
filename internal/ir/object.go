package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"
)

// Object is a JSON-compatible map journaled with invocations and completions.
//
// Values are restricted to string, int64, bool and []string so that objects
// round-trip through canonical JSON without loss. Floats and null are
// rejected by MarshalCanonical.
type Object map[string]any

// String returns the string stored under key.
func (o Object) String(key string) (string, bool) {
	v, ok := o[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int returns the integer stored under key.
func (o Object) Int(key string) (int64, bool) {
	switch v := o[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint32:
		return int64(v), true
	default:
		return 0, false
	}
}

// Strings returns the string list stored under key.
// An empty list is returned as a non-nil empty slice.
func (o Object) Strings(key string) ([]string, bool) {
	switch v := o[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out, true
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings orders by UTF-8 bytes, which differs above the BMP.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	return slices.Compare(ua, ub)
}

// MarshalObject renders o as canonical JSON text for storage.
func MarshalObject(o Object) (string, error) {
	if o == nil {
		o = Object{}
	}
	data, err := MarshalCanonical(o)
	if err != nil {
		return "", fmt.Errorf("marshal object: %w", err)
	}
	return string(data), nil
}

// UnmarshalObject parses stored JSON text back into an Object.
// Numbers are decoded through json.Number so large integers keep full
// precision; non-integral numbers are rejected.
func UnmarshalObject(data string) (Object, error) {
	if data == "" || data == "{}" {
		return Object{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}

	obj := make(Object, len(raw))
	for k, v := range raw {
		conv, err := fromJSONValue(v)
		if err != nil {
			return nil, fmt.Errorf("unmarshal object: key %q: %w", k, err)
		}
		obj[k] = conv
	}
	return obj, nil
}

func fromJSONValue(v any) (any, error) {
	switch val := v.(type) {
	case string, bool:
		return val, nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %s", val)
		}
		return n, nil
	case []any:
		out := make([]string, 0, len(val))
		for i, elem := range val {
			s, ok := elem.(string)
			if !ok {
				return nil, fmt.Errorf("element %d: expected string, got %T", i, elem)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("null is not allowed")
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
}
