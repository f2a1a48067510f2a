package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// String returns the named input as a string, or "" when absent.
func (in Input) String(name string) string {
	v, ok := in[name]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}

// Int returns the named input as an int, falling back to def.
func (in Input) Int(name string, def int) int {
	switch v := in[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// List returns the named input as a slice of values.
func (in Input) List(name string) []any {
	switch v := in[name].(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	}
	return nil
}

// Map returns the named input as a map, or nil.
func (in Input) Map(name string) map[string]any {
	switch v := in[name].(type) {
	case map[string]any:
		return v
	case Result:
		return v
	case Input:
		return v
	}
	return nil
}

// Has reports whether the input is present and non-nil.
func (in Input) Has(name string) bool {
	v, ok := in[name]
	return ok && v != nil
}
