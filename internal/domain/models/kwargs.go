package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Kwargs is a flat set of named parameters stored with resources and datums.
// Values come back from stores as JSON/BSON scalars so accessors normalize them.
type Kwargs map[string]interface{}

// Clone returns a shallow copy that never aliases the receiver
func (k Kwargs) Clone() Kwargs {
	if k == nil {
		return Kwargs{}
	}
	ret := make(Kwargs, len(k))
	for key, v := range k {
		ret[key] = v
	}
	return ret
}

// Keys returns sorted parameter names
func (k Kwargs) Keys() []string {
	keys := make([]string, 0, len(k))
	for key := range k {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Int returns an integral parameter
func (k Kwargs) Int(key string) (int, error) {
	v, ok := k[key]
	if !ok {
		return 0, fmt.Errorf("missing parameter %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint32:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("parameter %q is not integral: %v", key, n)
		}
		return int(n), nil
	case float32:
		if float64(n) != math.Trunc(float64(n)) {
			return 0, fmt.Errorf("parameter %q is not integral: %v", key, n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("parameter %q is not integral: %v", key, n)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("parameter %q has type %T, want integer", key, v)
	}
}

// String returns a string parameter
func (k Kwargs) String(key string) (string, bool) {
	v, ok := k[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
