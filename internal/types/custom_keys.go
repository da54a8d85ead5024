package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// BestTimeToVisitKey is the custom key consulted by the season filter.
const BestTimeToVisitKey = "Best Time to Visit"

// reservedCustomKeys duplicate the audit columns and are never displayed.
var reservedCustomKeys = map[string]struct{}{
	"created_by":      {},
	"created_by_name": {},
	"created_at":      {},
	"updated_by":      {},
	"updated_by_name": {},
	"updated_at":      {},
}

// IsReservedCustomKey reports whether key shadows an audit field.
func IsReservedCustomKey(key string) bool {
	_, ok := reservedCustomKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// CustomKey is a single free-form attribute of a place.
type CustomKey struct {
	Key   string
	Value string
}

// CustomKeys is an ordered string map. It serialises as a JSON object whose
// members keep their insertion order.
type CustomKeys []CustomKey

// Get returns the value stored under key.
func (c CustomKeys) Get(key string) (string, bool) {
	for _, kv := range c {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Set replaces the value for key in place or appends it.
func (c *CustomKeys) Set(key, value string) {
	for i := range *c {
		if (*c)[i].Key == key {
			(*c)[i].Value = value
			return
		}
	}
	*c = append(*c, CustomKey{Key: key, Value: value})
}

// Visible drops the reserved audit keys.
func (c CustomKeys) Visible() CustomKeys {
	out := make(CustomKeys, 0, len(c))
	for _, kv := range c {
		if IsReservedCustomKey(kv.Key) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// Sanitize trims keys, drops blank and reserved keys and collapses duplicates
// (the last value wins, the first position is kept).
func (c CustomKeys) Sanitize() CustomKeys {
	out := make(CustomKeys, 0, len(c))
	for _, kv := range c {
		key := strings.TrimSpace(kv.Key)
		if key == "" || IsReservedCustomKey(key) {
			continue
		}
		out.Set(key, strings.TrimSpace(kv.Value))
	}
	return out
}

func (c CustomKeys) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts a JSON object. Non-string scalar values are kept as
// their literal text; nested objects and arrays are rejected.
func (c *CustomKeys) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("custom_keys must be a JSON object")
	}

	out := CustomKeys{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		var value string
		switch v := valTok.(type) {
		case string:
			value = v
		case json.Number:
			value = v.String()
		case bool:
			value = fmt.Sprintf("%t", v)
		case nil:
			value = ""
		default:
			return fmt.Errorf("custom_keys[%q] must be a scalar value", key)
		}
		out.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}
