package transport

import (
	"encoding/json"
	"fmt"
)

// OptionalBool distinguishes an omitted boolean from an explicit false.
type OptionalBool struct {
	Value bool
	Set   bool
}

func (o OptionalBool) IsZero() bool {
	return !o.Set
}

// Or returns the provided value, or def when the field was omitted or null.
func (o OptionalBool) Or(def bool) bool {
	if !o.Set {
		return def
	}
	return o.Value
}

func (o *OptionalBool) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = OptionalBool{}
		return nil
	}

	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("expected boolean: %w", err)
	}
	o.Value = v
	o.Set = true
	return nil
}

func (o OptionalBool) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
