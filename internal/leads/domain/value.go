package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind enumerates the scalar variants a data bag field can hold.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Value is one field of a lead's free-form data. The zero Value is null.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
}

// String wraps a text value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool wraps a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Null returns the null value.
func Null() Value { return Value{} }

// Kind reports which variant v holds.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Text renders the value the way it is compared by conditions: numbers use
// the shortest decimal form, booleans are "true"/"false" and null is "".
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// MarshalJSON encodes the value as a JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON scalar. Objects and arrays are kept as their
// compact JSON text so that nested form payloads remain searchable.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty value")
	}

	switch trimmed[0] {
	case 'n':
		*v = Null()
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = String(s)
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return err
		}
		*v = String(buf.String())
	default:
		var n float64
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return err
		}
		*v = Number(n)
	}
	return nil
}

// DataBag is a lead's free-form field data keyed by field name.
type DataBag map[string]Value

// Lookup returns the field and whether it is present.
func (b DataBag) Lookup(field string) (Value, bool) {
	if b == nil {
		return Value{}, false
	}
	v, ok := b[field]
	return v, ok
}

// Merge returns a new bag holding b overlaid with patch. Null values in the
// patch are stored as null rather than deleting the field.
func (b DataBag) Merge(patch DataBag) DataBag {
	out := make(DataBag, len(b)+len(patch))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy of the bag.
func (b DataBag) Clone() DataBag {
	return b.Merge(nil)
}

// ParseDataBag decodes stored JSON. Empty input yields an empty bag.
func ParseDataBag(raw []byte) (DataBag, error) {
	bag := DataBag{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return bag, nil
	}
	if err := json.Unmarshal(raw, &bag); err != nil {
		return DataBag{}, err
	}
	if bag == nil {
		bag = DataBag{}
	}
	return bag, nil
}
