package health

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind identifies the type held by a Value.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindMap
)

// Value is one metadata value: a string, a number, a bool or a nested
// Metadata map. The zero Value is the empty string.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	m    Metadata
}

// Metadata is a probe result's free-form payload.
type Metadata map[string]Value

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue returns a numeric Value.
func NumberValue(n float64) Value { return Value{kind: KindNumber, num: n} }

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// MapValue returns a nested Value.
func MapValue(m Metadata) Value { return Value{kind: KindMap, m: m} }

// Kind reports the held type.
func (v Value) Kind() Kind { return v.kind }

// AsString returns the string and whether v holds one.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsNumber returns the number and whether v holds one.
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// AsBool returns the bool and whether v holds one.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsMap returns the nested map and whether v holds one.
func (v Value) AsMap() (Metadata, bool) { return v.m, v.kind == KindMap }

// MarshalJSON encodes v as its natural JSON kind.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindMap:
		if v.m == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.m)
	default:
		return json.Marshal(v.str)
	}
}

// UnmarshalJSON decodes a string, number, bool or object. Arrays and null
// are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("health: empty metadata value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case '{':
		var m Metadata
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*v = MapValue(m)
	case '[', 'n':
		return fmt.Errorf("health: unsupported metadata value %s", data)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = NumberValue(n)
	}
	return nil
}
