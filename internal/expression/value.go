package expression

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind identifies the shape of an operator or parameter value.
type ValueKind int

const (
	ValueUndefined ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
	ValueList
)

// Value is a scalar, a boolean, a string list, or undefined. Empty strings,
// zero and false are all defined values.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []string
}

// StringValue returns a string value.
func StringValue(s string) Value { return Value{kind: ValueString, str: s} }

// NumberValue returns a numeric value.
func NumberValue(n float64) Value { return Value{kind: ValueNumber, num: n} }

// BoolValue returns a boolean value.
func BoolValue(b bool) Value { return Value{kind: ValueBool, b: b} }

// ListValue returns a multi-value. A nil list is an empty, defined list.
func ListValue(items ...string) Value {
	list := make([]string, len(items))
	copy(list, items)
	return Value{kind: ValueList, list: list}
}

// Kind returns the value's shape.
func (v Value) Kind() ValueKind { return v.kind }

// IsDefined reports whether a value has been set.
func (v Value) IsDefined() bool { return v.kind != ValueUndefined }

// IsList reports whether v is a multi-value.
func (v Value) IsList() bool { return v.kind == ValueList }

// IsEmpty reports whether v is undefined, an empty string or an empty list.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case ValueUndefined:
		return true
	case ValueString:
		return v.str == ""
	case ValueList:
		return len(v.list) == 0
	default:
		return false
	}
}

// String renders a scalar without quoting. Lists are comma joined.
func (v Value) String() string {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.b)
	case ValueList:
		var buf bytes.Buffer
		for i, s := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(s)
		}
		return buf.String()
	default:
		return ""
	}
}

// Strings returns the members of a list, or the scalar as a single member.
// Undefined values and empty strings yield no members.
func (v Value) Strings() []string {
	switch v.kind {
	case ValueList:
		out := make([]string, len(v.list))
		copy(out, v.list)
		return out
	case ValueUndefined:
		return nil
	case ValueString:
		if v.str == "" {
			return nil
		}
	}
	return []string{v.String()}
}

// First returns the first member of a list, or the value itself for scalars.
// An empty list yields an empty string.
func (v Value) First() Value {
	if v.kind != ValueList {
		return v
	}
	if len(v.list) == 0 {
		return StringValue("")
	}
	return StringValue(v.list[0])
}

// MarshalJSON encodes the value in its natural JSON form; undefined is null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueString:
		return json.Marshal(v.str)
	case ValueNumber:
		return json.Marshal(v.num)
	case ValueBool:
		return json.Marshal(v.b)
	case ValueList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes strings, numbers, booleans, arrays and null.
// Array members that are not strings are kept in their JSON text form.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
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
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		list := make([]string, 0, len(raw))
		for _, item := range raw {
			var s string
			if err := json.Unmarshal(item, &s); err == nil {
				list = append(list, s)
				continue
			}
			list = append(list, string(bytes.TrimSpace(item)))
		}
		*v = Value{kind: ValueList, list: list}
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported value %s: %w", data, err)
		}
		*v = NumberValue(n)
	}
	return nil
}
