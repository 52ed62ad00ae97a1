package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Value is one operation-data field: a number, a bool, or a string.
type Value struct {
	Num  decimal.Decimal
	Bool bool
	Str  string
	Kind ValueKind
}

// ValueKind tags the active variant of a Value.
type ValueKind int

const (
	ValueNumber ValueKind = iota
	ValueBool
	ValueString
)

// NumberValue wraps a decimal as an operation-data value.
func NumberValue(d decimal.Decimal) Value { return Value{Num: d, Kind: ValueNumber} }

// BoolValue wraps a bool as an operation-data value.
func BoolValue(b bool) Value { return Value{Bool: b, Kind: ValueBool} }

// StringValue wraps a string as an operation-data value.
func StringValue(s string) Value { return Value{Str: s, Kind: ValueString} }

// String renders the value canonically; used for hashing and memos.
func (v Value) String() string {
	switch v.Kind {
	case ValueNumber:
		return v.Num.String()
	case ValueBool:
		return fmt.Sprintf("%t", v.Bool)
	default:
		return v.Str
	}
}

// UnmarshalJSON accepts JSON numbers, bools and strings. Numbers decode
// through decimal to keep monetary precision off float64.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "true" || trimmed == "false":
		v.Kind = ValueBool
		v.Bool = trimmed == "true"
		return nil
	case strings.HasPrefix(trimmed, `"`):
		v.Kind = ValueString
		return json.Unmarshal(data, &v.Str)
	default:
		d, err := decimal.NewFromString(trimmed)
		if err != nil {
			return fmt.Errorf("ledger: operation value %q is not a number, bool or string", trimmed)
		}
		v.Kind = ValueNumber
		v.Num = d
		return nil
	}
}

// MarshalJSON emits the underlying variant.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueNumber:
		return []byte(v.Num.String()), nil
	case ValueBool:
		return json.Marshal(v.Bool)
	default:
		return json.Marshal(v.Str)
	}
}

// OperationData carries the business event's fields into rule evaluation.
type OperationData map[string]Value

// Number returns the named field as a decimal, false when absent or not
// numeric.
func (o OperationData) Number(field string) (decimal.Decimal, bool) {
	v, ok := o[field]
	if !ok || v.Kind != ValueNumber {
		return decimal.Zero, false
	}
	return v.Num, true
}

// Text returns the named field as a string, false when absent or not text.
func (o OperationData) Text(field string) (string, bool) {
	v, ok := o[field]
	if !ok || v.Kind != ValueString {
		return "", false
	}
	return v.Str, true
}

// canonical renders the data as "k=v" pairs sorted by key, for the entry
// content hash. Identical inputs must serialize identically.
func (o OperationData) canonical() string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(o[k].String())
	}
	return b.String()
}
