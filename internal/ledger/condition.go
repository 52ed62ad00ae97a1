package ledger

import (
	"encoding/json"
	"fmt"
)

// Condition is a restricted boolean expression over operation-data fields.
// The tree admits only comparisons against literal operands and boolean
// combinators; there is no attribute access, no function calls, and no way
// to reach outside the supplied operation data. Wire format:
//
//	{"op":"and","args":[{"op":"gt","field":"base","value":100},
//	                    {"op":"eq","field":"currency","value":"PEN"}]}
type Condition struct {
	Op    string       `json:"op"`
	Field string       `json:"field,omitempty"`
	Value *Value       `json:"value,omitempty"`
	Args  []*Condition `json:"args,omitempty"`
}

// Comparison and combinator operators accepted in rule conditions.
const (
	OpEq     = "eq"
	OpNe     = "ne"
	OpGt     = "gt"
	OpGte    = "gte"
	OpLt     = "lt"
	OpLte    = "lte"
	OpIn     = "in"
	OpExists = "exists"
	OpAnd    = "and"
	OpOr     = "or"
	OpNot    = "not"
)

// ParseCondition decodes and validates a condition tree. A nil or empty
// payload yields a nil condition, which always evaluates true.
func ParseCondition(raw []byte) (*Condition, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var c Condition
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCondition, err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Condition) validate() error {
	switch c.Op {
	case OpAnd, OpOr:
		if len(c.Args) == 0 {
			return fmt.Errorf("%w: %s with no operands", ErrBadCondition, c.Op)
		}
		for _, arg := range c.Args {
			if arg == nil {
				return fmt.Errorf("%w: nil operand under %s", ErrBadCondition, c.Op)
			}
			if err := arg.validate(); err != nil {
				return err
			}
		}
	case OpNot:
		if len(c.Args) != 1 || c.Args[0] == nil {
			return fmt.Errorf("%w: not requires exactly one operand", ErrBadCondition)
		}
		return c.Args[0].validate()
	case OpExists:
		if c.Field == "" {
			return fmt.Errorf("%w: exists requires a field", ErrBadCondition)
		}
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		if c.Field == "" || c.Value == nil {
			return fmt.Errorf("%w: %s requires field and value", ErrBadCondition, c.Op)
		}
	case OpIn:
		if c.Field == "" || len(c.Args) == 0 {
			return fmt.Errorf("%w: in requires field and candidate values", ErrBadCondition)
		}
		for _, arg := range c.Args {
			if arg == nil || arg.Value == nil || arg.Op != "" {
				return fmt.Errorf("%w: in candidates must be bare values", ErrBadCondition)
			}
		}
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrBadCondition, c.Op)
	}
	return nil
}

// Eval interprets the condition against op. A nil condition is true. A
// comparison whose field is absent, or whose types disagree, is false
// rather than an error: rules routinely probe optional fields.
func (c *Condition) Eval(op OperationData) bool {
	if c == nil {
		return true
	}
	switch c.Op {
	case OpAnd:
		for _, arg := range c.Args {
			if !arg.Eval(op) {
				return false
			}
		}
		return true
	case OpOr:
		for _, arg := range c.Args {
			if arg.Eval(op) {
				return true
			}
		}
		return false
	case OpNot:
		return !c.Args[0].Eval(op)
	case OpExists:
		_, ok := op[c.Field]
		return ok
	case OpIn:
		got, ok := op[c.Field]
		if !ok {
			return false
		}
		for _, arg := range c.Args {
			if equalValues(got, *arg.Value) {
				return true
			}
		}
		return false
	default:
		got, ok := op[c.Field]
		if !ok {
			return false
		}
		return compare(c.Op, got, *c.Value)
	}
}

func equalValues(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ValueNumber:
		return a.Num.Equal(b.Num)
	case ValueBool:
		return a.Bool == b.Bool
	default:
		return a.Str == b.Str
	}
}

func compare(op string, got, want Value) bool {
	switch op {
	case OpEq:
		return equalValues(got, want)
	case OpNe:
		return !equalValues(got, want)
	}
	// Ordering operators apply to numbers only.
	if got.Kind != ValueNumber || want.Kind != ValueNumber {
		return false
	}
	cmp := got.Num.Cmp(want.Num)
	switch op {
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	}
	return false
}
