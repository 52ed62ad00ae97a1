package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func num(s string) Value { return NumberValue(decimal.RequireFromString(s)) }

func TestParseConditionRejectsMalformedTrees(t *testing.T) {
	cases := map[string]string{
		"unknown op":        `{"op":"matches","field":"memo","value":"x"}`,
		"cmp without field": `{"op":"gt","value":10}`,
		"and without args":  `{"op":"and"}`,
		"not with two args": `{"op":"not","args":[{"op":"exists","field":"a"},{"op":"exists","field":"b"}]}`,
		"in with nested op": `{"op":"in","field":"doc","args":[{"op":"eq","field":"x","value":1}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCondition([]byte(raw)); !errors.Is(err, ErrBadCondition) {
				t.Fatalf("expected ErrBadCondition, got %v", err)
			}
		})
	}
}

func TestParseConditionNilPayload(t *testing.T) {
	c, err := ParseCondition(nil)
	if err != nil || c != nil {
		t.Fatalf("expected nil condition, got %v, %v", c, err)
	}
	if !c.Eval(OperationData{}) {
		t.Fatal("nil condition must evaluate true")
	}
}

func TestConditionEval(t *testing.T) {
	op := OperationData{
		"base":     num("150.50"),
		"currency": StringValue("PEN"),
		"credit":   BoolValue(true),
	}
	cases := []struct {
		name string
		raw  string
		want bool
	}{
		{"gt true", `{"op":"gt","field":"base","value":100}`, true},
		{"gt false", `{"op":"gt","field":"base","value":200}`, false},
		{"gte boundary", `{"op":"gte","field":"base","value":150.50}`, true},
		{"eq string", `{"op":"eq","field":"currency","value":"PEN"}`, true},
		{"ne string", `{"op":"ne","field":"currency","value":"USD"}`, true},
		{"eq bool", `{"op":"eq","field":"credit","value":true}`, true},
		{"missing field is false", `{"op":"lt","field":"discount","value":5}`, false},
		{"type mismatch is false", `{"op":"gt","field":"currency","value":10}`, false},
		{"exists", `{"op":"exists","field":"credit"}`, true},
		{"not exists", `{"op":"not","args":[{"op":"exists","field":"ghost"}]}`, true},
		{"in hit", `{"op":"in","field":"currency","args":[{"value":"USD"},{"value":"PEN"}]}`, true},
		{"in miss", `{"op":"in","field":"currency","args":[{"value":"USD"}]}`, false},
		{"and", `{"op":"and","args":[{"op":"gt","field":"base","value":100},{"op":"eq","field":"currency","value":"PEN"}]}`, true},
		{"and short-circuit false", `{"op":"and","args":[{"op":"gt","field":"base","value":999},{"op":"eq","field":"currency","value":"PEN"}]}`, false},
		{"or", `{"op":"or","args":[{"op":"gt","field":"base","value":999},{"op":"eq","field":"credit","value":true}]}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cond, err := ParseCondition([]byte(tc.raw))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := cond.Eval(op); got != tc.want {
				t.Fatalf("Eval = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestConditionEvalIsPure(t *testing.T) {
	op := OperationData{"base": num("10")}
	cond, err := ParseCondition([]byte(`{"op":"gt","field":"base","value":5}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for i := 0; i < 3; i++ {
		if !cond.Eval(op) {
			t.Fatal("expected true")
		}
	}
	if len(op) != 1 || !op["base"].Num.Equal(decimal.RequireFromString("10")) {
		t.Fatal("operation data mutated by evaluation")
	}
}
