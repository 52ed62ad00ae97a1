package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultIGVRate is the Peruvian general sales tax rate applied when a rule
// does not configure its own.
var DefaultIGVRate = decimal.RequireFromString("0.18")

// RuleParams is the typed per-kind parameter set for a rule. Each amount
// kind carries exactly the parameters it needs; mismatched combinations are
// rejected when the rule is decoded.
type RuleParams struct {
	// Rate applies to IGV and TOTAL kinds. Zero means DefaultIGVRate.
	Rate decimal.Decimal
	// Field names the operation-data field read by the LITERAL kind.
	Field string
}

type ruleParamsJSON struct {
	Rate  *decimal.Decimal `json:"rate,omitempty"`
	Field string           `json:"field,omitempty"`
}

// DecodeRuleParams parses raw JSON parameters for the given kind, enforcing
// that only parameters valid for that kind are present.
func DecodeRuleParams(kind AmountKind, raw []byte) (RuleParams, error) {
	var p RuleParams
	if len(raw) == 0 {
		if kind == AmountLiteral {
			return p, fmt.Errorf("ledger: LITERAL rule requires a field parameter")
		}
		return p, nil
	}
	var wire ruleParamsJSON
	if err := json.Unmarshal(raw, &wire); err != nil {
		return p, fmt.Errorf("ledger: decode rule params: %w", err)
	}
	switch kind {
	case AmountIGV, AmountTotal:
		if wire.Field != "" {
			return p, fmt.Errorf("ledger: %s rule does not take a field parameter", kind)
		}
		if wire.Rate != nil {
			if wire.Rate.IsNegative() {
				return p, fmt.Errorf("ledger: %s rate cannot be negative", kind)
			}
			p.Rate = *wire.Rate
		}
	case AmountLiteral:
		if wire.Rate != nil {
			return p, fmt.Errorf("ledger: LITERAL rule does not take a rate parameter")
		}
		if wire.Field == "" {
			return p, fmt.Errorf("ledger: LITERAL rule requires a field parameter")
		}
		p.Field = wire.Field
	default:
		if wire.Rate != nil || wire.Field != "" {
			return p, fmt.Errorf("ledger: %s rule takes no parameters", kind)
		}
	}
	return p, nil
}

// EffectiveRate returns the configured rate or the IGV default.
func (p RuleParams) EffectiveRate() decimal.Decimal {
	if p.Rate.IsZero() {
		return DefaultIGVRate
	}
	return p.Rate
}
