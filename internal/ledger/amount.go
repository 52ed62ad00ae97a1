package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// computeAmount evaluates a rule's amount kind against operation data.
// Absent fields compute to zero; the assembler skips zero-amount lines.
func computeAmount(rule Rule, op OperationData) (decimal.Decimal, error) {
	switch rule.AmountKind {
	case AmountBase:
		base, _ := op.Number("base")
		return base.Round(2), nil
	case AmountIGV:
		base, _ := op.Number("base")
		return base.Mul(rule.Params.EffectiveRate()).Round(2), nil
	case AmountTotal:
		if total, ok := op.Number("total"); ok {
			return total.Round(2), nil
		}
		base, _ := op.Number("base")
		one := decimal.NewFromInt(1)
		return base.Mul(one.Add(rule.Params.EffectiveRate())).Round(2), nil
	case AmountDiscount:
		v, _ := op.Number("discount")
		return v.Round(2), nil
	case AmountCost:
		v, _ := op.Number("cost")
		return v.Round(2), nil
	case AmountQuantity:
		v, _ := op.Number("quantity")
		return v.Round(4), nil
	case AmountLiteral:
		v, _ := op.Number(rule.Params.Field)
		return v.Round(2), nil
	default:
		return decimal.Zero, fmt.Errorf("ledger: rule %d has unknown amount kind %q", rule.ID, rule.AmountKind)
	}
}
