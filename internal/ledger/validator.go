package ledger

import (
	"github.com/shopspring/decimal"
)

// BalanceTolerance is the maximum accepted |debit - credit| drift, covering
// rounding of tax splits.
var BalanceTolerance = decimal.RequireFromString("0.01")

// sensitiveRoles is an explicit whitelist of natures for roles historically
// prone to misconfiguration, checked independently of the generic
// role-nature check as defense in depth.
var sensitiveRoles = map[Role]Nature{
	RoleReceivables: NatureAsset,
	RoleVATCredit:   NatureAsset,
	RoleVATDebit:    NatureLiability,
	RoleSuppliers:   NatureLiability,
	RoleCash:        NatureAsset,
	RoleBank:        NatureAsset,
}

// Validator enforces the bookkeeping invariants that gate every resolved
// account and every assembled entry.
type Validator struct{}

// CheckNature verifies the account's nature equals the role's declared
// nature. The posting side never changes the required nature; it only
// decides increase versus decrease.
func (Validator) CheckNature(companyID int64, role Role, account Account) error {
	want, ok := RoleNature(role)
	if !ok {
		return &UnmappedRoleError{CompanyID: companyID, Role: role}
	}
	if account.Nature != want {
		return &InvalidMappingError{
			CompanyID:   companyID,
			Role:        role,
			AccountCode: account.Code,
			WantNature:  want,
			GotNature:   account.Nature,
		}
	}
	if sensitive, listed := sensitiveRoles[role]; listed && account.Nature != sensitive {
		return &InvalidMappingError{
			CompanyID:   companyID,
			Role:        role,
			AccountCode: account.Code,
			WantNature:  sensitive,
			GotNature:   account.Nature,
		}
	}
	return nil
}

// CheckActive verifies the account accepts postings. Never auto-corrected.
func (Validator) CheckActive(role Role, account Account) error {
	if !account.IsActive {
		return &InactiveAccountError{Role: role, AccountCode: account.Code}
	}
	return nil
}

// CheckPeriodOpen verifies the period accepts postings. Never auto-corrected
// and never cached; callers re-read the period inside their transaction.
func (Validator) CheckPeriodOpen(period Period) error {
	if period.Status != PeriodStatusOpen {
		return &ClosedPeriodError{CompanyID: period.CompanyID, Year: period.Year, Month: period.Month}
	}
	return nil
}

// CheckBalance verifies |sum(debit) - sum(credit)| <= tolerance over the
// assembled lines.
func (Validator) CheckBalance(lines []EntryLine) error {
	var debit, credit decimal.Decimal
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if debit.Sub(credit).Abs().GreaterThan(BalanceTolerance) {
		return &UnbalancedEntryError{TotalDebit: debit.StringFixed(2), TotalCredit: credit.StringFixed(2)}
	}
	return nil
}

// CheckNonEmpty verifies at least one line was assembled.
func (Validator) CheckNonEmpty(eventType string, lines []EntryLine, skipped int) error {
	if len(lines) == 0 {
		return &EmptyAssemblyError{EventType: eventType, Skipped: skipped}
	}
	return nil
}
