package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Nature enumerates CoA classifications.
type Nature string

const (
	NatureAsset     Nature = "ASSET"
	NatureLiability Nature = "LIABILITY"
	NatureEquity    Nature = "EQUITY"
	NatureIncome    Nature = "INCOME"
	NatureExpense   Nature = "EXPENSE"
)

// Side enumerates posting sides.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// AmountKind enumerates how a rule computes its line amount.
type AmountKind string

const (
	AmountBase     AmountKind = "BASE"
	AmountIGV      AmountKind = "IGV"
	AmountTotal    AmountKind = "TOTAL"
	AmountDiscount AmountKind = "DISCOUNT"
	AmountCost     AmountKind = "COST"
	AmountQuantity AmountKind = "QUANTITY"
	AmountLiteral  AmountKind = "LITERAL"
)

// PeriodStatus enumerates valid period states.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "OPEN"
	PeriodStatusClosed PeriodStatus = "CLOSED"
)

// EntryStatus enumerates journal lifecycle values. The engine only ever
// creates POSTED entries; drafts and edits are external concerns.
type EntryStatus string

const EntryStatusPosted EntryStatus = "POSTED"

// Role is an abstract accounting function independent of any concrete chart.
type Role string

const (
	RoleExpense           Role = "EXPENSE"
	RoleRevenue           Role = "REVENUE"
	RoleVATCredit         Role = "VAT_CREDIT"
	RoleVATDebit          Role = "VAT_DEBIT"
	RoleSuppliers         Role = "SUPPLIERS"
	RoleReceivables       Role = "RECEIVABLES"
	RoleCash              Role = "CASH"
	RoleBank              Role = "BANK"
	RoleInventory         Role = "INVENTORY"
	RoleCOGS              Role = "COGS"
	RoleDiscountsGranted  Role = "DISCOUNTS_GRANTED"
	RoleDiscountsObtained Role = "DISCOUNTS_OBTAINED"
)

// roleNatures declares the bookkeeping nature each role must resolve to.
var roleNatures = map[Role]Nature{
	RoleExpense:           NatureExpense,
	RoleRevenue:           NatureIncome,
	RoleVATCredit:         NatureAsset,
	RoleVATDebit:          NatureLiability,
	RoleSuppliers:         NatureLiability,
	RoleReceivables:       NatureAsset,
	RoleCash:              NatureAsset,
	RoleBank:              NatureAsset,
	RoleInventory:         NatureAsset,
	RoleCOGS:              NatureExpense,
	RoleDiscountsGranted:  NatureExpense,
	RoleDiscountsObtained: NatureIncome,
}

// roleCandidateCodes lists PCGE account codes tried first by the heuristic
// resolver, most specific last so exact hits win over prefixes.
var roleCandidateCodes = map[Role][]string{
	RoleExpense:           {"60", "63"},
	RoleRevenue:           {"70", "70.1"},
	RoleVATCredit:         {"40.11", "40.1", "40"},
	RoleVATDebit:          {"40.11", "40.1", "40"},
	RoleSuppliers:         {"42", "42.1"},
	RoleReceivables:       {"12", "12.1"},
	RoleCash:              {"10.1", "10"},
	RoleBank:              {"10.4"},
	RoleInventory:         {"20", "21"},
	RoleCOGS:              {"69", "69.1"},
	RoleDiscountsGranted:  {"67.4", "74"},
	RoleDiscountsObtained: {"75.4", "73"},
}

// roleSearchNames are folded Spanish names the heuristic matches against.
var roleSearchNames = map[Role][]string{
	RoleExpense:     {"gastos", "compras"},
	RoleRevenue:     {"ventas", "ingresos"},
	RoleVATCredit:   {"igv", "igv credito fiscal"},
	RoleVATDebit:    {"igv", "igv por pagar"},
	RoleSuppliers:   {"proveedores", "cuentas por pagar"},
	RoleReceivables: {"clientes", "cuentas por cobrar"},
	RoleCash:        {"caja", "efectivo"},
	RoleBank:        {"banco", "bancos", "cuentas corrientes"},
	RoleInventory:   {"mercaderias", "existencias"},
	RoleCOGS:        {"costo de ventas"},
}

// overridableRoles accept an explicit account code from operation data.
var overridableRoles = map[Role]bool{
	RoleInventory: true,
	RoleCOGS:      true,
	RoleExpense:   true,
}

// RoleNature returns the declared nature for role, false when unknown.
func RoleNature(role Role) (Nature, bool) {
	n, ok := roleNatures[role]
	return n, ok
}

// RoleNatures returns a copy of the full role-to-nature table for callers
// that scan mappings outside the engine.
func RoleNatures() map[Role]Nature {
	out := make(map[Role]Nature, len(roleNatures))
	for role, nature := range roleNatures {
		out[role] = nature
	}
	return out
}

// RoleAllowsOverride reports whether operation data may pin the role to a
// concrete account code.
func RoleAllowsOverride(role Role) bool {
	return overridableRoles[role]
}

// Account models a chart of accounts node as the engine sees it.
type Account struct {
	ID        int64
	CompanyID int64
	Code      string
	Name      string
	Nature    Nature
	IsActive  bool
}

// AccountingEvent is a configured business event type (e.g. "COMPRA").
type AccountingEvent struct {
	ID        int64
	CompanyID int64
	Type      string
	Name      string
	Category  string
	IsActive  bool
}

// Rule is one ordered, conditionally-applied posting instruction.
type Rule struct {
	ID           int64
	EventID      int64
	Order        int
	Condition    *Condition
	Side         Side
	Role         Role
	AmountKind   AmountKind
	Params       RuleParams
	MemoTemplate string
	IsActive     bool
}

// RoleMapping binds an abstract role to a concrete account per company.
type RoleMapping struct {
	ID          int64
	CompanyID   int64
	Role        Role
	AccountID   int64
	IsActive    bool
	AutoCreated bool
	UpdatedAt   time.Time
}

// Period represents a monthly posting window.
type Period struct {
	ID        int64
	CompanyID int64
	Year      int
	Month     int
	Status    PeriodStatus
}

// Covers reports whether the period window contains date.
func (p Period) Covers(date time.Time) bool {
	return p.Year == date.Year() && time.Month(p.Month) == date.Month()
}

// JournalEntry captures a persisted posting.
type JournalEntry struct {
	ID          int64
	CompanyID   int64
	PeriodID    int64
	Ref         uuid.UUID
	Date        time.Time
	Currency    string
	Status      EntryStatus
	Origin      string
	Memo        string
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	ContentHash string
	CreatedAt   time.Time
	Lines       []EntryLine
}

// EntryLine stores a debit or credit amount for one account. Exactly one of
// Debit and Credit is nonzero.
type EntryLine struct {
	ID          int64
	EntryID     int64
	AccountID   int64
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Memo        string
}

// RuleTrace is one audit row describing what a rule did during assembly.
// Applied rows carry the resolved account and amount; skipped rows carry a
// reason. Stored as queryable rows, not an opaque blob.
type RuleTrace struct {
	EntryID       int64
	RuleID        int64
	Order         int
	Role          Role
	Side          Side
	AmountKind    AmountKind
	AccountCode   string
	Amount        decimal.Decimal
	Applied       bool
	SkipReason    string
	LowConfidence bool
}

// Skip reasons recorded in rule traces.
const (
	SkipConditionNotMet = "condition not met"
	SkipZeroAmount      = "zero amount"
)
