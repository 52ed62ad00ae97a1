package coa

import "time"

// Nature enumerates CoA classifications.
type Nature string

const (
	NatureAsset     Nature = "ASSET"
	NatureLiability Nature = "LIABILITY"
	NatureEquity    Nature = "EQUITY"
	NatureIncome    Nature = "INCOME"
	NatureExpense   Nature = "EXPENSE"
)

// Valid reports whether n is a known nature.
func (n Nature) Valid() bool {
	switch n {
	case NatureAsset, NatureLiability, NatureEquity, NatureIncome, NatureExpense:
		return true
	}
	return false
}

// Account models a chart of accounts node.
type Account struct {
	ID        int64
	CompanyID int64
	Code      string
	Name      string
	Nature    Nature
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
