package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration indicates a missing/empty event or rule set.
	ErrConfiguration = errors.New("ledger: event configuration missing or empty")
	// ErrUnmappedRole indicates a role with no resolvable account.
	ErrUnmappedRole = errors.New("ledger: no account resolvable for role")
	// ErrInvalidMapping indicates a nature-invalid mapping that auto-correction could not fix.
	ErrInvalidMapping = errors.New("ledger: role mapped to account of wrong nature")
	// ErrInactiveAccount indicates the resolved account rejects postings.
	ErrInactiveAccount = errors.New("ledger: resolved account is inactive")
	// ErrClosedPeriod indicates the target period is closed.
	ErrClosedPeriod = errors.New("ledger: period is closed")
	// ErrUnbalancedEntry indicates debits and credits diverge beyond tolerance.
	ErrUnbalancedEntry = errors.New("ledger: entry lines do not balance")
	// ErrEmptyAssembly indicates no lines were produced.
	ErrEmptyAssembly = errors.New("ledger: no lines produced for entry")
	// ErrPersistenceGlitch indicates a persisted entry re-read without lines.
	ErrPersistenceGlitch = errors.New("ledger: persisted entry has no lines")
	// ErrEventNotFound indicates the event type is unknown or inactive.
	ErrEventNotFound = errors.New("ledger: accounting event not found")
	// ErrBadCondition indicates a malformed rule condition tree.
	ErrBadCondition = errors.New("ledger: malformed rule condition")
)

// ConfigurationError reports which event configuration is unusable.
type ConfigurationError struct {
	CompanyID int64
	EventType string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("ledger: event %q for company %d: %s", e.EventType, e.CompanyID, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// UnmappedRoleError reports the role the resolver could not bind.
type UnmappedRoleError struct {
	CompanyID int64
	Role      Role
}

func (e *UnmappedRoleError) Error() string {
	return fmt.Sprintf("ledger: role %s has no resolvable account for company %d", e.Role, e.CompanyID)
}

func (e *UnmappedRoleError) Unwrap() error { return ErrUnmappedRole }

// InvalidMappingError reports a nature mismatch that survived auto-correction.
type InvalidMappingError struct {
	CompanyID   int64
	Role        Role
	AccountCode string
	WantNature  Nature
	GotNature   Nature
}

func (e *InvalidMappingError) Error() string {
	return fmt.Sprintf("ledger: role %s resolved to account %s of nature %s, want %s",
		e.Role, e.AccountCode, e.GotNature, e.WantNature)
}

func (e *InvalidMappingError) Unwrap() error { return ErrInvalidMapping }

// InactiveAccountError reports a non-postable account.
type InactiveAccountError struct {
	Role        Role
	AccountCode string
}

func (e *InactiveAccountError) Error() string {
	return fmt.Sprintf("ledger: account %s for role %s does not accept postings", e.AccountCode, e.Role)
}

func (e *InactiveAccountError) Unwrap() error { return ErrInactiveAccount }

// ClosedPeriodError reports the rejected period.
type ClosedPeriodError struct {
	CompanyID int64
	Year      int
	Month     int
}

func (e *ClosedPeriodError) Error() string {
	return fmt.Sprintf("ledger: period %04d-%02d for company %d is closed", e.Year, e.Month, e.CompanyID)
}

func (e *ClosedPeriodError) Unwrap() error { return ErrClosedPeriod }

// UnbalancedEntryError carries both totals for diagnostics.
type UnbalancedEntryError struct {
	TotalDebit  string
	TotalCredit string
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("ledger: entry unbalanced: debit %s vs credit %s", e.TotalDebit, e.TotalCredit)
}

func (e *UnbalancedEntryError) Unwrap() error { return ErrUnbalancedEntry }

// EmptyAssemblyError reports why every rule was skipped.
type EmptyAssemblyError struct {
	EventType string
	Skipped   int
}

func (e *EmptyAssemblyError) Error() string {
	return fmt.Sprintf("ledger: event %q produced no lines (%d rules skipped)", e.EventType, e.Skipped)
}

func (e *EmptyAssemblyError) Unwrap() error { return ErrEmptyAssembly }
