package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
)

// RepositoryPort abstracts transactional repository behaviour. Every
// Generate call runs inside exactly one transaction: rule reads, mapping
// self-heals, the period gate and entry persistence all share it.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// ChartOfAccounts is the consumed chart-of-accounts surface.
type ChartOfAccounts interface {
	AccountByID(ctx context.Context, id int64) (Account, error)
	AccountByCode(ctx context.Context, companyID int64, code string) (Account, error)
	ListActiveAccounts(ctx context.Context, companyID int64) ([]Account, error)
}

// PeriodRegistry is the consumed period surface. GetOrOpenPeriod opens an
// OPEN period row when none exists for (company, year, month).
type PeriodRegistry interface {
	GetOrOpenPeriod(ctx context.Context, companyID int64, year, month int) (Period, error)
}

// RuleCatalog loads events and their ordered active rules.
type RuleCatalog interface {
	EventByType(ctx context.Context, companyID int64, eventType string) (AccountingEvent, error)
	ListActiveRules(ctx context.Context, eventID int64) ([]Rule, error)
}

// TxRepository exposes every operation the engine performs inside one
// transaction.
type TxRepository interface {
	ChartOfAccounts
	PeriodRegistry
	RuleCatalog
	RoleMapping(ctx context.Context, companyID int64, role Role) (RoleMapping, error)
	UpsertRoleMapping(ctx context.Context, companyID int64, role Role, accountID int64, autoCreated bool) error
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []EntryLine) error
	InsertRuleTraces(ctx context.Context, entryID int64, traces []RuleTrace) error
	CountEntryLines(ctx context.Context, entryID int64) (int, error)
	EntryWithLines(ctx context.Context, entryID int64) (JournalEntry, error)
}

// Metrics receives engine counters. A nil Metrics is a no-op.
type Metrics interface {
	EntryPosted()
	GenerationFailed(reason string)
	MappingSelfHealed()
	LowConfidenceResolution()
}

// GenerateInput carries one business event into the engine.
type GenerateInput struct {
	CompanyID int64
	EventType string
	Date      time.Time
	Memo      string
	Currency  string
	Origin    string
	Operation OperationData
}

// Simulation is the result of a dry run: identical computation, zero writes.
type Simulation struct {
	EventName   string
	Memo        string
	Lines       []EntryLine
	Traces      []RuleTrace
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Balanced    bool
}

// Service is the entry assembler: it orchestrates catalog, resolver and
// validator, and persists balanced entries atomically.
type Service struct {
	repo      RepositoryPort
	resolver  *Resolver
	validator Validator
	metrics   Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the assembler.
func NewService(repo RepositoryPort, resolver *Resolver, metrics Metrics, logger *slog.Logger) *Service {
	if resolver == nil {
		resolver = &Resolver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, resolver: resolver, metrics: metrics, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// assemblyState tracks the assembler's lifecycle for one call.
type assemblyState string

const (
	statePending    assemblyState = "PENDING"
	stateAssembling assemblyState = "ASSEMBLING"
	stateValidated  assemblyState = "VALIDATED"
	statePersisted  assemblyState = "PERSISTED"
	stateAborted    assemblyState = "ABORTED"
)

// assembly accumulates lines and traces for one call.
type assembly struct {
	state   assemblyState
	event   AccountingEvent
	lines   []EntryLine
	traces  []RuleTrace
	debit   decimal.Decimal
	credit  decimal.Decimal
	skipped int
	heals   int
	lowConf int
}

// txCorrections adapts the transaction's mapping upsert to the resolver's
// recorder capability and counts what it wrote.
type txCorrections struct {
	tx    TxRepository
	count int
}

func (c *txCorrections) RecordCorrection(ctx context.Context, companyID int64, role Role, accountID int64, autoCreated bool) error {
	if err := c.tx.UpsertRoleMapping(ctx, companyID, role, accountID, autoCreated); err != nil {
		return err
	}
	c.count++
	return nil
}

// Generate converts one business event into a persisted, balanced journal
// entry, or fails atomically with nothing written. Self-healed mappings
// commit and roll back with the entry they unblocked.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (JournalEntry, error) {
	if err := in.normalize(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec := &txCorrections{tx: tx}
		asm, err := s.assemble(ctx, tx, rec, in)
		if err != nil {
			return err
		}

		period, err := tx.GetOrOpenPeriod(ctx, in.CompanyID, in.Date.Year(), int(in.Date.Month()))
		if err != nil {
			return err
		}
		// Authoritative period gate, re-read in this transaction.
		if err := s.validator.CheckPeriodOpen(period); err != nil {
			return err
		}

		persisted, err := tx.InsertEntry(ctx, JournalEntry{
			CompanyID:   in.CompanyID,
			PeriodID:    period.ID,
			Ref:         uuid.New(),
			Date:        in.Date,
			Currency:    in.Currency,
			Status:      EntryStatusPosted,
			Origin:      in.Origin,
			Memo:        in.Memo,
			TotalDebit:  asm.debit,
			TotalCredit: asm.credit,
			ContentHash: contentHash(in),
		})
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, persisted.ID, asm.lines); err != nil {
			return err
		}
		for i := range asm.traces {
			asm.traces[i].EntryID = persisted.ID
		}
		if err := tx.InsertRuleTraces(ctx, persisted.ID, asm.traces); err != nil {
			return err
		}

		// Defense against silent persistence failures: the committed entry
		// must actually carry lines.
		n, err := tx.CountEntryLines(ctx, persisted.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrPersistenceGlitch
		}

		persisted.Lines = asm.lines
		entry = persisted
		asm.state = statePersisted
		s.observe(asm)
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.GenerationFailed(failureReason(err))
		}
		return JournalEntry{}, err
	}
	if s.metrics != nil {
		s.metrics.EntryPosted()
	}
	s.logger.Info("journal entry posted",
		slog.Int64("entry_id", entry.ID),
		slog.Int64("company_id", entry.CompanyID),
		slog.String("event", in.EventType),
		slog.String("hash", entry.ContentHash),
		slog.String("debit", entry.TotalDebit.StringFixed(2)),
		slog.String("credit", entry.TotalCredit.StringFixed(2)),
	)
	return entry, nil
}

// errSimulationRollback aborts the simulation transaction after a successful
// dry run so nothing it touched can commit, not even a period row opened by
// the period gate.
var errSimulationRollback = errors.New("ledger: simulation rollback")

// Simulate runs the identical computation without persisting anything and
// without recording mapping corrections. Its transaction always rolls back.
func (s *Service) Simulate(ctx context.Context, in GenerateInput) (Simulation, error) {
	if err := in.normalize(); err != nil {
		return Simulation{}, err
	}
	var sim Simulation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		asm, err := s.assemble(ctx, tx, DiscardCorrections{}, in)
		if err != nil {
			return err
		}
		period, err := tx.GetOrOpenPeriod(ctx, in.CompanyID, in.Date.Year(), int(in.Date.Month()))
		if err != nil {
			return err
		}
		if err := s.validator.CheckPeriodOpen(period); err != nil {
			return err
		}
		sim = Simulation{
			EventName:   asm.event.Name,
			Memo:        in.Memo,
			Lines:       asm.lines,
			Traces:      asm.traces,
			TotalDebit:  asm.debit,
			TotalCredit: asm.credit,
			Balanced:    asm.debit.Sub(asm.credit).Abs().LessThanOrEqual(BalanceTolerance),
		}
		return errSimulationRollback
	})
	if err != nil && !errors.Is(err, errSimulationRollback) {
		return Simulation{}, err
	}
	return sim, nil
}

// assemble runs steps 1-5: catalog load, per-rule evaluation, resolution,
// line construction and the balance/emptiness gates.
func (s *Service) assemble(ctx context.Context, tx TxRepository, rec CorrectionRecorder, in GenerateInput) (*assembly, error) {
	asm := &assembly{state: statePending}

	event, err := tx.EventByType(ctx, in.CompanyID, in.EventType)
	if err != nil {
		asm.state = stateAborted
		return nil, err
	}
	rules, err := tx.ListActiveRules(ctx, event.ID)
	if err != nil {
		asm.state = stateAborted
		// A rule that does not decode is broken configuration, not an
		// internal fault.
		if errors.Is(err, ErrBadCondition) {
			return nil, &ConfigurationError{CompanyID: in.CompanyID, EventType: in.EventType, Reason: err.Error()}
		}
		return nil, err
	}
	if len(rules) == 0 {
		asm.state = stateAborted
		return nil, &ConfigurationError{CompanyID: in.CompanyID, EventType: in.EventType, Reason: "no active rules"}
	}

	asm.state = stateAssembling
	asm.event = event
	for _, rule := range rules {
		trace := RuleTrace{
			RuleID:     rule.ID,
			Order:      rule.Order,
			Role:       rule.Role,
			Side:       rule.Side,
			AmountKind: rule.AmountKind,
		}
		if !rule.Condition.Eval(in.Operation) {
			trace.SkipReason = SkipConditionNotMet
			asm.traces = append(asm.traces, trace)
			asm.skipped++
			continue
		}

		resolution, err := s.resolver.Resolve(ctx, tx, rec, in.CompanyID, rule.Role, in.Operation)
		if err != nil {
			asm.state = stateAborted
			return nil, err
		}
		account := resolution.Account
		if err := s.validator.CheckNature(in.CompanyID, rule.Role, account); err != nil {
			asm.state = stateAborted
			return nil, err
		}
		if err := s.validator.CheckActive(rule.Role, account); err != nil {
			asm.state = stateAborted
			return nil, err
		}

		amount, err := computeAmount(rule, in.Operation)
		if err != nil {
			asm.state = stateAborted
			return nil, err
		}
		if amount.IsZero() {
			trace.SkipReason = SkipZeroAmount
			asm.traces = append(asm.traces, trace)
			asm.skipped++
			continue
		}

		line := EntryLine{
			AccountID:   account.ID,
			AccountCode: account.Code,
			Memo:        lineMemo(rule, in, event),
		}
		if rule.Side == SideDebit {
			line.Debit = amount
			asm.debit = asm.debit.Add(amount)
		} else {
			line.Credit = amount
			asm.credit = asm.credit.Add(amount)
		}
		asm.lines = append(asm.lines, line)

		trace.Applied = true
		trace.AccountCode = account.Code
		trace.Amount = amount
		trace.LowConfidence = resolution.LowConfidence()
		asm.traces = append(asm.traces, trace)
		if resolution.Source == SourceHeuristic || resolution.Source == SourceNatureOnly {
			asm.heals++
			s.logger.Warn("role mapping self-healed",
				slog.Int64("company_id", in.CompanyID),
				slog.String("role", string(rule.Role)),
				slog.String("account", account.Code),
				slog.Bool("low_confidence", resolution.LowConfidence()),
			)
		}
		if resolution.LowConfidence() {
			asm.lowConf++
		}
	}

	if err := s.validator.CheckNonEmpty(in.EventType, asm.lines, asm.skipped); err != nil {
		asm.state = stateAborted
		return nil, err
	}
	if err := s.validator.CheckBalance(asm.lines); err != nil {
		asm.state = stateAborted
		return nil, err
	}
	asm.state = stateValidated
	return asm, nil
}

func (s *Service) observe(asm *assembly) {
	if s.metrics == nil {
		return
	}
	for i := 0; i < asm.heals; i++ {
		s.metrics.MappingSelfHealed()
	}
	for i := 0; i < asm.lowConf; i++ {
		s.metrics.LowConfidenceResolution()
	}
}

// Entry fetches a persisted entry with its lines.
func (s *Service) Entry(ctx context.Context, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.EntryWithLines(ctx, entryID)
		return err
	})
	return entry, err
}

func (in *GenerateInput) normalize() error {
	if in.CompanyID == 0 {
		return fmt.Errorf("ledger: company id required")
	}
	if strings.TrimSpace(in.EventType) == "" {
		return fmt.Errorf("ledger: event type required")
	}
	if in.Date.IsZero() {
		return fmt.Errorf("ledger: entry date required")
	}
	if in.Currency == "" {
		in.Currency = "PEN"
	}
	if in.Origin == "" {
		in.Origin = "ENGINE"
	}
	return nil
}

// lineMemo renders the rule's memo template, or the default
// "<event memo> - <amount kind>".
func lineMemo(rule Rule, in GenerateInput, event AccountingEvent) string {
	memo := in.Memo
	if memo == "" {
		memo = event.Name
	}
	if rule.MemoTemplate == "" {
		return fmt.Sprintf("%s - %s", memo, rule.AmountKind)
	}
	r := strings.NewReplacer(
		"{event}", event.Name,
		"{kind}", string(rule.AmountKind),
		"{memo}", memo,
	)
	return r.Replace(rule.MemoTemplate)
}

// contentHash fingerprints the generation inputs deterministically: the
// same event, data, date and company always hash identically.
func contentHash(in GenerateInput) string {
	payload := fmt.Sprintf("%s|%s|%s|%d",
		in.EventType, in.Operation.canonical(), in.Date.Format("2006-01-02"), in.CompanyID)
	sum := blake2b.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// failureReason buckets an error for the failure counter.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrUnmappedRole):
		return "unmapped_role"
	case errors.Is(err, ErrInvalidMapping):
		return "invalid_mapping"
	case errors.Is(err, ErrInactiveAccount):
		return "inactive_account"
	case errors.Is(err, ErrClosedPeriod):
		return "closed_period"
	case errors.Is(err, ErrUnbalancedEntry):
		return "unbalanced"
	case errors.Is(err, ErrEmptyAssembly):
		return "empty"
	default:
		return "internal"
	}
}
