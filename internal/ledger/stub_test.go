package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// memState is the in-memory fixture backing repository stubs. WithTx works
// on a clone and swaps it in only on success, mirroring transactional
// rollback.
type memState struct {
	events   []AccountingEvent
	rules    []Rule
	accounts []Account
	mappings map[string]RoleMapping
	periods  map[string]Period
	entries  []JournalEntry
	lines    map[int64][]EntryLine
	traces   map[int64][]RuleTrace
	nextID   int64

	listActiveCalls int
	dropLines       bool
}

func newMemState() *memState {
	return &memState{
		mappings: map[string]RoleMapping{},
		periods:  map[string]Period{},
		lines:    map[int64][]EntryLine{},
		traces:   map[int64][]RuleTrace{},
		nextID:   1000,
	}
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

func mappingKey(companyID int64, role Role) string {
	return fmt.Sprintf("%d|%s", companyID, role)
}

func periodKey(companyID int64, year, month int) string {
	return fmt.Sprintf("%d|%d|%d", companyID, year, month)
}

func (s *memState) clone() *memState {
	out := &memState{
		events:          append([]AccountingEvent(nil), s.events...),
		rules:           append([]Rule(nil), s.rules...),
		accounts:        append([]Account(nil), s.accounts...),
		mappings:        map[string]RoleMapping{},
		periods:         map[string]Period{},
		entries:         append([]JournalEntry(nil), s.entries...),
		lines:           map[int64][]EntryLine{},
		traces:          map[int64][]RuleTrace{},
		nextID:          s.nextID,
		listActiveCalls: s.listActiveCalls,
		dropLines:       s.dropLines,
	}
	for k, v := range s.mappings {
		out.mappings[k] = v
	}
	for k, v := range s.periods {
		out.periods[k] = v
	}
	for k, v := range s.lines {
		out.lines[k] = append([]EntryLine(nil), v...)
	}
	for k, v := range s.traces {
		out.traces[k] = append([]RuleTrace(nil), v...)
	}
	return out
}

func (s *memState) addAccount(companyID int64, code, name string, nature Nature, active bool) Account {
	a := Account{ID: s.id(), CompanyID: companyID, Code: code, Name: name, Nature: nature, IsActive: active}
	s.accounts = append(s.accounts, a)
	sort.Slice(s.accounts, func(i, j int) bool { return s.accounts[i].Code < s.accounts[j].Code })
	return a
}

func (s *memState) addEvent(companyID int64, eventType, name string) AccountingEvent {
	ev := AccountingEvent{ID: s.id(), CompanyID: companyID, Type: eventType, Name: name, IsActive: true}
	s.events = append(s.events, ev)
	return ev
}

func (s *memState) addRule(eventID int64, order int, side Side, role Role, kind AmountKind, params RuleParams) Rule {
	r := Rule{ID: s.id(), EventID: eventID, Order: order, Side: side, Role: role, AmountKind: kind, Params: params, IsActive: true}
	s.rules = append(s.rules, r)
	return r
}

func (s *memState) mapRole(companyID int64, role Role, accountID int64) {
	s.mappings[mappingKey(companyID, role)] = RoleMapping{
		ID: s.id(), CompanyID: companyID, Role: role, AccountID: accountID, IsActive: true,
	}
}

func (s *memState) openPeriod(companyID int64, year, month int) {
	s.periods[periodKey(companyID, year, month)] = Period{
		ID: s.id(), CompanyID: companyID, Year: year, Month: month, Status: PeriodStatusOpen,
	}
}

func (s *memState) closePeriod(companyID int64, year, month int) {
	p := s.periods[periodKey(companyID, year, month)]
	p.Status = PeriodStatusClosed
	if p.ID == 0 {
		p = Period{ID: s.id(), CompanyID: companyID, Year: year, Month: month, Status: PeriodStatusClosed}
	}
	s.periods[periodKey(companyID, year, month)] = p
}

// memRepo implements RepositoryPort over memState.
type memRepo struct {
	state *memState
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	work := r.state.clone()
	if err := fn(ctx, &memTx{s: work}); err != nil {
		return err
	}
	r.state = work
	return nil
}

// memTx implements TxRepository.
type memTx struct {
	s *memState
}

func (t *memTx) EventByType(ctx context.Context, companyID int64, eventType string) (AccountingEvent, error) {
	for _, ev := range t.s.events {
		if ev.CompanyID == companyID && ev.Type == eventType && ev.IsActive {
			return ev, nil
		}
	}
	return AccountingEvent{}, &ConfigurationError{CompanyID: companyID, EventType: eventType, Reason: "event missing or inactive"}
}

func (t *memTx) ListActiveRules(ctx context.Context, eventID int64) ([]Rule, error) {
	var out []Rule
	for _, r := range t.s.rules {
		if r.EventID == eventID && r.IsActive {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) AccountByID(ctx context.Context, id int64) (Account, error) {
	for _, a := range t.s.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (t *memTx) AccountByCode(ctx context.Context, companyID int64, code string) (Account, error) {
	for _, a := range t.s.accounts {
		if a.CompanyID == companyID && a.Code == code {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (t *memTx) ListActiveAccounts(ctx context.Context, companyID int64) ([]Account, error) {
	t.s.listActiveCalls++
	var out []Account
	for _, a := range t.s.accounts {
		if a.CompanyID == companyID && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (t *memTx) RoleMapping(ctx context.Context, companyID int64, role Role) (RoleMapping, error) {
	m, ok := t.s.mappings[mappingKey(companyID, role)]
	if !ok || !m.IsActive {
		return RoleMapping{}, ErrMappingNotFound
	}
	return m, nil
}

func (t *memTx) UpsertRoleMapping(ctx context.Context, companyID int64, role Role, accountID int64, autoCreated bool) error {
	key := mappingKey(companyID, role)
	m, ok := t.s.mappings[key]
	if !ok {
		m = RoleMapping{ID: t.s.id(), CompanyID: companyID, Role: role}
	}
	m.AccountID = accountID
	m.IsActive = true
	m.AutoCreated = autoCreated
	m.UpdatedAt = time.Now()
	t.s.mappings[key] = m
	return nil
}

func (t *memTx) GetOrOpenPeriod(ctx context.Context, companyID int64, year, month int) (Period, error) {
	key := periodKey(companyID, year, month)
	if p, ok := t.s.periods[key]; ok {
		return p, nil
	}
	p := Period{ID: t.s.id(), CompanyID: companyID, Year: year, Month: month, Status: PeriodStatusOpen}
	t.s.periods[key] = p
	return p, nil
}

func (t *memTx) InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	entry.ID = t.s.id()
	entry.CreatedAt = time.Now()
	t.s.entries = append(t.s.entries, entry)
	return entry, nil
}

func (t *memTx) InsertLines(ctx context.Context, entryID int64, lines []EntryLine) error {
	if t.s.dropLines {
		return nil
	}
	for _, line := range lines {
		line.ID = t.s.id()
		line.EntryID = entryID
		t.s.lines[entryID] = append(t.s.lines[entryID], line)
	}
	return nil
}

func (t *memTx) InsertRuleTraces(ctx context.Context, entryID int64, traces []RuleTrace) error {
	t.s.traces[entryID] = append(t.s.traces[entryID], traces...)
	return nil
}

func (t *memTx) CountEntryLines(ctx context.Context, entryID int64) (int, error) {
	return len(t.s.lines[entryID]), nil
}

func (t *memTx) EntryWithLines(ctx context.Context, entryID int64) (JournalEntry, error) {
	for _, e := range t.s.entries {
		if e.ID == entryID {
			e.Lines = append([]EntryLine(nil), t.s.lines[entryID]...)
			return e, nil
		}
	}
	return JournalEntry{}, ErrEntryNotFound
}
