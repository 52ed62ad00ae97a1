package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quipu-erp/quipu-erp/internal/platform/db"
)

var (
	// ErrMappingNotFound indicates no active (company, role) mapping row.
	ErrMappingNotFound = errors.New("ledger: role mapping not found")
	// ErrAccountNotFound indicates a missing chart of accounts row.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrEntryNotFound indicates a missing journal entry.
	ErrEntryNotFound = errors.New("ledger: journal entry not found")
)

// Repository persists engine entities through Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn within a repeatable-read transaction. Every read and
// write of one Generate call flows through the same transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) EventByType(ctx context.Context, companyID int64, eventType string) (AccountingEvent, error) {
	var ev AccountingEvent
	err := r.tx.QueryRow(ctx, `SELECT id, company_id, type, name, category, is_active
FROM accounting_events WHERE company_id=$1 AND type=$2 AND is_active`, companyID, eventType).
		Scan(&ev.ID, &ev.CompanyID, &ev.Type, &ev.Name, &ev.Category, &ev.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountingEvent{}, &ConfigurationError{CompanyID: companyID, EventType: eventType, Reason: "event missing or inactive"}
		}
		return AccountingEvent{}, err
	}
	return ev, nil
}

// ListActiveRules returns active rules ordered by (ord, id); the id
// tie-break preserves insertion order so evaluation is reproducible.
func (r *txRepository) ListActiveRules(ctx context.Context, eventID int64) ([]Rule, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, event_id, ord, condition, side, role, amount_kind, params, memo_template, is_active
FROM posting_rules WHERE event_id=$1 AND is_active ORDER BY ord, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []Rule
	for rows.Next() {
		var rule Rule
		var condition, params []byte
		err := rows.Scan(&rule.ID, &rule.EventID, &rule.Order, &condition, &rule.Side, &rule.Role,
			&rule.AmountKind, &params, &rule.MemoTemplate, &rule.IsActive)
		if err != nil {
			return nil, err
		}
		if rule.Condition, err = ParseCondition(condition); err != nil {
			return nil, err
		}
		if rule.Params, err = DecodeRuleParams(rule.AmountKind, params); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *txRepository) AccountByID(ctx context.Context, id int64) (Account, error) {
	return r.scanAccount(r.tx.QueryRow(ctx, `SELECT id, company_id, code, name, nature, is_active
FROM accounts WHERE id=$1`, id))
}

func (r *txRepository) AccountByCode(ctx context.Context, companyID int64, code string) (Account, error) {
	return r.scanAccount(r.tx.QueryRow(ctx, `SELECT id, company_id, code, name, nature, is_active
FROM accounts WHERE company_id=$1 AND code=$2`, companyID, code))
}

func (r *txRepository) scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Nature, &a.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) ListActiveAccounts(ctx context.Context, companyID int64) ([]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, company_id, code, name, nature, is_active
FROM accounts WHERE company_id=$1 AND is_active ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Nature, &a.IsActive); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *txRepository) RoleMapping(ctx context.Context, companyID int64, role Role) (RoleMapping, error) {
	var m RoleMapping
	err := r.tx.QueryRow(ctx, `SELECT id, company_id, role, account_id, is_active, auto_created, updated_at
FROM role_mappings WHERE company_id=$1 AND role=$2 AND is_active`, companyID, role).
		Scan(&m.ID, &m.CompanyID, &m.Role, &m.AccountID, &m.IsActive, &m.AutoCreated, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RoleMapping{}, ErrMappingNotFound
		}
		return RoleMapping{}, err
	}
	return m, nil
}

// UpsertRoleMapping writes a self-healed mapping. The upsert is idempotent:
// concurrent heals for the same (company, role) settle last-writer-wins.
func (r *txRepository) UpsertRoleMapping(ctx context.Context, companyID int64, role Role, accountID int64, autoCreated bool) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO role_mappings (company_id, role, account_id, is_active, auto_created)
VALUES ($1,$2,$3,true,$4)
ON CONFLICT (company_id, role) DO UPDATE SET account_id=EXCLUDED.account_id, is_active=true, auto_created=EXCLUDED.auto_created, updated_at=now()`,
		companyID, role, accountID, autoCreated)
	return err
}

func (r *txRepository) GetOrOpenPeriod(ctx context.Context, companyID int64, year, month int) (Period, error) {
	var p Period
	err := r.tx.QueryRow(ctx, `INSERT INTO periods (company_id, year, month, status)
VALUES ($1,$2,$3,'OPEN')
ON CONFLICT (company_id, year, month) DO UPDATE SET year=EXCLUDED.year
RETURNING id, company_id, year, month, status`, companyID, year, month).
		Scan(&p.ID, &p.CompanyID, &p.Year, &p.Month, &p.Status)
	if err != nil {
		return Period{}, err
	}
	return p, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (company_id, period_id, ref, date, currency, status, origin, memo, total_debit, total_credit, content_hash)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id, created_at`,
		entry.CompanyID, entry.PeriodID, entry.Ref, entry.Date, entry.Currency, entry.Status,
		entry.Origin, entry.Memo, entry.TotalDebit, entry.TotalCredit, entry.ContentHash)
	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []EntryLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO entry_lines (entry_id, account_id, debit, credit, memo)
VALUES ($1,$2,$3,$4,$5)`, entryID, line.AccountID, line.Debit, line.Credit, line.Memo); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) InsertRuleTraces(ctx context.Context, entryID int64, traces []RuleTrace) error {
	for _, t := range traces {
		if _, err := r.tx.Exec(ctx, `INSERT INTO rule_traces (entry_id, rule_id, ord, role, side, amount_kind, account_code, amount, applied, skip_reason, low_confidence)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			entryID, t.RuleID, t.Order, t.Role, t.Side, t.AmountKind, t.AccountCode, t.Amount, t.Applied, t.SkipReason, t.LowConfidence); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) CountEntryLines(ctx context.Context, entryID int64) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT count(*) FROM entry_lines WHERE entry_id=$1`, entryID).Scan(&n)
	return n, err
}

func (r *txRepository) EntryWithLines(ctx context.Context, entryID int64) (JournalEntry, error) {
	var e JournalEntry
	err := r.tx.QueryRow(ctx, `SELECT id, company_id, period_id, ref, date, currency, status, origin, memo, total_debit, total_credit, content_hash, created_at
FROM journal_entries WHERE id=$1`, entryID).
		Scan(&e.ID, &e.CompanyID, &e.PeriodID, &e.Ref, &e.Date, &e.Currency, &e.Status, &e.Origin,
			&e.Memo, &e.TotalDebit, &e.TotalCredit, &e.ContentHash, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT l.id, l.entry_id, l.account_id, a.code, l.debit, l.credit, l.memo
FROM entry_lines l JOIN accounts a ON a.id=l.account_id WHERE l.entry_id=$1 ORDER BY l.id`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line EntryLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.AccountCode, &line.Debit, &line.Credit, &line.Memo); err != nil {
			return JournalEntry{}, err
		}
		e.Lines = append(e.Lines, line)
	}
	return e, rows.Err()
}
