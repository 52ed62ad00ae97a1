package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/quipu-erp/quipu-erp/internal/platform/db"
)

// LedgerIntegrityJob re-verifies the balance invariant over persisted
// entries. The engine never writes an unbalanced entry; this job catches
// out-of-band mutations and silent storage corruption.
type LedgerIntegrityJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

// NewLedgerIntegrityJob initialises the integrity scan handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Pool: pool, Logger: logger}
}

var tolerance = decimal.RequireFromString("0.01")

// Handle executes the integrity scan.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	var drifted, empty int
	// Read-only snapshot so the scan never sees a half-written entry.
	err := db.WithReadTx(ctx, j.Pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
SELECT e.id, e.company_id, coalesce(sum(l.debit),0), coalesce(sum(l.credit),0), count(l.id)
FROM journal_entries e
LEFT JOIN entry_lines l ON l.entry_id = e.id
WHERE ($1 = 0 OR e.company_id = $1)
GROUP BY e.id, e.company_id`, payload.CompanyID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var entryID, companyID int64
			var debit, credit decimal.Decimal
			var lines int
			if err := rows.Scan(&entryID, &companyID, &debit, &credit, &lines); err != nil {
				return err
			}
			if lines == 0 {
				empty++
				j.Logger.Error("entry without lines",
					slog.Int64("entry_id", entryID), slog.Int64("company_id", companyID))
				continue
			}
			if debit.Sub(credit).Abs().GreaterThan(tolerance) {
				drifted++
				j.Logger.Error("entry balance drift",
					slog.Int64("entry_id", entryID),
					slog.Int64("company_id", companyID),
					slog.String("debit", debit.StringFixed(2)),
					slog.String("credit", credit.StringFixed(2)))
			}
		}
		return rows.Err()
	})
	if err != nil {
		return err
	}

	j.Logger.Info("ledger integrity scan finished",
		slog.Int64("company_id", payload.CompanyID),
		slog.Int("drifted", drifted),
		slog.Int("empty", empty))
	return nil
}
