package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quipu-erp/quipu-erp/internal/ledger"
)

// MappingHealthJob reports role mappings pointing at inactive accounts or
// accounts whose nature no longer matches the role. The engine self-heals
// these at posting time; the scan surfaces them to operators beforehand.
type MappingHealthJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

// NewMappingHealthJob initialises the mapping health handler.
func NewMappingHealthJob(pool *pgxpool.Pool, logger *slog.Logger) *MappingHealthJob {
	return &MappingHealthJob{Pool: pool, Logger: logger}
}

// Handle executes the mapping health scan.
func (j *MappingHealthJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("mapping health: handler not configured")
	}
	var payload MappingHealthPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	roleNatures := ledger.RoleNatures()
	rows, err := j.Pool.Query(ctx, `
SELECT m.company_id, m.role, a.code, a.nature, a.is_active
FROM role_mappings m
JOIN accounts a ON a.id = m.account_id
WHERE m.is_active AND ($1 = 0 OR m.company_id = $1)`, payload.CompanyID)
	if err != nil {
		return err
	}
	defer rows.Close()

	var findings int
	for rows.Next() {
		var companyID int64
		var role, code, nature string
		var active bool
		if err := rows.Scan(&companyID, &role, &code, &nature, &active); err != nil {
			return err
		}
		if !active {
			findings++
			j.Logger.Warn("role mapped to inactive account",
				slog.Int64("company_id", companyID),
				slog.String("role", role),
				slog.String("account", code))
			continue
		}
		if want, ok := roleNatures[ledger.Role(role)]; ok && string(want) != nature {
			findings++
			j.Logger.Warn("role mapped to account of wrong nature",
				slog.Int64("company_id", companyID),
				slog.String("role", role),
				slog.String("account", code),
				slog.String("want", string(want)),
				slog.String("got", nature))
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	j.Logger.Info("mapping health scan finished",
		slog.Int64("company_id", payload.CompanyID),
		slog.Int("findings", findings))
	return nil
}
