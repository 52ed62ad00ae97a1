package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity re-checks that every posted entry balances.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskMappingHealth scans role mappings for misconfigurations before
	// they surface as posting failures.
	TaskMappingHealth = "ledger:mapping_health"
)

// LedgerIntegrityPayload scopes an integrity scan.
type LedgerIntegrityPayload struct {
	// CompanyID limits the scan to one company; zero scans all.
	CompanyID int64 `json:"company_id"`
}

// NewLedgerIntegrityTask constructs an integrity scan task.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// MappingHealthPayload scopes a mapping health scan.
type MappingHealthPayload struct {
	CompanyID int64 `json:"company_id"`
}

// NewMappingHealthTask constructs a mapping health scan task.
func NewMappingHealthTask(payload MappingHealthPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMappingHealth, data), nil
}
