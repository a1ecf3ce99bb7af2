package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskContactNotify emails the admin about a new contact message.
	TaskContactNotify = "contact:notify"
	// TaskLedgerOverdueScan emails a summary of overdue debts.
	TaskLedgerOverdueScan = "ledger:overdue-scan"
	// TaskIdempotencyCleanup purges old idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency-cleanup"
)

// ContactNotifyPayload identifies the message to announce.
type ContactNotifyPayload struct {
	MessageID int64 `json:"message_id"`
}

// NewContactNotifyTask constructs a contact notification task.
func NewContactNotifyTask(messageID int64) (*asynq.Task, error) {
	if messageID <= 0 {
		return nil, fmt.Errorf("jobs: invalid contact message id %d", messageID)
	}
	data, err := json.Marshal(ContactNotifyPayload{MessageID: messageID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskContactNotify, data), nil
}

// OverdueScanPayload configures an overdue scan. An empty AsOf means today.
type OverdueScanPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// NewOverdueScanTask constructs an overdue scan task.
func NewOverdueScanTask(asOf string) (*asynq.Task, error) {
	if asOf != "" {
		if _, err := time.Parse(time.DateOnly, asOf); err != nil {
			return nil, fmt.Errorf("jobs: invalid as_of %q: %w", asOf, err)
		}
	}
	data, err := json.Marshal(OverdueScanPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerOverdueScan, data), nil
}

// IdempotencyCleanupPayload configures key retention.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs a cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
