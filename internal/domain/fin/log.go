package fin

import (
	"time"

	"github.com/google/uuid"
)

// LogResult is the severity of an action log entry.
type LogResult string

const (
	LogInfo    LogResult = "INFO"
	LogSuccess LogResult = "SUCCESS"
	LogWarning LogResult = "WARNING"
	LogError   LogResult = "ERROR"
	LogFatal   LogResult = "FATAL"
)

// IsFailure reports whether the result marks a failed action.
func (r LogResult) IsFailure() bool {
	return r == LogError || r == LogFatal
}

// LogEntry is one append-only record of an action against a payment service.
type LogEntry struct {
	ID        uuid.UUID
	Date      time.Time
	ServiceID uuid.UUID
	Action    string
	Result    LogResult
	Reason    string
}
