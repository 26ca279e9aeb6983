package constants

// SessionStatus is the lifecycle of an extraction session row.
type SessionStatus string

// Stable values (store these exact strings in DB).
const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusComplete   SessionStatus = "complete"
	SessionStatusFailed     SessionStatus = "failed"
)

// ValidationStatus is the review state of a single field validation.
type ValidationStatus string

const (
	ValidationStatusPending  ValidationStatus = "pending"
	ValidationStatusVerified ValidationStatus = "verified"
	ValidationStatusRejected ValidationStatus = "rejected"
)

// BatchStatus is the terminal outcome of one model call.
type BatchStatus string

const (
	BatchStatusSucceeded BatchStatus = "succeeded"
	BatchStatusFailed    BatchStatus = "failed"
)

// SessionStatuses, ValidationStatuses and BatchStatuses feed the schema enum validators.
var (
	SessionStatuses    = []string{string(SessionStatusInProgress), string(SessionStatusComplete), string(SessionStatusFailed)}
	ValidationStatuses = []string{string(ValidationStatusPending), string(ValidationStatusVerified), string(ValidationStatusRejected)}
	BatchStatuses      = []string{string(BatchStatusSucceeded), string(BatchStatusFailed)}
)
