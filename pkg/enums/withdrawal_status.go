package enums

import "fmt"

// WithdrawalStatus maps to the withdrawal_status_enum enum in Postgres.
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusRejected   WithdrawalStatus = "rejected"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
)

var validWithdrawalStatuses = []WithdrawalStatus{
	WithdrawalStatusPending,
	WithdrawalStatusProcessing,
	WithdrawalStatusCompleted,
	WithdrawalStatusRejected,
	WithdrawalStatusFailed,
}

// String implements fmt.Stringer.
func (s WithdrawalStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical withdrawal status enum.
func (s WithdrawalStatus) IsValid() bool {
	for _, candidate := range validWithdrawalStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseWithdrawalStatus converts raw input into a WithdrawalStatus.
func ParseWithdrawalStatus(value string) (WithdrawalStatus, error) {
	for _, candidate := range validWithdrawalStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid withdrawal status %q", value)
}
