package enums

import "fmt"

// TransactionKind maps to the transaction_kind_enum enum in Postgres.
type TransactionKind string

const (
	TransactionKindRecharge         TransactionKind = "recharge"
	TransactionKindSessionPayment   TransactionKind = "session_payment"
	TransactionKindGiftPayment      TransactionKind = "gift_payment"
	TransactionKindWithdrawal       TransactionKind = "withdrawal"
	TransactionKindRefund           TransactionKind = "refund"
	TransactionKindManualAdjustment TransactionKind = "manual_adjustment"
)

var validTransactionKinds = []TransactionKind{
	TransactionKindRecharge,
	TransactionKindSessionPayment,
	TransactionKindGiftPayment,
	TransactionKindWithdrawal,
	TransactionKindRefund,
	TransactionKindManualAdjustment,
}

// String implements fmt.Stringer.
func (k TransactionKind) String() string {
	return string(k)
}

// IsValid reports whether the value matches the canonical transaction kind enum.
func (k TransactionKind) IsValid() bool {
	for _, candidate := range validTransactionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseTransactionKind converts raw input into a TransactionKind.
func ParseTransactionKind(value string) (TransactionKind, error) {
	for _, candidate := range validTransactionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction kind %q", value)
}

// TransactionStatus maps to the transaction_status_enum enum in Postgres.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusCompleted,
	TransactionStatusFailed,
	TransactionStatusRefunded,
}

// IsValid reports whether the value matches the canonical transaction status enum.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
