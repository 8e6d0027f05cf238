package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateAccount     OutboxAggregateType = "account"
	AggregateSession     OutboxAggregateType = "session"
	AggregateGift        OutboxAggregateType = "gift"
	AggregateWithdrawal  OutboxAggregateType = "withdrawal"
	AggregateTransaction OutboxAggregateType = "transaction"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateAccount,
	AggregateSession,
	AggregateGift,
	AggregateWithdrawal,
	AggregateTransaction,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventWalletRecharged      OutboxEventType = "wallet_recharged"
	EventSessionStarted       OutboxEventType = "session_started"
	EventSessionSettled       OutboxEventType = "session_settled"
	EventSessionCancelled     OutboxEventType = "session_cancelled"
	EventGiftSent             OutboxEventType = "gift_sent"
	EventWithdrawalRequested  OutboxEventType = "withdrawal_requested"
	EventWithdrawalProcessing OutboxEventType = "withdrawal_processing"
	EventWithdrawalCompleted  OutboxEventType = "withdrawal_completed"
	EventWithdrawalRejected   OutboxEventType = "withdrawal_rejected"
	EventBalanceAdjusted      OutboxEventType = "balance_adjusted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventWalletRecharged,
	EventSessionStarted,
	EventSessionSettled,
	EventSessionCancelled,
	EventGiftSent,
	EventWithdrawalRequested,
	EventWithdrawalProcessing,
	EventWithdrawalCompleted,
	EventWithdrawalRejected,
	EventBalanceAdjusted,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
