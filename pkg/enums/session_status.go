package enums

import "fmt"

// SessionStatus maps to the session_status_enum enum in Postgres.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusEnded     SessionStatus = "ended"
	SessionStatusCancelled SessionStatus = "cancelled"
	SessionStatusFailed    SessionStatus = "failed"
)

var validSessionStatuses = []SessionStatus{
	SessionStatusActive,
	SessionStatusEnded,
	SessionStatusCancelled,
	SessionStatusFailed,
}

// String implements fmt.Stringer.
func (s SessionStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further settlement may run against the session.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusEnded || s == SessionStatusCancelled || s == SessionStatusFailed
}

// IsValid reports whether the value matches the canonical session status enum.
func (s SessionStatus) IsValid() bool {
	for _, candidate := range validSessionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSessionStatus converts raw input into a SessionStatus.
func ParseSessionStatus(value string) (SessionStatus, error) {
	for _, candidate := range validSessionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid session status %q", value)
}
