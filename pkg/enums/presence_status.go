package enums

import "fmt"

// PresenceStatus describes a host's redis-backed availability. A missing
// presence key reads as PresenceStatusOffline.
type PresenceStatus string

const (
	PresenceStatusOnline  PresenceStatus = "online"
	PresenceStatusBusy    PresenceStatus = "busy"
	PresenceStatusOffline PresenceStatus = "offline"
)

var validPresenceStatuses = []PresenceStatus{
	PresenceStatusOnline,
	PresenceStatusBusy,
	PresenceStatusOffline,
}

// String implements fmt.Stringer.
func (p PresenceStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PresenceStatus.
func (p PresenceStatus) IsValid() bool {
	for _, candidate := range validPresenceStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePresenceStatus converts raw input into a PresenceStatus.
func ParsePresenceStatus(value string) (PresenceStatus, error) {
	for _, candidate := range validPresenceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid presence status %q", value)
}
