package enums

import "fmt"

// ServiceType maps to the service_type_enum enum in Postgres and selects
// which per-minute rate a session bills against.
type ServiceType string

const (
	ServiceTypeChat  ServiceType = "chat"
	ServiceTypeVoice ServiceType = "voice"
	ServiceTypeVideo ServiceType = "video"
)

var validServiceTypes = []ServiceType{
	ServiceTypeChat,
	ServiceTypeVoice,
	ServiceTypeVideo,
}

// String implements fmt.Stringer.
func (s ServiceType) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical service type enum.
func (s ServiceType) IsValid() bool {
	for _, candidate := range validServiceTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseServiceType converts raw input into a ServiceType.
func ParseServiceType(value string) (ServiceType, error) {
	for _, candidate := range validServiceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid service type %q", value)
}
