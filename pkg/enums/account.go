package enums

import "fmt"

// AccountRole maps to the account_role_enum enum in Postgres.
type AccountRole string

const (
	AccountRoleUser  AccountRole = "user"
	AccountRoleHost  AccountRole = "host"
	AccountRoleAdmin AccountRole = "admin"
)

var validAccountRoles = []AccountRole{
	AccountRoleUser,
	AccountRoleHost,
	AccountRoleAdmin,
}

// String implements fmt.Stringer.
func (r AccountRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known AccountRole.
func (r AccountRole) IsValid() bool {
	for _, candidate := range validAccountRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseAccountRole converts raw input into an AccountRole.
func ParseAccountRole(value string) (AccountRole, error) {
	for _, candidate := range validAccountRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account role %q", value)
}

// AccountStatus maps to the account_status_enum enum in Postgres.
type AccountStatus string

const (
	AccountStatusActive      AccountStatus = "active"
	AccountStatusDeactivated AccountStatus = "deactivated"
)

var validAccountStatuses = []AccountStatus{
	AccountStatusActive,
	AccountStatusDeactivated,
}

// IsValid reports whether the value is a known AccountStatus.
func (s AccountStatus) IsValid() bool {
	for _, candidate := range validAccountStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseAccountStatus converts raw input into an AccountStatus.
func ParseAccountStatus(value string) (AccountStatus, error) {
	for _, candidate := range validAccountStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account status %q", value)
}
