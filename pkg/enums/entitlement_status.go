package enums

import "fmt"

// EntitlementStatus maps to the entitlement_status_enum enum in Postgres.
type EntitlementStatus string

const (
	EntitlementStatusActive  EntitlementStatus = "active"
	EntitlementStatusRevoked EntitlementStatus = "revoked"
)

var validEntitlementStatuses = []EntitlementStatus{
	EntitlementStatusActive,
	EntitlementStatusRevoked,
}

// IsValid reports whether the value matches the canonical entitlement status enum.
func (s EntitlementStatus) IsValid() bool {
	for _, candidate := range validEntitlementStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseEntitlementStatus converts raw input into EntitlementStatus.
func ParseEntitlementStatus(value string) (EntitlementStatus, error) {
	for _, candidate := range validEntitlementStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entitlement status %q", value)
}
