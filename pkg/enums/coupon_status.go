package enums

import "fmt"

// CouponStatus maps to the coupon_status_enum enum in Postgres.
type CouponStatus string

const (
	CouponStatusActive   CouponStatus = "active"
	CouponStatusDisabled CouponStatus = "disabled"
)

var validCouponStatuses = []CouponStatus{
	CouponStatusActive,
	CouponStatusDisabled,
}

// IsValid reports whether the value matches the canonical coupon status enum.
func (s CouponStatus) IsValid() bool {
	for _, candidate := range validCouponStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCouponStatus converts raw input into CouponStatus.
func ParseCouponStatus(value string) (CouponStatus, error) {
	for _, candidate := range validCouponStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coupon status %q", value)
}
