package enums

import "fmt"

// CouponDiscountType maps to the coupon_discount_type_enum enum in Postgres.
type CouponDiscountType string

const (
	CouponDiscountPercentage CouponDiscountType = "percentage"
	CouponDiscountFixedCents CouponDiscountType = "fixed_cents"
)

var validCouponDiscountTypes = []CouponDiscountType{
	CouponDiscountPercentage,
	CouponDiscountFixedCents,
}

// IsValid reports whether the value matches the canonical discount type enum.
func (t CouponDiscountType) IsValid() bool {
	for _, candidate := range validCouponDiscountTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseCouponDiscountType converts raw input into CouponDiscountType.
func ParseCouponDiscountType(value string) (CouponDiscountType, error) {
	for _, candidate := range validCouponDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coupon discount type %q", value)
}
