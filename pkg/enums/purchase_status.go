package enums

import "fmt"

// PurchaseStatus maps to the purchase_status_enum enum in Postgres.
type PurchaseStatus string

const (
	PurchaseStatusCreated  PurchaseStatus = "created"
	PurchaseStatusPaid     PurchaseStatus = "paid"
	PurchaseStatusFailed   PurchaseStatus = "failed"
	PurchaseStatusRefunded PurchaseStatus = "refunded"
)

var validPurchaseStatuses = []PurchaseStatus{
	PurchaseStatusCreated,
	PurchaseStatusPaid,
	PurchaseStatusFailed,
	PurchaseStatusRefunded,
}

// String implements fmt.Stringer.
func (s PurchaseStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical purchase status enum.
func (s PurchaseStatus) IsValid() bool {
	for _, candidate := range validPurchaseStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions besides refund.
func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseStatusFailed || s == PurchaseStatusRefunded
}

// ParsePurchaseStatus converts raw input into a PurchaseStatus.
func ParsePurchaseStatus(value string) (PurchaseStatus, error) {
	for _, candidate := range validPurchaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase status %q", value)
}
