package enums

import "fmt"

// LedgerReferenceType identifies the entity a ledger entry points back to.
type LedgerReferenceType string

const (
	LedgerReferencePurchase LedgerReferenceType = "purchase"
	LedgerReferenceRefund   LedgerReferenceType = "refund"
	LedgerReferencePayout   LedgerReferenceType = "payout"
)

var validLedgerReferenceTypes = []LedgerReferenceType{
	LedgerReferencePurchase,
	LedgerReferenceRefund,
	LedgerReferencePayout,
}

// IsValid reports whether the value matches the canonical reference enum.
func (t LedgerReferenceType) IsValid() bool {
	for _, candidate := range validLedgerReferenceTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerReferenceType converts raw input into LedgerReferenceType.
func ParseLedgerReferenceType(value string) (LedgerReferenceType, error) {
	for _, candidate := range validLedgerReferenceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger reference type %q", value)
}
