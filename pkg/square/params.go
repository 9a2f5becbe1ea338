package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

// CustomerCreateParams defines the payload to create a Square customer.
type CustomerCreateParams struct {
	Email          string
	PhoneNumber    string
	GivenName      string
	FamilyName     string
	ReferenceID    string
	Note           string
	IdempotencyKey string
}

func (p CustomerCreateParams) toSquareRequest(idempotencyKey string) *sq.CreateCustomerRequest {
	req := &sq.CreateCustomerRequest{
		IdempotencyKey: ptrString(idempotencyKey),
	}
	if trimmed := strings.TrimSpace(p.Email); trimmed != "" {
		req.EmailAddress = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.PhoneNumber); trimmed != "" {
		req.PhoneNumber = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.GivenName); trimmed != "" {
		req.GivenName = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.FamilyName); trimmed != "" {
		req.FamilyName = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		req.ReferenceID = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.Note); trimmed != "" {
		req.Note = ptrString(trimmed)
	}
	return req
}

// PaymentCreateParams encapsulates the inputs for a Square payment.
type PaymentCreateParams struct {
	AmountCents    int64
	Currency       string
	LocationID     string
	CustomerID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
}

func (p PaymentCreateParams) toSquareRequest(idempotencyKey string) *sq.CreatePaymentRequest {
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		LocationID:     ptrString(p.LocationID),
		CustomerID:     ptrString(p.CustomerID),
		SourceID:       p.SourceID,
	}
	if p.AmountCents > 0 {
		req.AmountMoney = moneyPtr(p.AmountCents, p.Currency)
	}
	if trimmed := strings.TrimSpace(p.Note); trimmed != "" {
		req.Note = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		req.ReferenceID = ptrString(trimmed)
	}
	return req
}

// RefundCreateParams groups the inputs for refunding a captured payment.
type RefundCreateParams struct {
	PaymentID      string
	AmountCents    int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

func (p RefundCreateParams) toSquareRequest(idempotencyKey string) *sq.RefundPaymentRequest {
	req := &sq.RefundPaymentRequest{
		IdempotencyKey: idempotencyKey,
		PaymentID:      ptrString(p.PaymentID),
	}
	if p.AmountCents > 0 {
		req.AmountMoney = moneyPtr(p.AmountCents, p.Currency)
	}
	if trimmed := strings.TrimSpace(p.Reason); trimmed != "" {
		req.Reason = ptrString(trimmed)
	}
	return req
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
