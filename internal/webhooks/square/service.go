package squarewebhook

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streampass/streampass-backend/internal/settlement"
	"github.com/streampass/streampass-backend/pkg/db/models"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
	"github.com/streampass/streampass-backend/pkg/logger"
	"github.com/streampass/streampass-backend/pkg/metrics"
)

type settler interface {
	SettlePaid(ctx context.Context, input settlement.SettlePaidInput) (*settlement.SettlePaidResult, error)
	SettleFailed(ctx context.Context, input settlement.SettleFailedInput) (*models.Purchase, bool, error)
	SettleRefund(ctx context.Context, input settlement.SettleRefundInput) (*settlement.SettleRefundResult, error)
}

type purchaseFinder interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.Purchase, error)
}

// ServiceParams collects the dependencies the webhook consumer needs.
// Metrics may be nil; the recorder is a no-op without a registry.
type ServiceParams struct {
	Settlement settler
	Purchases  purchaseFinder
	Guard      *IdempotencyGuard
	Logger     *logger.Logger
	Metrics    *metrics.WebhookMetrics
}

// Service consumes Square webhook deliveries. Every event passes the
// idempotency guard before any handler runs; a handler error releases
// the guard so the provider's redelivery gets another attempt.
type Service struct {
	settlement settler
	purchases  purchaseFinder
	guard      *IdempotencyGuard
	logg       *logger.Logger
	metrics    *metrics.WebhookMetrics
}

// NewService wires a webhook service from its dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Settlement == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settlement service required")
	}
	if params.Purchases == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase finder required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	return &Service{
		settlement: params.Settlement,
		purchases:  params.Purchases,
		guard:      params.Guard,
		logg:       params.Logger,
		metrics:    params.Metrics,
	}, nil
}

// WebhookEvent is the envelope Square posts to the webhook endpoint.
type WebhookEvent struct {
	EventID   string      `json:"event_id"`
	Type      string      `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
	Data      WebhookData `json:"data"`
}

type WebhookData struct {
	Type   string        `json:"type"`
	ID     string        `json:"id"`
	Object WebhookObject `json:"object"`
}

type WebhookObject struct {
	Payment *PaymentPayload `json:"payment"`
	Refund  *RefundPayload  `json:"refund"`
}

// PaymentPayload mirrors the payment fields this service reads.
type PaymentPayload struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	ReferenceID   string          `json:"reference_id"`
	AmountMoney   *Money          `json:"amount_money"`
	ProcessingFee []ProcessingFee `json:"processing_fee"`
}

// RefundPayload mirrors the refund fields this service reads.
type RefundPayload struct {
	ID          string `json:"id"`
	PaymentID   string `json:"payment_id"`
	Status      string `json:"status"`
	AmountMoney *Money `json:"amount_money"`
}

type ProcessingFee struct {
	AmountMoney *Money `json:"amount_money"`
}

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// HandleEvent processes one delivery. Duplicate deliveries of an event
// already handled return nil without touching any purchase.
func (s *Service) HandleEvent(ctx context.Context, event *WebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}
	if strings.TrimSpace(event.EventID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	eventType := strings.ToLower(strings.TrimSpace(event.Type))
	if eventType == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event type is required")
	}

	started := time.Now()
	duplicate, err := s.guard.CheckAndMark(ctx, eventType, event.EventID)
	if err != nil {
		return err
	}
	if duplicate {
		s.metrics.IncDuplicate(eventType)
		s.log(ctx, event, "duplicate webhook delivery skipped")
		return nil
	}

	if err := s.process(ctx, eventType, event); err != nil {
		s.metrics.IncFailure(eventType)
		if delErr := s.guard.Delete(ctx, eventType, event.EventID); delErr != nil && s.logg != nil {
			s.logg.Error(ctx, "release webhook idempotency mark", delErr)
		}
		return err
	}
	s.metrics.IncProcessed(eventType)
	s.metrics.ObserveDuration(eventType, time.Since(started))
	return nil
}

func (s *Service) process(ctx context.Context, eventType string, event *WebhookEvent) error {
	switch eventType {
	case "payment.updated":
		return s.handlePaymentUpdated(ctx, event)
	case "refund.created", "refund.updated":
		return s.handleRefund(ctx, event)
	default:
		s.log(ctx, event, "unhandled webhook event type ignored")
		return nil
	}
}

func (s *Service) handlePaymentUpdated(ctx context.Context, event *WebhookEvent) error {
	payment := event.Data.Object.Payment
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
	}

	purchase, err := s.findPurchaseForPayment(ctx, payment)
	if err != nil {
		return err
	}
	if purchase == nil {
		s.log(ctx, event, "payment event does not match a purchase")
		return nil
	}

	occurredAt := event.CreatedAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	switch strings.ToUpper(strings.TrimSpace(payment.Status)) {
	case "COMPLETED":
		_, err := s.settlement.SettlePaid(ctx, settlement.SettlePaidInput{
			PurchaseID:        purchase.ID,
			ProviderPaymentID: payment.ID,
			ProcessorFeeCents: processingFeeCents(payment),
			PaidAt:            occurredAt,
		})
		return err
	case "FAILED", "CANCELED":
		_, _, err := s.settlement.SettleFailed(ctx, settlement.SettleFailedInput{
			PurchaseID: purchase.ID,
			FailedAt:   occurredAt,
			Reason:     "gateway reported " + strings.ToLower(payment.Status),
		})
		return err
	default:
		return nil
	}
}

func (s *Service) handleRefund(ctx context.Context, event *WebhookEvent) error {
	refund := event.Data.Object.Refund
	if refund == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund payload missing")
	}
	if strings.TrimSpace(refund.PaymentID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund payment id missing")
	}

	purchase, err := s.purchases.GetByProviderPaymentID(ctx, refund.PaymentID)
	if err != nil {
		return err
	}
	if purchase == nil {
		s.log(ctx, event, "refund event does not match a purchase")
		return nil
	}

	occurredAt := event.CreatedAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	var amount int64
	if refund.AmountMoney != nil {
		amount = refund.AmountMoney.Amount
	}

	_, err = s.settlement.SettleRefund(ctx, settlement.SettleRefundInput{
		PurchaseID:        purchase.ID,
		RefundAmountCents: amount,
		ProviderRefundID:  refund.ID,
		RefundedAt:        occurredAt,
	})
	return err
}

// findPurchaseForPayment prefers the reference id stamped at checkout
// and falls back to the provider payment id recorded on pending rows.
func (s *Service) findPurchaseForPayment(ctx context.Context, payment *PaymentPayload) (*models.Purchase, error) {
	if payment.ReferenceID != "" {
		if purchaseID, err := uuid.Parse(payment.ReferenceID); err == nil {
			purchase, err := s.purchases.Get(ctx, purchaseID)
			if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return nil, err
			}
			if purchase != nil {
				return purchase, nil
			}
		}
	}
	if payment.ID == "" {
		return nil, nil
	}
	return s.purchases.GetByProviderPaymentID(ctx, payment.ID)
}

func processingFeeCents(payment *PaymentPayload) *int64 {
	if len(payment.ProcessingFee) == 0 {
		return nil
	}
	var total int64
	for _, fee := range payment.ProcessingFee {
		if fee.AmountMoney != nil {
			total += fee.AmountMoney.Amount
		}
	}
	if total < 0 {
		total = -total
	}
	return &total
}

func (s *Service) log(ctx context.Context, event *WebhookEvent, msg string) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event_id":   event.EventID,
		"event_type": event.Type,
	})
	s.logg.Info(logCtx, msg)
}
