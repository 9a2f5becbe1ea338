package squarewebhook

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/streampass/streampass-backend/internal/settlement"
	"github.com/streampass/streampass-backend/pkg/db/models"
	"github.com/streampass/streampass-backend/pkg/enums"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
)

type memoryStore struct {
	values map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	return m.values[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = "1"
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "sp:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

type stubSettler struct {
	paidCalls   []settlement.SettlePaidInput
	failedCalls []settlement.SettleFailedInput
	refundCalls []settlement.SettleRefundInput
	paidErr     error
}

func (s *stubSettler) SettlePaid(_ context.Context, input settlement.SettlePaidInput) (*settlement.SettlePaidResult, error) {
	if s.paidErr != nil {
		return nil, s.paidErr
	}
	s.paidCalls = append(s.paidCalls, input)
	return &settlement.SettlePaidResult{Settled: true}, nil
}

func (s *stubSettler) SettleFailed(_ context.Context, input settlement.SettleFailedInput) (*models.Purchase, bool, error) {
	s.failedCalls = append(s.failedCalls, input)
	return &models.Purchase{ID: input.PurchaseID}, true, nil
}

func (s *stubSettler) SettleRefund(_ context.Context, input settlement.SettleRefundInput) (*settlement.SettleRefundResult, error) {
	s.refundCalls = append(s.refundCalls, input)
	return &settlement.SettleRefundResult{Settled: true}, nil
}

type stubPurchases struct {
	purchase *models.Purchase
}

func (s *stubPurchases) Get(_ context.Context, id uuid.UUID) (*models.Purchase, error) {
	if s.purchase != nil && s.purchase.ID == id {
		return s.purchase, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
}

func (s *stubPurchases) GetByProviderPaymentID(_ context.Context, providerPaymentID string) (*models.Purchase, error) {
	if s.purchase != nil && s.purchase.ProviderPaymentID != nil && *s.purchase.ProviderPaymentID == providerPaymentID {
		return s.purchase, nil
	}
	return nil, nil
}

func newTestService(t *testing.T, settler *stubSettler, purchases *stubPurchases) *Service {
	t.Helper()
	guard, err := NewIdempotencyGuard(newMemoryStore(), 24*time.Hour, "webhook")
	if err != nil {
		t.Fatalf("NewIdempotencyGuard: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Settlement: settler,
		Purchases:  purchases,
		Guard:      guard,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func pendingPurchase() *models.Purchase {
	paymentID := "pay_1"
	return &models.Purchase{
		ID:                uuid.New(),
		GameID:            uuid.New(),
		ViewerID:          uuid.New(),
		Status:            enums.PurchaseStatusCreated,
		ProviderPaymentID: &paymentID,
	}
}

func paymentEvent(eventID, status string, purchase *models.Purchase) *WebhookEvent {
	return &WebhookEvent{
		EventID:   eventID,
		Type:      "payment.updated",
		CreatedAt: time.Now().UTC(),
		Data: WebhookData{
			Type: "payment",
			ID:   "pay_1",
			Object: WebhookObject{
				Payment: &PaymentPayload{
					ID:          "pay_1",
					Status:      status,
					ReferenceID: purchase.ID.String(),
					AmountMoney: &Money{Amount: 1000, Currency: "USD"},
					ProcessingFee: []ProcessingFee{
						{AmountMoney: &Money{Amount: 59, Currency: "USD"}},
						{AmountMoney: &Money{Amount: 15, Currency: "USD"}},
					},
				},
			},
		},
	}
}

func refundEvent(eventID string, amount int64) *WebhookEvent {
	return &WebhookEvent{
		EventID:   eventID,
		Type:      "refund.created",
		CreatedAt: time.Now().UTC(),
		Data: WebhookData{
			Type: "refund",
			ID:   "refund_1",
			Object: WebhookObject{
				Refund: &RefundPayload{
					ID:          "refund_1",
					PaymentID:   "pay_1",
					Status:      "COMPLETED",
					AmountMoney: &Money{Amount: amount, Currency: "USD"},
				},
			},
		},
	}
}

func TestHandleCompletedPaymentSettlesWithGatewayFee(t *testing.T) {
	purchase := pendingPurchase()
	settler := &stubSettler{}
	svc := newTestService(t, settler, &stubPurchases{purchase: purchase})

	if err := svc.HandleEvent(context.Background(), paymentEvent("evt_1", "COMPLETED", purchase)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(settler.paidCalls) != 1 {
		t.Fatalf("expected 1 settle, got %d", len(settler.paidCalls))
	}
	call := settler.paidCalls[0]
	if call.PurchaseID != purchase.ID {
		t.Fatal("settled the wrong purchase")
	}
	if call.ProcessorFeeCents == nil || *call.ProcessorFeeCents != 74 {
		t.Fatalf("processor fee = %v, want summed 74", call.ProcessorFeeCents)
	}
}

func TestHandleEventDeduplicatesRedelivery(t *testing.T) {
	purchase := pendingPurchase()
	settler := &stubSettler{}
	svc := newTestService(t, settler, &stubPurchases{purchase: purchase})

	event := paymentEvent("evt_1", "COMPLETED", purchase)
	for i := 0; i < 3; i++ {
		if err := svc.HandleEvent(context.Background(), event); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if len(settler.paidCalls) != 1 {
		t.Fatalf("redelivered event settled %d times, want 1", len(settler.paidCalls))
	}
}

func TestHandleEventSameIDDifferentTypeIsNotDeduplicated(t *testing.T) {
	purchase := pendingPurchase()
	settler := &stubSettler{}
	svc := newTestService(t, settler, &stubPurchases{purchase: purchase})

	if err := svc.HandleEvent(context.Background(), paymentEvent("evt_1", "COMPLETED", purchase)); err != nil {
		t.Fatalf("payment event: %v", err)
	}
	if err := svc.HandleEvent(context.Background(), refundEvent("evt_1", 1000)); err != nil {
		t.Fatalf("refund event: %v", err)
	}
	if len(settler.paidCalls) != 1 || len(settler.refundCalls) != 1 {
		t.Fatalf("calls = %d paid, %d refund; want 1 and 1", len(settler.paidCalls), len(settler.refundCalls))
	}
}

func TestHandleEventReleasesGuardOnFailure(t *testing.T) {
	purchase := pendingPurchase()
	settler := &stubSettler{paidErr: pkgerrors.New(pkgerrors.CodeDependency, "database unavailable")}
	svc := newTestService(t, settler, &stubPurchases{purchase: purchase})

	event := paymentEvent("evt_1", "COMPLETED", purchase)
	if err := svc.HandleEvent(context.Background(), event); err == nil {
		t.Fatal("expected handler error")
	}

	settler.paidErr = nil
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if len(settler.paidCalls) != 1 {
		t.Fatalf("retry settled %d times, want 1", len(settler.paidCalls))
	}
}

func TestHandleFailedPayment(t *testing.T) {
	purchase := pendingPurchase()
	settler := &stubSettler{}
	svc := newTestService(t, settler, &stubPurchases{purchase: purchase})

	if err := svc.HandleEvent(context.Background(), paymentEvent("evt_2", "FAILED", purchase)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(settler.failedCalls) != 1 || len(settler.paidCalls) != 0 {
		t.Fatalf("calls = %d failed, %d paid", len(settler.failedCalls), len(settler.paidCalls))
	}
}

func TestHandleRefundCreated(t *testing.T) {
	purchase := pendingPurchase()
	purchase.Status = enums.PurchaseStatusPaid
	settler := &stubSettler{}
	svc := newTestService(t, settler, &stubPurchases{purchase: purchase})

	if err := svc.HandleEvent(context.Background(), refundEvent("evt_3", 400)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(settler.refundCalls) != 1 {
		t.Fatalf("expected 1 refund settlement, got %d", len(settler.refundCalls))
	}
	call := settler.refundCalls[0]
	if call.RefundAmountCents != 400 || call.ProviderRefundID != "refund_1" {
		t.Fatalf("refund call = %+v", call)
	}
}

func TestHandleEventIgnoresUnknownTypes(t *testing.T) {
	settler := &stubSettler{}
	svc := newTestService(t, settler, &stubPurchases{})

	event := &WebhookEvent{EventID: "evt_4", Type: "customer.created"}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(settler.paidCalls)+len(settler.failedCalls)+len(settler.refundCalls) != 0 {
		t.Fatal("unknown event must not settle anything")
	}
}

func TestHandleEventUnmatchedPurchaseIsAcked(t *testing.T) {
	settler := &stubSettler{}
	svc := newTestService(t, settler, &stubPurchases{})

	orphan := pendingPurchase()
	if err := svc.HandleEvent(context.Background(), paymentEvent("evt_5", "COMPLETED", orphan)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(settler.paidCalls) != 0 {
		t.Fatal("orphan payment must not settle")
	}
}

func TestHandleEventRequiresIdentity(t *testing.T) {
	svc := newTestService(t, &stubSettler{}, &stubPurchases{})

	if err := svc.HandleEvent(context.Background(), nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("nil event: %v", err)
	}
	if err := svc.HandleEvent(context.Background(), &WebhookEvent{Type: "payment.updated"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("missing event id: %v", err)
	}
}
