package purchases

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streampass/streampass-backend/pkg/db/models"
	"github.com/streampass/streampass-backend/pkg/enums"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
)

type fakeRepo struct {
	byID        map[uuid.UUID]*models.Purchase
	updateCount int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[uuid.UUID]*models.Purchase{}}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(_ context.Context, purchase *models.Purchase) error {
	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}
	stored := *purchase
	f.byID[purchase.ID] = &stored
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Purchase, error) {
	if stored, ok := f.byID[id]; ok {
		clone := *stored
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeRepo) GetByProviderPaymentID(_ context.Context, providerPaymentID string) (*models.Purchase, error) {
	for _, stored := range f.byID {
		if stored.ProviderPaymentID != nil && *stored.ProviderPaymentID == providerPaymentID {
			clone := *stored
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) Update(_ context.Context, purchase *models.Purchase) error {
	f.updateCount++
	stored := *purchase
	f.byID[purchase.ID] = &stored
	return nil
}

func (f *fakeRepo) ListByViewerAndGame(_ context.Context, viewerID, gameID uuid.UUID) ([]models.Purchase, error) {
	var rows []models.Purchase
	for _, stored := range f.byID {
		if stored.ViewerID == viewerID && stored.GameID == gameID {
			rows = append(rows, *stored)
		}
	}
	return rows, nil
}

func newTestService(t *testing.T) (Service, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo
}

func createTestPurchase(t *testing.T, svc Service) *models.Purchase {
	t.Helper()
	purchase, err := svc.Create(context.Background(), CreatePurchaseInput{
		GameID:                  uuid.New(),
		ViewerID:                uuid.New(),
		RecipientOwnerAccountID: uuid.New(),
		AmountCents:             2500,
		PlatformFeeCents:        250,
		ProcessorFeeCents:       103,
		ViewerEmail:             "viewer@example.com",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return purchase
}

func TestCreateStartsInCreated(t *testing.T) {
	svc, _ := newTestService(t)
	purchase := createTestPurchase(t, svc)
	if purchase.Status != enums.PurchaseStatusCreated {
		t.Fatalf("expected created status, got %s", purchase.Status)
	}
	if purchase.PaidAt != nil || purchase.FailedAt != nil || purchase.RefundedAt != nil {
		t.Fatal("new purchase should have no transition timestamps")
	}
}

func TestCreateRejectsMissingFields(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), CreatePurchaseInput{
		ViewerID:                uuid.New(),
		RecipientOwnerAccountID: uuid.New(),
		AmountCents:             100,
		ViewerEmail:             "viewer@example.com",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkPaidTransitionsAndStampsTimestamp(t *testing.T) {
	svc, _ := newTestService(t)
	purchase := createTestPurchase(t, svc)

	paidAt := time.Now().UTC()
	fee := int64(103)
	updated, changed, err := svc.MarkPaid(context.Background(), nil, MarkPaidInput{
		PurchaseID:        purchase.ID,
		ProviderPaymentID: "sq_pay_1",
		ProcessorFeeCents: &fee,
		PaidAt:            paidAt,
	})
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if !changed {
		t.Fatal("first MarkPaid should report a change")
	}
	if updated.Status != enums.PurchaseStatusPaid {
		t.Fatalf("expected paid, got %s", updated.Status)
	}
	if updated.PaidAt == nil || !updated.PaidAt.Equal(paidAt) {
		t.Fatalf("paid_at not stamped: %v", updated.PaidAt)
	}
	if updated.ProviderPaymentID == nil || *updated.ProviderPaymentID != "sq_pay_1" {
		t.Fatal("provider payment id not recorded")
	}
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	svc, repo := newTestService(t)
	purchase := createTestPurchase(t, svc)

	input := MarkPaidInput{PurchaseID: purchase.ID, ProviderPaymentID: "sq_pay_1", PaidAt: time.Now().UTC()}
	if _, _, err := svc.MarkPaid(context.Background(), nil, input); err != nil {
		t.Fatalf("first MarkPaid: %v", err)
	}
	updates := repo.updateCount

	again, changed, err := svc.MarkPaid(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("second MarkPaid: %v", err)
	}
	if changed {
		t.Fatal("duplicate MarkPaid should be a no-op")
	}
	if again.Status != enums.PurchaseStatusPaid {
		t.Fatalf("status should remain paid, got %s", again.Status)
	}
	if repo.updateCount != updates {
		t.Fatal("duplicate MarkPaid should not write")
	}
}

func TestMarkPaidRequiresProviderPaymentID(t *testing.T) {
	svc, repo := newTestService(t)
	purchase := createTestPurchase(t, svc)

	_, _, err := svc.MarkPaid(context.Background(), nil, MarkPaidInput{PurchaseID: purchase.ID, PaidAt: time.Now().UTC()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error without a payment reference, got %v", err)
	}

	// A reference recorded earlier by the pending checkout path satisfies
	// the precondition.
	providerPaymentID := "sq_pay_pending"
	stored := repo.byID[purchase.ID]
	stored.ProviderPaymentID = &providerPaymentID

	updated, changed, err := svc.MarkPaid(context.Background(), nil, MarkPaidInput{PurchaseID: purchase.ID, PaidAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("MarkPaid with stored reference: %v", err)
	}
	if !changed || updated.Status != enums.PurchaseStatusPaid {
		t.Fatalf("expected paid, got changed=%v status=%s", changed, updated.Status)
	}
}

func TestMarkPaidRejectsFailedPurchase(t *testing.T) {
	svc, _ := newTestService(t)
	purchase := createTestPurchase(t, svc)

	if _, _, err := svc.MarkFailed(context.Background(), nil, purchase.ID, time.Now().UTC()); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	_, _, err := svc.MarkPaid(context.Background(), nil, MarkPaidInput{PurchaseID: purchase.ID, PaidAt: time.Now().UTC()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestMarkRefundedRequiresPaid(t *testing.T) {
	svc, _ := newTestService(t)
	purchase := createTestPurchase(t, svc)

	_, _, err := svc.MarkRefunded(context.Background(), nil, purchase.ID, time.Now().UTC())
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for created -> refunded, got %v", err)
	}

	if _, _, err := svc.MarkPaid(context.Background(), nil, MarkPaidInput{PurchaseID: purchase.ID, ProviderPaymentID: "sq_pay_1", PaidAt: time.Now().UTC()}); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	updated, changed, err := svc.MarkRefunded(context.Background(), nil, purchase.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("MarkRefunded: %v", err)
	}
	if !changed || updated.Status != enums.PurchaseStatusRefunded {
		t.Fatalf("expected refunded, got changed=%v status=%s", changed, updated.Status)
	}

	_, changed, err = svc.MarkRefunded(context.Background(), nil, purchase.ID, time.Now().UTC())
	if err != nil || changed {
		t.Fatalf("duplicate refund should be a no-op: changed=%v err=%v", changed, err)
	}
}

func TestMarkFailedUnknownPurchase(t *testing.T) {
	svc, _ := newTestService(t)
	_, _, err := svc.MarkFailed(context.Background(), nil, uuid.New(), time.Now().UTC())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
