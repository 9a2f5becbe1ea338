package entitlements

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streampass/streampass-backend/pkg/config"
	"github.com/streampass/streampass-backend/pkg/db/models"
	"github.com/streampass/streampass-backend/pkg/enums"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
	"github.com/streampass/streampass-backend/pkg/security"
)

// Service issues and checks access tokens for paid purchases. The raw
// token is returned exactly once, at issue time; every later path sees
// only its digest. Validate answers with a single uniform error for any
// rejected token so a caller cannot probe which tokens exist.
type Service interface {
	Issue(ctx context.Context, tx *gorm.DB, input IssueInput) (*IssueResult, error)
	Validate(ctx context.Context, rawToken string) (*models.Entitlement, error)
	GetByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.Entitlement, error)
	RevokeForPurchase(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID) (bool, error)
}

// IssueInput binds the entitlement to its purchase and, when known, the
// game whose schedule bounds the access window.
type IssueInput struct {
	Purchase *models.Purchase
	Game     *models.Game
	Now      time.Time
}

// IssueResult carries the entitlement and, on first issue only, the raw
// token. Replays return the stored row with an empty RawToken.
type IssueResult struct {
	Entitlement *models.Entitlement
	RawToken    string
	Issued      bool
}

type service struct {
	repo Repository
	cfg  config.EntitlementConfig
}

// NewService wires an entitlement service with the provided repository.
func NewService(repo Repository, cfg config.EntitlementConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("entitlement repository required")
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 24 * time.Hour
	}
	return &service{repo: repo, cfg: cfg}, nil
}

// Issue creates the entitlement for a paid purchase. A second call for
// the same purchase returns the existing row without minting a new token.
func (s *service) Issue(ctx context.Context, tx *gorm.DB, input IssueInput) (*IssueResult, error) {
	purchase := input.Purchase
	if purchase == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase is required")
	}
	if purchase.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id is required")
	}
	if purchase.Status != enums.PurchaseStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot issue entitlement for %s purchase", purchase.Status))
	}

	repo := s.repo.WithTx(tx)
	existing, err := repo.GetByPurchaseID(ctx, purchase.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &IssueResult{Entitlement: existing, Issued: false}, nil
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	validFrom := now
	if purchase.PaidAt != nil && purchase.PaidAt.Before(now) {
		validFrom = *purchase.PaidAt
	}
	validTo := s.accessWindowEnd(input.Game, now)

	rawToken, digest, err := security.GenerateEntitlementToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate entitlement token")
	}

	entitlement := &models.Entitlement{
		PurchaseID:  purchase.ID,
		TokenDigest: digest,
		ValidFrom:   validFrom,
		ValidTo:     validTo,
		Status:      enums.EntitlementStatusActive,
	}
	if err := repo.Create(ctx, entitlement); err != nil {
		return nil, err
	}
	return &IssueResult{Entitlement: entitlement, RawToken: rawToken, Issued: true}, nil
}

// Validate resolves a raw token to its active entitlement. Every failure
// mode returns the same unauthorized error.
func (s *service) Validate(ctx context.Context, rawToken string) (*models.Entitlement, error) {
	if !security.ValidTokenShape(rawToken) {
		return nil, rejectedTokenError()
	}
	digest := security.TokenDigest(rawToken)
	entitlement, err := s.repo.GetByTokenDigest(ctx, digest)
	if err != nil {
		return nil, err
	}
	// The stored digest must match byte for byte; a lookup under a
	// case-folding collation must not widen acceptance.
	if entitlement == nil || !security.DigestsEqual(entitlement.TokenDigest, digest) {
		return nil, rejectedTokenError()
	}
	if entitlement.Status != enums.EntitlementStatusActive {
		return nil, rejectedTokenError()
	}
	now := time.Now().UTC()
	if now.Before(entitlement.ValidFrom) || now.After(entitlement.ValidTo) {
		return nil, rejectedTokenError()
	}
	return entitlement, nil
}

func (s *service) GetByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.Entitlement, error) {
	if purchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id is required")
	}
	return s.repo.GetByPurchaseID(ctx, purchaseID)
}

// RevokeForPurchase deactivates the purchase's entitlement. It reports
// whether a row moved to revoked; revoking twice or revoking a purchase
// that was never entitled is a no-op.
func (s *service) RevokeForPurchase(ctx context.Context, tx *gorm.DB, purchaseID uuid.UUID) (bool, error) {
	if purchaseID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "purchase id is required")
	}
	repo := s.repo.WithTx(tx)
	entitlement, err := repo.GetByPurchaseID(ctx, purchaseID)
	if err != nil {
		return false, err
	}
	if entitlement == nil || entitlement.Status == enums.EntitlementStatusRevoked {
		return false, nil
	}
	if err := repo.UpdateStatus(ctx, entitlement.ID, enums.EntitlementStatusRevoked); err != nil {
		return false, err
	}
	return true, nil
}

// accessWindowEnd prefers the game's scheduled end; unscheduled games get
// the configured flat TTL.
func (s *service) accessWindowEnd(game *models.Game, now time.Time) time.Time {
	if game != nil && game.ScheduledEnd != nil && game.ScheduledEnd.After(now) {
		return *game.ScheduledEnd
	}
	return now.Add(s.cfg.DefaultTTL)
}

func rejectedTokenError() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "entitlement token rejected")
}
