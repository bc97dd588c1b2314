package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierworks/atelier-backend/pkg/db"
	"github.com/atelierworks/atelier-backend/pkg/db/models"
	pkgerrors "github.com/atelierworks/atelier-backend/pkg/errors"
)

// PaymentProcessor abstracts the payment provider used to hold, settle, and
// return buyer funds. The Square client satisfies this in production.
type PaymentProcessor interface {
	// Authorize places a delayed-capture hold and returns the provider's
	// reference token for it.
	Authorize(ctx context.Context, input AuthorizeInput) (string, error)
	// Settle collects input.AmountCents against a previously authorized
	// hold and returns the provider reference for the settled payment. The
	// amount may be below the authorized figure when the price was adjusted
	// down after authorization.
	Settle(ctx context.Context, input SettleInput) (string, error)
	// ChargeAdditional takes an immediate payment on top of an existing hold
	// and returns the provider's payment reference.
	ChargeAdditional(ctx context.Context, input ChargeInput) (string, error)
	// CancelAuthorization voids an uncaptured hold.
	CancelAuthorization(ctx context.Context, holdToken string) error
	// RefundPayment returns a captured payment to the buyer.
	RefundPayment(ctx context.Context, paymentID string, amountCents int64, reason string) error
}

// AuthorizeInput carries the fields needed to place a hold.
type AuthorizeInput struct {
	OrderID     uuid.UUID
	CustomerID  string
	SourceID    string
	AmountCents int64
}

// ChargeInput carries the fields needed to collect a top-up.
type ChargeInput struct {
	OrderID     uuid.UUID
	CustomerID  string
	SourceID    string
	AmountCents int64
	Note        string
}

// SettleInput carries the fields needed to settle an authorized hold.
type SettleInput struct {
	OrderID         uuid.UUID
	HoldToken       string
	CustomerID      string
	SourceID        string
	AuthorizedCents int64
	AmountCents     int64
}

// Service owns the funds ledger for production orders. All mutations run
// inside the caller's transaction so hold state and order state commit
// together.
type Service interface {
	Hold(ctx context.Context, tx *gorm.DB, input AuthorizeInput) (*models.EscrowHold, error)
	TopUp(ctx context.Context, tx *gorm.DB, input ChargeInput) (*models.EscrowHold, error)
	Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, amountCents int64) (*models.EscrowHold, error)
	Refund(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, amountCents int64, reason string) (*models.EscrowHold, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.EscrowHold, error)
}

type service struct {
	repo      Repository
	processor PaymentProcessor
}

// NewService wires an escrow service with the required dependencies.
func NewService(repo Repository, processor PaymentProcessor) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("escrow repository required")
	}
	if processor == nil {
		return nil, fmt.Errorf("payment processor required")
	}
	return &service{repo: repo, processor: processor}, nil
}

func (s *service) Hold(ctx context.Context, tx *gorm.DB, input AuthorizeInput) (*models.EscrowHold, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonInvalidAmount, "hold amount must be positive")
	}

	repo := s.repo.WithTx(tx)
	existing, err := repo.FindByOrderID(ctx, input.OrderID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow hold")
	}
	if existing != nil {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonDuplicateHold, "escrow already held for order")
	}

	token, err := s.processor.Authorize(ctx, input)
	if err != nil {
		return nil, err
	}

	hold := &models.EscrowHold{
		OrderID:           input.OrderID,
		HoldToken:         token,
		PaymentCustomerID: input.CustomerID,
		PaymentSourceID:   input.SourceID,
		AmountCents:       input.AmountCents,
	}
	if err := repo.Create(ctx, hold); err != nil {
		// Pre-check above can lose to a concurrent insert; the unique index
		// on order_id is the real guard.
		if db.IsUniqueViolation(err, "ux_escrow_holds_order") {
			return nil, pkgerrors.NewReason(pkgerrors.ReasonDuplicateHold, "escrow already held for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist escrow hold")
	}
	return hold, nil
}

func (s *service) TopUp(ctx context.Context, tx *gorm.DB, input ChargeInput) (*models.EscrowHold, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonInvalidAmount, "top-up amount must be positive")
	}

	repo := s.repo.WithTx(tx)
	hold, err := s.activeHold(ctx, repo, input.OrderID)
	if err != nil {
		return nil, err
	}

	paymentID, err := s.processor.ChargeAdditional(ctx, input)
	if err != nil {
		return nil, pkgerrors.WrapReason(pkgerrors.ReasonTopUpFailed, err, "collect escrow top-up")
	}

	updates := map[string]any{
		"topped_up_cents":   hold.ToppedUpCents + input.AmountCents,
		"top_up_payment_id": paymentID,
	}
	if err := repo.Update(ctx, hold.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist escrow top-up")
	}
	hold.ToppedUpCents += input.AmountCents
	hold.TopUpPaymentID = &paymentID
	return hold, nil
}

// Release settles the hold for amountCents, the order's final price. Top-ups
// were already captured when they were collected, so only the remainder is
// taken from the authorization. An approved decrease leaves that remainder
// below the authorized amount and the processor settles short.
func (s *service) Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, amountCents int64) (*models.EscrowHold, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if amountCents <= 0 {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonInvalidAmount, "release amount must be positive")
	}

	repo := s.repo.WithTx(tx)
	hold, err := s.activeHold(ctx, repo, orderID)
	if err != nil {
		return nil, err
	}

	settleCents := amountCents - hold.ToppedUpCents
	if settleCents <= 0 || settleCents > hold.AmountCents {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonInvalidAmount, "release amount outside held funds")
	}

	settleRef, err := s.processor.Settle(ctx, SettleInput{
		OrderID:         orderID,
		HoldToken:       hold.HoldToken,
		CustomerID:      hold.PaymentCustomerID,
		SourceID:        hold.PaymentSourceID,
		AuthorizedCents: hold.AmountCents,
		AmountCents:     settleCents,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"released_cents":    amountCents,
		"settle_payment_id": settleRef,
		"released_at":       now,
	}
	if err := repo.Update(ctx, hold.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist escrow release")
	}
	hold.ReleasedCents = amountCents
	hold.SettlePaymentID = &settleRef
	hold.ReleasedAt = &now
	return hold, nil
}

func (s *service) Refund(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, amountCents int64, reason string) (*models.EscrowHold, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if amountCents <= 0 {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonInvalidAmount, "refund amount must be positive")
	}

	repo := s.repo.WithTx(tx)
	hold, err := s.activeHold(ctx, repo, orderID)
	if err != nil {
		return nil, err
	}
	if amountCents > hold.HeldCents() {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonInvalidAmount, "refund exceeds held funds")
	}

	// The original authorization was never captured, so voiding it returns
	// those funds. Captured top-ups need an explicit refund.
	if err := s.processor.CancelAuthorization(ctx, hold.HoldToken); err != nil {
		return nil, err
	}
	if hold.TopUpPaymentID != nil && hold.ToppedUpCents > 0 {
		if err := s.processor.RefundPayment(ctx, *hold.TopUpPaymentID, hold.ToppedUpCents, reason); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"refunded_cents": amountCents,
		"refunded_at":    now,
	}
	if err := repo.Update(ctx, hold.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist escrow refund")
	}
	hold.RefundedCents = amountCents
	hold.RefundedAt = &now
	return hold, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.EscrowHold, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	hold, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NewReason(pkgerrors.ReasonNotHeld, "no escrow held for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow hold")
	}
	return hold, nil
}

// activeHold loads the hold and rejects settled ones.
func (s *service) activeHold(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.EscrowHold, error) {
	hold, err := repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NewReason(pkgerrors.ReasonNotHeld, "no escrow held for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow hold")
	}
	if hold.ReleasedAt != nil {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonAlreadyReleased, "escrow already released")
	}
	if hold.RefundedAt != nil {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonAlreadyReleased, "escrow already refunded")
	}
	return hold, nil
}
