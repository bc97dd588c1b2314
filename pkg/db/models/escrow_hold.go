package models

import (
	"time"

	"github.com/google/uuid"
)

// EscrowHold tracks the funds captured for one order. One row per order,
// created when the order is created and settled exactly once by release
// or refund.
type EscrowHold struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_escrow_holds_order"`

	// HoldToken is the payment processor's reference for the authorized funds.
	HoldToken string `gorm:"column:hold_token;not null"`

	// Payment credentials are kept so a settlement below the authorized
	// amount can take a fresh charge after voiding the hold.
	PaymentCustomerID string `gorm:"column:payment_customer_id;not null;default:''"`
	PaymentSourceID   string `gorm:"column:payment_source_id;not null;default:''"`

	AmountCents   int64 `gorm:"column:amount_cents;not null"`
	ToppedUpCents int64 `gorm:"column:topped_up_cents;not null;default:0"`

	// TopUpPaymentID references the captured top-up payment, if any. At most
	// one price adjustment is allowed per order, so one top-up suffices.
	TopUpPaymentID *string `gorm:"column:top_up_payment_id"`

	// SettlePaymentID references the payment that finally settled the hold.
	SettlePaymentID *string `gorm:"column:settle_payment_id"`

	ReleasedCents int64 `gorm:"column:released_cents;not null;default:0"`
	RefundedCents int64 `gorm:"column:refunded_cents;not null;default:0"`

	ReleasedAt *time.Time `gorm:"column:released_at"`
	RefundedAt *time.Time `gorm:"column:refunded_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// HeldCents is the total currently authorized against the customer.
func (h EscrowHold) HeldCents() int64 {
	return h.AmountCents + h.ToppedUpCents
}
