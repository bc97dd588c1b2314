package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelierworks/atelier-backend/pkg/enums"
)

// ProductionOrder is the aggregate root for a made-to-order transaction.
// Status is written only by the orders service; every other component
// references the row by ID.
type ProductionOrder struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null"`
	ProviderID uuid.UUID `gorm:"column:provider_id;type:uuid;not null"`

	Status enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending_consultation'"`

	// EscrowAmountCents is the amount captured at creation and never changes.
	// FinalPriceCents starts equal to it and may move exactly once via an
	// approved price adjustment.
	EscrowAmountCents int64 `gorm:"column:escrow_amount_cents;not null"`
	FinalPriceCents   int64 `gorm:"column:final_price_cents;not null"`

	ConsultationRequired bool `gorm:"column:consultation_required;not null;default:false"`
	ConsultationWaived   bool `gorm:"column:consultation_waived;not null;default:false"`
	PriceAdjustmentUsed  bool `gorm:"column:price_adjustment_used;not null;default:false"`

	TrackingNumber  *string `gorm:"column:tracking_number"`
	ShippingCarrier *string `gorm:"column:shipping_carrier"`
	CancelReason    *string `gorm:"column:cancel_reason"`

	OrderReceivedAt  *time.Time `gorm:"column:order_received_at"`
	EscrowReleasedAt *time.Time `gorm:"column:escrow_released_at"`
	CancelledAt      *time.Time `gorm:"column:cancelled_at"`

	// Version is bumped on every committed transition; stale writers lose.
	Version int64 `gorm:"column:version;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (ProductionOrder) TableName() string { return "production_orders" }
