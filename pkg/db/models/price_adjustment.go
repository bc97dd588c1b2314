package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelierworks/atelier-backend/pkg/enums"
)

// PriceAdjustment is a single-use renegotiation of an order's final price.
// At most one pending row may exist per order; resolution is terminal.
type PriceAdjustment struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`

	OriginalPriceCents int64                  `gorm:"column:original_price_cents;not null"`
	AdjustedPriceCents int64                  `gorm:"column:adjusted_price_cents;not null"`
	AdjustmentType     enums.AdjustmentType   `gorm:"column:adjustment_type;type:adjustment_type;not null"`
	Justification      string                 `gorm:"column:justification;not null"`
	Status             enums.AdjustmentStatus `gorm:"column:status;type:adjustment_status;not null;default:'pending'"`
	ProposedBy         enums.Party            `gorm:"column:proposed_by;type:party;not null"`

	ResponseDeadline time.Time  `gorm:"column:response_deadline;not null"`
	ResolvedAt       *time.Time `gorm:"column:resolved_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// AdjustmentAmountCents is the absolute delta between the proposed and
// original price. Derived, never stored.
func (p PriceAdjustment) AdjustmentAmountCents() int64 {
	delta := p.AdjustedPriceCents - p.OriginalPriceCents
	if delta < 0 {
		return -delta
	}
	return delta
}
