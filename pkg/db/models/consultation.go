package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelierworks/atelier-backend/pkg/enums"
)

// Consultation is the pre-production scheduling step attached to an order.
// At most one non-terminal row may exist per order; resolved rows are kept
// for audit.
type Consultation struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`

	Status      enums.ConsultationStatus `gorm:"column:status;type:consultation_status;not null;default:'pending'"`
	RequestedBy enums.Party              `gorm:"column:requested_by;type:party;not null"`

	StartedAt   *time.Time `gorm:"column:started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	WaivedAt    *time.Time `gorm:"column:waived_at"`
	TimeoutAt   time.Time  `gorm:"column:timeout_at;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
