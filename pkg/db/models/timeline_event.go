package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelierworks/atelier-backend/pkg/enums"
	"github.com/atelierworks/atelier-backend/pkg/types"
)

// TimelineEvent is one append-only audit record on an order's timeline.
// Rows are never updated or deleted; Seq breaks created_at ties.
type TimelineEvent struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`

	Seq         int64                   `gorm:"column:seq;autoIncrement;uniqueIndex:ux_timeline_events_seq"`
	EventType   enums.TimelineEventType `gorm:"column:event_type;type:timeline_event_type;not null"`
	Description string                  `gorm:"column:description;not null"`
	Metadata    types.JSONMap           `gorm:"column:metadata;type:jsonb;serializer:json"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
