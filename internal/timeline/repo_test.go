package timeline

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/atelierworks/atelier-backend/pkg/db/models"
	"github.com/atelierworks/atelier-backend/pkg/enums"
)

func setupTimelineTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS timeline_events (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  seq INTEGER NOT NULL,
  event_type TEXT NOT NULL,
  description TEXT NOT NULL,
  metadata TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func insertTimelineEvent(t *testing.T, repo Repository, orderID uuid.UUID, seq int64, eventType enums.TimelineEventType) {
	t.Helper()
	event := &models.TimelineEvent{
		ID:          uuid.New(),
		OrderID:     orderID,
		Seq:         seq,
		EventType:   eventType,
		Description: string(eventType),
	}
	require.NoError(t, repo.Create(context.Background(), event))
}

func TestRepository_ListByOrderID(t *testing.T) {
	db := setupTimelineTestDB(t)
	repo := NewRepository(db)
	orderID := uuid.New()
	otherOrder := uuid.New()

	insertTimelineEvent(t, repo, orderID, 3, enums.TimelineStatusChanged)
	insertTimelineEvent(t, repo, orderID, 1, enums.TimelineOrderCreated)
	insertTimelineEvent(t, repo, orderID, 2, enums.TimelineEscrowHeld)
	insertTimelineEvent(t, repo, otherOrder, 4, enums.TimelineOrderCreated)

	events, err := repo.ListByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Chronological by sequence regardless of insertion order.
	assert.Equal(t, enums.TimelineOrderCreated, events[0].EventType)
	assert.Equal(t, enums.TimelineEscrowHeld, events[1].EventType)
	assert.Equal(t, enums.TimelineStatusChanged, events[2].EventType)
}

func TestRepository_ListRecentByOrderID(t *testing.T) {
	db := setupTimelineTestDB(t)
	repo := NewRepository(db)
	orderID := uuid.New()

	insertTimelineEvent(t, repo, orderID, 1, enums.TimelineOrderCreated)
	insertTimelineEvent(t, repo, orderID, 2, enums.TimelineEscrowHeld)
	insertTimelineEvent(t, repo, orderID, 3, enums.TimelineStatusChanged)
	insertTimelineEvent(t, repo, orderID, 4, enums.TimelineOrderShipped)

	events, err := repo.ListRecentByOrderID(context.Background(), orderID, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// The most recent entries, still in chronological order.
	assert.Equal(t, enums.TimelineStatusChanged, events[0].EventType)
	assert.Equal(t, enums.TimelineOrderShipped, events[1].EventType)
}
