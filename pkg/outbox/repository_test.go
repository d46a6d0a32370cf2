package outbox

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
	"github.com/mfigueroa/ordercore-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:outbox_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}))
	return conn
}

func insertEvent(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType, createdAt time.Time) models.OutboxEvent {
	t.Helper()
	event := models.OutboxEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1}`),
		CreatedAt:     createdAt,
	}
	require.NoError(t, conn.Create(&event).Error)
	return event
}

func TestFetchUnpublished_OldestFirstWithAttemptCeiling(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	newer := insertEvent(t, conn, enums.EventOrderInvoiceRequested, base.Add(time.Minute))
	older := insertEvent(t, conn, enums.EventOrderConfirmationMail, base)
	exhausted := insertEvent(t, conn, enums.EventOrderERPPushRequested, base)
	require.NoError(t, conn.Model(&models.OutboxEvent{}).
		Where("id = ?", exhausted.ID).
		Update("attempt_count", 10).Error)

	events, err := repo.FetchUnpublished(10, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, older.ID, events[0].ID)
	assert.Equal(t, newer.ID, events[1].ID)

	// Published rows drop out of the next fetch.
	require.NoError(t, repo.MarkPublished(older.ID))
	events, err = repo.FetchUnpublished(10, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, newer.ID, events[0].ID)
}

func TestMarkFailed_RecordsErrorAndIncrementsAttempts(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	event := insertEvent(t, conn, enums.EventOrderInvoiceRequested, time.Now().UTC())

	require.NoError(t, repo.MarkFailed(event.ID, errors.New("handler exploded")))
	require.NoError(t, repo.MarkFailed(event.ID, errors.New("still broken")))

	var got models.OutboxEvent
	require.NoError(t, conn.First(&got, "id = ?", event.ID).Error)
	assert.Equal(t, 2, got.AttemptCount)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "still broken", *got.LastError)
	assert.Nil(t, got.PublishedAt)
}

func TestCountUnpublished(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	first := insertEvent(t, conn, enums.EventOrderInvoiceRequested, time.Now().UTC())
	insertEvent(t, conn, enums.EventOrderConfirmationMail, time.Now().UTC())

	count, err := repo.CountUnpublished()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, repo.MarkPublished(first.ID))
	count, err = repo.CountUnpublished()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDeletePublishedBefore_LeavesUnpublishedAlone(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	cutoff := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	oldPublished := insertEvent(t, conn, enums.EventOrderInvoiceRequested, cutoff.Add(-48*time.Hour))
	oldUnpublished := insertEvent(t, conn, enums.EventOrderConfirmationMail, cutoff.Add(-48*time.Hour))
	recentPublished := insertEvent(t, conn, enums.EventOrderERPPushRequested, cutoff.Add(-time.Hour))

	past := cutoff.Add(-36 * time.Hour)
	require.NoError(t, conn.Model(&models.OutboxEvent{}).
		Where("id = ?", oldPublished.ID).
		Update("published_at", past).Error)
	require.NoError(t, repo.MarkPublished(recentPublished.ID))

	deleted, err := repo.DeletePublishedBefore(cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Find(&remaining).Error)
	require.Len(t, remaining, 2)
	ids := map[uuid.UUID]bool{remaining[0].ID: true, remaining[1].ID: true}
	assert.True(t, ids[oldUnpublished.ID])
	assert.True(t, ids[recentPublished.ID])
}
