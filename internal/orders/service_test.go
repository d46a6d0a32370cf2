package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
	"github.com/mfigueroa/ordercore-backend/pkg/enums"
	pkgerrors "github.com/mfigueroa/ordercore-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Order{},
		&models.OrderItem{},
		&models.OrderAddress{},
		&models.OrderSequence{},
	))
	require.NoError(t, conn.Create(&models.OrderSequence{ID: 1, NextValue: 1}).Error)
	return conn
}

func seedOrder(t *testing.T, conn *gorm.DB, orderNumber string) *models.Order {
	t.Helper()
	addr := &models.OrderAddress{FullName: "Asha Rao", Line1: "14 MG Road", City: "Bengaluru", Region: "KA", PostalCode: "560001", Country: "IN"}
	require.NoError(t, conn.Create(addr).Error)
	order := &models.Order{
		OrderNumber:       orderNumber,
		Email:             "asha@example.com",
		SubtotalCents:     2200,
		TotalCents:        2050,
		FinancialStatus:   enums.FinancialStatusPending,
		FulfillmentStatus: enums.FulfillmentStatusUnfulfilled,
		ShippingAddressID: addr.ID,
	}
	require.NoError(t, conn.Create(order).Error)
	return order
}

func TestNextOrderSequence_Monotonic(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		seq, err := repo.NextOrderSequence(ctx)
		require.NoError(t, err)
		assert.False(t, seen[seq], "sequence %d minted twice", seq)
		seen[seq] = true
	}
	assert.True(t, seen[1])
	assert.True(t, seen[5])
}

func TestMarkPaid_OnlyFlipsPendingOnce(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	order := seedOrder(t, conn, "ORD-1756600000-1")

	flipped, err := repo.MarkPaid(ctx, order.ID, "pay_abc123")
	require.NoError(t, err)
	assert.True(t, flipped)

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.FinancialStatusPaid, got.FinancialStatus)
	require.NotNil(t, got.PaymentID)
	assert.Equal(t, "pay_abc123", *got.PaymentID)

	// A second capture against the same order must not win the guard.
	flipped, err = repo.MarkPaid(ctx, order.ID, "pay_other")
	require.NoError(t, err)
	assert.False(t, flipped)

	got, err = repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "pay_abc123", *got.PaymentID)
}

func TestSetExternalERPID_WriteOnce(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	order := seedOrder(t, conn, "ORD-1756600000-2")

	stored, err := repo.SetExternalERPID(ctx, order.ID, 9001)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = repo.SetExternalERPID(ctx, order.ID, 9002)
	require.NoError(t, err)
	assert.False(t, stored)

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ExternalERPID)
	assert.Equal(t, int64(9001), *got.ExternalERPID)
}

func TestUpdateTracking_PartialUpdate(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()
	order := seedOrder(t, conn, "ORD-1756600000-3")

	tracking := "AWB123456"
	carrier := "delhivery"
	shippedAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	status := string(enums.FulfillmentStatusShipped)

	updated, err := svc.UpdateTracking(ctx, order.ID, TrackingUpdate{
		TrackingNumber:    &tracking,
		Carrier:           &carrier,
		ShippedAt:         &shippedAt,
		FulfillmentStatus: &status,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.TrackingNumber)
	assert.Equal(t, "AWB123456", *updated.TrackingNumber)
	assert.Equal(t, enums.FulfillmentStatusShipped, updated.FulfillmentStatus)

	// A later partial update leaves earlier fields in place.
	delivered := string(enums.FulfillmentStatusDelivered)
	updated, err = svc.UpdateTracking(ctx, order.ID, TrackingUpdate{FulfillmentStatus: &delivered})
	require.NoError(t, err)
	assert.Equal(t, enums.FulfillmentStatusDelivered, updated.FulfillmentStatus)
	require.NotNil(t, updated.TrackingNumber)
	assert.Equal(t, "AWB123456", *updated.TrackingNumber)
	require.NotNil(t, updated.Carrier)
	assert.Equal(t, "delhivery", *updated.Carrier)
}

func TestUpdateTracking_Rejections(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()
	order := seedOrder(t, conn, "ORD-1756600000-4")

	_, err = svc.UpdateTracking(ctx, order.ID, TrackingUpdate{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	bogus := "teleported"
	_, err = svc.UpdateTracking(ctx, order.ID, TrackingUpdate{FulfillmentStatus: &bogus})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	tracking := "AWB1"
	_, err = svc.UpdateTracking(ctx, uuid.New(), TrackingUpdate{TrackingNumber: &tracking})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
