package checkout

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/internal/catalog"
	"github.com/mfigueroa/ordercore-backend/internal/orders"
	"github.com/mfigueroa/ordercore-backend/internal/pricing"
	"github.com/mfigueroa/ordercore-backend/pkg/db"
	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
	"github.com/mfigueroa/ordercore-backend/pkg/enums"
	pkgerrors "github.com/mfigueroa/ordercore-backend/pkg/errors"
	"github.com/mfigueroa/ordercore-backend/pkg/outbox"
	"github.com/mfigueroa/ordercore-backend/pkg/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.Coupon{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderAddress{},
		&models.OutboxEvent{},
		&models.OrderSequence{},
	))
	require.NoError(t, conn.Create(&models.OrderSequence{ID: 1, NextValue: 1}).Error)
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	client := db.FromConn(conn)
	products := catalog.NewProductRepository(conn)
	coupons := catalog.NewCouponRepository(conn)
	pricer, err := pricing.NewEngine(products, coupons, nil)
	require.NoError(t, err)
	ordersRepo := orders.NewRepository(conn)
	publisher := outbox.NewService(outbox.NewRepository(conn), nil)
	svc, err := NewService(client, pricer, ordersRepo, products, coupons, publisher)
	require.NoError(t, err)
	return svc
}

func seedProduct(t *testing.T, conn *gorm.DB, slug string, priceCents int64, inventory int, variants ...models.ProductVariant) *models.Product {
	t.Helper()
	product := &models.Product{
		Slug:           slug,
		Name:           "Product " + slug,
		BasePriceCents: priceCents,
		Inventory:      inventory,
		InStock:        inventory > 0,
		Variants:       variants,
	}
	require.NoError(t, conn.Create(product).Error)
	return product
}

func seedCoupon(t *testing.T, conn *gorm.DB, coupon *models.Coupon) *models.Coupon {
	t.Helper()
	coupon.Active = true
	coupon.ValidFrom = time.Now().Add(-time.Hour)
	coupon.ValidTo = time.Now().Add(time.Hour)
	require.NoError(t, conn.Create(coupon).Error)
	return coupon
}

func testAddress() AddressInput {
	return AddressInput{
		FullName:   "Asha Rao",
		Line1:      "14 MG Road",
		City:       "Bengaluru",
		Region:     "KA",
		PostalCode: "560001",
		Country:    "IN",
	}
}

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

func TestExecute_SettlesOrderAtomically(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	product := seedProduct(t, conn, "widget", 1000, 10,
		models.ProductVariant{Name: "size", Value: "large", PriceAdjustmentCents: 100},
	)
	seedCoupon(t, conn, &models.Coupon{
		Code:             "SAVE10",
		Type:             enums.CouponTypePercentage,
		Value:            10,
		MinAmountCents:   int64Ptr(500),
		MaxDiscountCents: int64Ptr(150),
	})

	order, err := svc.Execute(context.Background(), CheckoutInput{
		Email: "asha@example.com",
		Items: []ItemInput{{
			ProductID: product.ID,
			Quantity:  2,
			Variants:  types.VariantPick{"size": "large"},
		}},
		ShippingAddress: testAddress(),
		CouponCode:      "SAVE10",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2200), order.SubtotalCents)
	assert.Equal(t, int64(150), order.DiscountCents)
	assert.Equal(t, int64(2050), order.TotalCents)
	assert.Equal(t, enums.FinancialStatusPending, order.FinancialStatus)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(1100), order.Items[0].UnitPriceCents)

	var fresh models.Product
	require.NoError(t, conn.First(&fresh, "id = ?", product.ID).Error)
	assert.Equal(t, 8, fresh.Inventory)

	var coupon models.Coupon
	require.NoError(t, conn.First(&coupon, "code = ?", "SAVE10").Error)
	assert.Equal(t, 1, coupon.UsageCount)

	var events []models.OutboxEvent
	require.NoError(t, conn.Find(&events).Error)
	assert.Len(t, events, 2)
	seen := map[enums.OutboxEventType]bool{}
	for _, e := range events {
		seen[e.EventType] = true
		assert.Equal(t, order.ID, e.AggregateID)
		assert.Nil(t, e.PublishedAt)
	}
	assert.True(t, seen[enums.EventOrderInvoiceRequested])
	assert.True(t, seen[enums.EventOrderERPPushRequested])
	// The confirmation mail waits for the payment callback; an order
	// that is still pending must not have one queued.
	assert.False(t, seen[enums.EventOrderConfirmationMail])
}

func TestExecute_CouponMinimumLeavesNoTrace(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	product := seedProduct(t, conn, "widget", 1000, 10)
	seedCoupon(t, conn, &models.Coupon{
		Code:           "BIGSPEND",
		Type:           enums.CouponTypePercentage,
		Value:          10,
		MinAmountCents: int64Ptr(5000),
	})

	_, err := svc.Execute(context.Background(), CheckoutInput{
		Email:           "asha@example.com",
		Items:           []ItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		CouponCode:      "BIGSPEND",
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeBusinessRule, typed.Code())

	var orderCount, addressCount, eventCount int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&orderCount).Error)
	require.NoError(t, conn.Model(&models.OrderAddress{}).Count(&addressCount).Error)
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&eventCount).Error)
	assert.Zero(t, orderCount)
	assert.Zero(t, addressCount)
	assert.Zero(t, eventCount)

	var fresh models.Product
	require.NoError(t, conn.First(&fresh, "id = ?", product.ID).Error)
	assert.Equal(t, 10, fresh.Inventory)
}

func TestExecute_InsufficientInventory(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	product := seedProduct(t, conn, "widget", 1000, 2)

	_, err := svc.Execute(context.Background(), CheckoutInput{
		Email:           "asha@example.com",
		Items:           []ItemInput{{ProductID: product.ID, Quantity: 3}},
		ShippingAddress: testAddress(),
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeBusinessRule, typed.Code())

	var orderCount int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Zero(t, orderCount)
}

func TestExecute_OneUseCouponRedeemsOnce(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	product := seedProduct(t, conn, "widget", 1000, 10)
	seedCoupon(t, conn, &models.Coupon{
		Code:       "ONCE",
		Type:       enums.CouponTypeFixed,
		Value:      100,
		UsageLimit: intPtr(1),
	})

	input := CheckoutInput{
		Email:           "asha@example.com",
		Items:           []ItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		CouponCode:      "ONCE",
	}

	_, err := svc.Execute(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), input)
	require.Error(t, err)

	var coupon models.Coupon
	require.NoError(t, conn.First(&coupon, "code = ?", "ONCE").Error)
	assert.Equal(t, 1, coupon.UsageCount)

	var orderCount int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Equal(t, int64(1), orderCount)
}

func TestExecute_DistinctOrderNumbers(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	product := seedProduct(t, conn, "widget", 1000, 10)
	input := CheckoutInput{
		Email:           "asha@example.com",
		Items:           []ItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
	}

	first, err := svc.Execute(context.Background(), input)
	require.NoError(t, err)
	second, err := svc.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.NotEqual(t, first.OrderNumber, second.OrderNumber)
}
