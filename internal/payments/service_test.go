package payments

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/internal/orders"
	"github.com/mfigueroa/ordercore-backend/pkg/db"
	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
	"github.com/mfigueroa/ordercore-backend/pkg/enums"
	pkgerrors "github.com/mfigueroa/ordercore-backend/pkg/errors"
	"github.com/mfigueroa/ordercore-backend/pkg/gateway"
	"github.com/mfigueroa/ordercore-backend/pkg/outbox"
)

const testSecret = "callback-secret"

type stubGateway struct {
	payments map[string]*gateway.Payment
}

func (s *stubGateway) FetchPayment(_ context.Context, ref string) (*gateway.Payment, error) {
	if p, ok := s.payments[ref]; ok {
		return p, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found at gateway")
}

func (s *stubGateway) CallbackSecret() string { return testSecret }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Order{},
		&models.OrderItem{},
		&models.OrderAddress{},
		&models.Payment{},
		&models.OutboxEvent{},
	))
	return conn
}

func seedOrder(t *testing.T, conn *gorm.DB, totalCents int64) *models.Order {
	t.Helper()
	addr := &models.OrderAddress{FullName: "Asha Rao", Line1: "14 MG Road", City: "Bengaluru", Region: "KA", PostalCode: "560001", Country: "IN"}
	require.NoError(t, conn.Create(addr).Error)
	order := &models.Order{
		OrderNumber:       "ORD-1756600000-1",
		Email:             "asha@example.com",
		SubtotalCents:     totalCents,
		TotalCents:        totalCents,
		FinancialStatus:   enums.FinancialStatusPending,
		FulfillmentStatus: enums.FulfillmentStatusUnfulfilled,
		ShippingAddressID: addr.ID,
	}
	require.NoError(t, conn.Create(order).Error)
	return order
}

// seedCheckoutFanout inserts the outbox rows checkout writes when it
// settles an order, so callback tests run against a realistic outbox.
func seedCheckoutFanout(t *testing.T, conn *gorm.DB, orderID uuid.UUID) {
	t.Helper()
	for _, eventType := range []enums.OutboxEventType{
		enums.EventOrderInvoiceRequested,
		enums.EventOrderERPPushRequested,
	} {
		require.NoError(t, conn.Create(&models.OutboxEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Payload:       json.RawMessage(`{"version":1}`),
		}).Error)
	}
}

func newTestService(t *testing.T, conn *gorm.DB, gw *stubGateway) Service {
	t.Helper()
	svc, err := NewService(
		db.FromConn(conn),
		gw,
		orders.NewRepository(conn),
		NewRepository(conn),
		outbox.NewService(outbox.NewRepository(conn), nil),
	)
	require.NoError(t, err)
	return svc
}

func TestVerifyCallback_SettlesPayment(t *testing.T) {
	conn := newTestDB(t)
	order := seedOrder(t, conn, 2050)
	seedCheckoutFanout(t, conn, order.ID)
	gw := &stubGateway{payments: map[string]*gateway.Payment{
		"pay_123": {ID: "pay_123", OrderRef: order.OrderNumber, AmountCents: 2050, Status: gateway.StatusCaptured},
	}}
	svc := newTestService(t, conn, gw)

	payment, err := svc.VerifyCallback(context.Background(), CallbackInput{
		OrderRef:   order.OrderNumber,
		PaymentRef: "pay_123",
		Signature:  gateway.SignCallback(testSecret, order.OrderNumber, "pay_123"),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCaptured, payment.Status)
	assert.Equal(t, int64(2050), payment.AmountCents)

	var fresh models.Order
	require.NoError(t, conn.First(&fresh, "id = ?", order.ID).Error)
	assert.Equal(t, enums.FinancialStatusPaid, fresh.FinancialStatus)
	require.NotNil(t, fresh.PaymentID)
	assert.Equal(t, "pay_123", *fresh.PaymentID)

	// The checkout fan-out rows must not suppress the mail event; it is
	// dedup'd by event type, and checkout never queued one.
	var mailCount int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventOrderConfirmationMail).
		Count(&mailCount).Error)
	assert.Equal(t, int64(1), mailCount)

	var total int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&total).Error)
	assert.Equal(t, int64(3), total)
}

func TestVerifyCallback_MutatedSignatureRejected(t *testing.T) {
	conn := newTestDB(t)
	order := seedOrder(t, conn, 2050)
	gw := &stubGateway{payments: map[string]*gateway.Payment{
		"pay_123": {ID: "pay_123", AmountCents: 2050, Status: gateway.StatusCaptured},
	}}
	svc := newTestService(t, conn, gw)

	valid := gateway.SignCallback(testSecret, order.OrderNumber, "pay_123")

	// Any single-field mutation must invalidate the signature.
	for _, input := range []CallbackInput{
		{OrderRef: order.OrderNumber, PaymentRef: "pay_456", Signature: valid},
		{OrderRef: "ORD-1756600000-2", PaymentRef: "pay_123", Signature: valid},
		{OrderRef: order.OrderNumber, PaymentRef: "pay_123", Signature: valid[:len(valid)-1] + "0"},
	} {
		_, err := svc.VerifyCallback(context.Background(), input)
		require.Error(t, err)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
	}

	var fresh models.Order
	require.NoError(t, conn.First(&fresh, "id = ?", order.ID).Error)
	assert.Equal(t, enums.FinancialStatusPending, fresh.FinancialStatus)
}

func TestVerifyCallback_RepeatIsNoOp(t *testing.T) {
	conn := newTestDB(t)
	order := seedOrder(t, conn, 2050)
	gw := &stubGateway{payments: map[string]*gateway.Payment{
		"pay_123": {ID: "pay_123", AmountCents: 2050, Status: gateway.StatusCaptured},
	}}
	svc := newTestService(t, conn, gw)

	input := CallbackInput{
		OrderRef:   order.OrderNumber,
		PaymentRef: "pay_123",
		Signature:  gateway.SignCallback(testSecret, order.OrderNumber, "pay_123"),
	}

	first, err := svc.VerifyCallback(context.Background(), input)
	require.NoError(t, err)
	second, err := svc.VerifyCallback(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var paymentCount, eventCount int64
	require.NoError(t, conn.Model(&models.Payment{}).Count(&paymentCount).Error)
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&eventCount).Error)
	assert.Equal(t, int64(1), paymentCount)
	assert.Equal(t, int64(1), eventCount)
}

func TestVerifyCallback_NotCaptured(t *testing.T) {
	conn := newTestDB(t)
	order := seedOrder(t, conn, 2050)
	gw := &stubGateway{payments: map[string]*gateway.Payment{
		"pay_123": {ID: "pay_123", AmountCents: 2050, Status: gateway.StatusAuthorized},
	}}
	svc := newTestService(t, conn, gw)

	_, err := svc.VerifyCallback(context.Background(), CallbackInput{
		OrderRef:   order.OrderNumber,
		PaymentRef: "pay_123",
		Signature:  gateway.SignCallback(testSecret, order.OrderNumber, "pay_123"),
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeBusinessRule, typed.Code())

	var fresh models.Order
	require.NoError(t, conn.First(&fresh, "id = ?", order.ID).Error)
	assert.Equal(t, enums.FinancialStatusPending, fresh.FinancialStatus)
}

func TestVerifyCallback_AmountMismatch(t *testing.T) {
	conn := newTestDB(t)
	order := seedOrder(t, conn, 2050)
	gw := &stubGateway{payments: map[string]*gateway.Payment{
		"pay_123": {ID: "pay_123", AmountCents: 1, Status: gateway.StatusCaptured},
	}}
	svc := newTestService(t, conn, gw)

	_, err := svc.VerifyCallback(context.Background(), CallbackInput{
		OrderRef:   order.OrderNumber,
		PaymentRef: "pay_123",
		Signature:  gateway.SignCallback(testSecret, order.OrderNumber, "pay_123"),
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeBusinessRule, typed.Code())
}
