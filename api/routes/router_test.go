package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/internal/catalog"
	"github.com/mfigueroa/ordercore-backend/internal/checkout"
	"github.com/mfigueroa/ordercore-backend/internal/orders"
	"github.com/mfigueroa/ordercore-backend/internal/payments"
	"github.com/mfigueroa/ordercore-backend/internal/pricing"
	"github.com/mfigueroa/ordercore-backend/internal/shipping"
	"github.com/mfigueroa/ordercore-backend/pkg/config"
	"github.com/mfigueroa/ordercore-backend/pkg/db"
	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
	"github.com/mfigueroa/ordercore-backend/pkg/enums"
	"github.com/mfigueroa/ordercore-backend/pkg/gateway"
	"github.com/mfigueroa/ordercore-backend/pkg/logger"
	"github.com/mfigueroa/ordercore-backend/pkg/outbox"
)

const testCallbackSecret = "router-callback-secret"

type stubGateway struct {
	payments map[string]*gateway.Payment
}

func (s *stubGateway) FetchPayment(ctx context.Context, paymentRef string) (*gateway.Payment, error) {
	if payment, ok := s.payments[paymentRef]; ok {
		return payment, nil
	}
	return nil, fmt.Errorf("unknown payment %s", paymentRef)
}

func (s *stubGateway) CallbackSecret() string { return testCallbackSecret }

type testEnv struct {
	conn    *gorm.DB
	gateway *stubGateway
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:routes_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.Coupon{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderAddress{},
		&models.Payment{},
		&models.OutboxEvent{},
		&models.OrderSequence{},
	))
	require.NoError(t, conn.Create(&models.OrderSequence{ID: 1, NextValue: 1}).Error)

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	client := db.FromConn(conn)
	products := catalog.NewProductRepository(conn)
	coupons := catalog.NewCouponRepository(conn)
	ordersRepo := orders.NewRepository(conn)
	publisher := outbox.NewService(outbox.NewRepository(conn), nil)

	pricer, err := pricing.NewEngine(products, coupons, nil)
	require.NoError(t, err)
	checkoutSvc, err := checkout.NewService(client, pricer, ordersRepo, products, coupons, publisher)
	require.NoError(t, err)
	ordersSvc, err := orders.NewService(ordersRepo)
	require.NoError(t, err)

	gw := &stubGateway{payments: map[string]*gateway.Payment{}}
	paymentsSvc, err := payments.NewService(client, gw, ordersRepo, payments.NewRepository(conn), publisher)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.App.Env = "dev"

	handler := NewRouter(RouterParams{
		Config:          cfg,
		Logger:          logg,
		CheckoutService: checkoutSvc,
		OrdersService:   ordersSvc,
		PaymentsService: paymentsSvc,
		Shipping:        shipping.NewRegistry(config.ShippingConfig{}, logg),
	})
	return &testEnv{conn: conn, gateway: gw, handler: handler}
}

func (env *testEnv) seedProduct(t *testing.T, slug string, priceCents int64, inventory int) *models.Product {
	t.Helper()
	product := &models.Product{
		Slug:           slug,
		Name:           "Product " + slug,
		BasePriceCents: priceCents,
		Inventory:      inventory,
		InStock:        inventory > 0,
	}
	require.NoError(t, env.conn.Create(product).Error)
	return product
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func checkoutBody(productID uuid.UUID, quantity int) map[string]any {
	return map[string]any{
		"email": "asha@example.com",
		"items": []map[string]any{
			{"product_id": productID, "quantity": quantity},
		},
		"shipping_address": map[string]any{
			"full_name":   "Asha Rao",
			"line1":       "14 MG Road",
			"city":        "Bengaluru",
			"region":      "KA",
			"postal_code": "560001",
			"country":     "IN",
		},
	}
}

func TestCheckoutEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, "widget", 1000, 10)

	rec := env.do(t, http.MethodPost, "/api/v1/orders", checkoutBody(product.ID, 2))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			OrderID       uuid.UUID `json:"order_id"`
			OrderNumber   string    `json:"order_number"`
			SubtotalCents int64     `json:"subtotal_cents"`
			TotalCents    int64     `json:"total_cents"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2000), resp.Data.SubtotalCents)
	assert.NotEmpty(t, resp.Data.OrderNumber)

	// The order reads back through the API with its items.
	rec = env.do(t, http.MethodGet, "/api/v1/orders/"+resp.Data.OrderID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var getResp struct {
		Data struct {
			Items []struct {
				ProductSlug    string `json:"product_slug"`
				UnitPriceCents int64  `json:"unit_price_cents"`
			} `json:"items"`
			FinancialStatus string `json:"financial_status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &getResp))
	require.Len(t, getResp.Data.Items, 1)
	assert.Equal(t, "widget", getResp.Data.Items[0].ProductSlug)
	assert.Equal(t, int64(1000), getResp.Data.Items[0].UnitPriceCents)
	assert.Equal(t, string(enums.FinancialStatusPending), getResp.Data.FinancialStatus)
}

func TestCheckoutRejectsClientPrices(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, "widget", 1000, 10)

	body := checkoutBody(product.ID, 1)
	items := body["items"].([]map[string]any)
	items[0]["unit_price_cents"] = 1

	rec := env.do(t, http.MethodPost, "/api/v1/orders", body)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")

	var count int64
	require.NoError(t, env.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCheckoutValidatesBody(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/orders", map[string]any{"email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestPaymentWebhookSettlesOrder(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, "widget", 1000, 10)

	rec := env.do(t, http.MethodPost, "/api/v1/orders", checkoutBody(product.ID, 2))
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Data struct {
			OrderID     uuid.UUID `json:"order_id"`
			OrderNumber string    `json:"order_number"`
			TotalCents  int64     `json:"total_cents"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	env.gateway.payments["pay_123"] = &gateway.Payment{
		ID:          "pay_123",
		OrderRef:    resp.Data.OrderNumber,
		AmountCents: resp.Data.TotalCents,
		Currency:    "INR",
		Status:      gateway.StatusCaptured,
	}
	signature := gateway.SignCallback(testCallbackSecret, resp.Data.OrderNumber, "pay_123")

	// The gateway's documented shape includes claimed order metadata.
	// It must parse, and the bogus claimed amount must not matter: the
	// amount check runs against the payment fetched from the gateway.
	rec = env.do(t, http.MethodPost, "/api/v1/webhooks/payment", map[string]any{
		"order_ref":   resp.Data.OrderNumber,
		"payment_ref": "pay_123",
		"signature":   signature,
		"order_meta": map[string]any{
			"id":     resp.Data.OrderID.String(),
			"email":  "asha@example.com",
			"amount": 1,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var order models.Order
	require.NoError(t, env.conn.First(&order, "id = ?", resp.Data.OrderID).Error)
	assert.Equal(t, enums.FinancialStatusPaid, order.FinancialStatus)

	// The confirmation mail event queues on capture, not at checkout.
	var mailCount int64
	require.NoError(t, env.conn.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventOrderConfirmationMail).
		Count(&mailCount).Error)
	assert.Equal(t, int64(1), mailCount)
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, "widget", 1000, 10)

	rec := env.do(t, http.MethodPost, "/api/v1/orders", checkoutBody(product.ID, 1))
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Data struct {
			OrderNumber string `json:"order_number"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = env.do(t, http.MethodPost, "/api/v1/webhooks/payment", map[string]any{
		"order_ref":   resp.Data.OrderNumber,
		"payment_ref": "pay_123",
		"signature":   "deadbeef",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
}

func TestTrackingUpdateThroughAPI(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, "widget", 1000, 10)

	rec := env.do(t, http.MethodPost, "/api/v1/orders", checkoutBody(product.ID, 1))
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Data struct {
			OrderID uuid.UUID `json:"order_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = env.do(t, http.MethodPatch, "/api/v1/orders/"+resp.Data.OrderID.String()+"/tracking", map[string]any{
		"tracking_number":    "AWB123",
		"carrier":            "delhivery",
		"fulfillment_status": "shipped",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated struct {
		Data struct {
			TrackingNumber    *string `json:"tracking_number"`
			FulfillmentStatus string  `json:"fulfillment_status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.NotNil(t, updated.Data.TrackingNumber)
	assert.Equal(t, "AWB123", *updated.Data.TrackingNumber)
	assert.Equal(t, "shipped", updated.Data.FulfillmentStatus)

	// Unknown status is rejected.
	rec = env.do(t, http.MethodPatch, "/api/v1/orders/"+resp.Data.OrderID.String()+"/tracking", map[string]any{
		"fulfillment_status": "teleported",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShippingLabelMockThroughAPI(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]any{
		"carrier":      "delhivery",
		"order_number": "ORD-1756600000-1",
		"address": map[string]any{
			"full_name":   "Asha Rao",
			"line1":       "14 MG Road",
			"city":        "Bengaluru",
			"region":      "KA",
			"postal_code": "560001",
		},
		"weight_grams": 500,
	}
	rec := env.do(t, http.MethodPost, "/api/v1/shipping/labels", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data shipping.LabelResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Success)
	assert.True(t, resp.Data.Mock)
	assert.Equal(t, "DELHIVERY-ORD-1756600000-1", resp.Data.TrackingNumber)

	// Unknown carriers are a validation error, not a panic.
	body["carrier"] = "fedex"
	rec = env.do(t, http.MethodPost, "/api/v1/shipping/labels", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", rec.Header().Get("X-OrderCore-Env"))

	rec = env.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetOrderNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/orders/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/orders/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
