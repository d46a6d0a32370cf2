package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/internal/catalog"
	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
	"github.com/mfigueroa/ordercore-backend/pkg/enums"
	pkgerrors "github.com/mfigueroa/ordercore-backend/pkg/errors"
	"github.com/mfigueroa/ordercore-backend/pkg/types"
)

type stubProducts struct {
	byID map[uuid.UUID]*models.Product
}

func (s *stubProducts) WithTx(tx *gorm.DB) catalog.ProductRepository { return s }

func (s *stubProducts) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	if p, ok := s.byID[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubProducts) FindByIDs(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := s.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubProducts) FindBySlug(_ context.Context, slug string) (*models.Product, error) {
	for _, p := range s.byID {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubProducts) FindByExternalERPID(_ context.Context, _ int64) (*models.Product, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubProducts) Create(_ context.Context, _ *models.Product) error { return nil }
func (s *stubProducts) Update(_ context.Context, _ *models.Product) error { return nil }

func (s *stubProducts) DecrementInventory(_ context.Context, _ uuid.UUID, _ int) (bool, error) {
	return true, nil
}

type stubCoupons struct {
	byCode map[string]*models.Coupon
}

func (s *stubCoupons) WithTx(tx *gorm.DB) catalog.CouponRepository { return s }

func (s *stubCoupons) FindByCode(_ context.Context, code string) (*models.Coupon, error) {
	if c, ok := s.byCode[code]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCoupons) IncrementUsage(_ context.Context, _ uuid.UUID) (bool, error) {
	return true, nil
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func validCoupon(code string) *models.Coupon {
	return &models.Coupon{
		ID:        uuid.New(),
		Code:      code,
		Active:    true,
		ValidFrom: time.Now().Add(-time.Hour),
		ValidTo:   time.Now().Add(time.Hour),
	}
}

func newTestEngine(t *testing.T, products *stubProducts, coupons *stubCoupons, rates RateProvider) Engine {
	t.Helper()
	eng, err := NewEngine(products, coupons, rates)
	require.NoError(t, err)
	return eng
}

func TestQuote_VariantAdjustedPercentageCoupon(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	products := &stubProducts{byID: map[uuid.UUID]*models.Product{
		productID: {
			ID:             productID,
			Slug:           "widget",
			Name:           "Widget",
			BasePriceCents: 1000,
			Inventory:      10,
			InStock:        true,
			Variants: []models.ProductVariant{
				{Name: "size", Value: "large", PriceAdjustmentCents: 100},
				{Name: "size", Value: "small", PriceAdjustmentCents: -50},
			},
		},
	}}
	coupon := validCoupon("SAVE10")
	coupon.Type = enums.CouponTypePercentage
	coupon.Value = 10
	coupon.MinAmountCents = int64Ptr(500)
	coupon.MaxDiscountCents = int64Ptr(150)
	coupons := &stubCoupons{byCode: map[string]*models.Coupon{"SAVE10": coupon}}

	eng := newTestEngine(t, products, coupons, nil)

	quote, err := eng.Quote(context.Background(), QuoteInput{
		Lines: []LineInput{{
			ProductID: productID,
			Quantity:  2,
			Variants:  types.VariantPick{"size": "large"},
		}},
		CouponCode: "SAVE10",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1100), quote.Lines[0].UnitPriceCents)
	assert.Equal(t, int64(2200), quote.SubtotalCents)
	// 10% of 2200 is 220, capped at 150.
	assert.Equal(t, int64(150), quote.DiscountCents)
	assert.Equal(t, int64(2050), quote.TotalCents)
}

func TestQuote_CouponMinimumNotMet(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	products := &stubProducts{byID: map[uuid.UUID]*models.Product{
		productID: {ID: productID, Slug: "widget", Name: "Widget", BasePriceCents: 1000, Inventory: 5, InStock: true},
	}}
	coupon := validCoupon("BIGSPEND")
	coupon.Type = enums.CouponTypePercentage
	coupon.Value = 10
	coupon.MinAmountCents = int64Ptr(5000)
	coupons := &stubCoupons{byCode: map[string]*models.Coupon{"BIGSPEND": coupon}}

	eng := newTestEngine(t, products, coupons, nil)

	_, err := eng.Quote(context.Background(), QuoteInput{
		Lines:      []LineInput{{ProductID: productID, Quantity: 1}},
		CouponCode: "BIGSPEND",
	})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeBusinessRule, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "coupon_minimum_not_met", details["reason"])
}

func TestQuote_UnknownProduct(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, &stubProducts{byID: map[uuid.UUID]*models.Product{}}, &stubCoupons{}, nil)

	_, err := eng.Quote(context.Background(), QuoteInput{
		Lines: []LineInput{{ProductID: uuid.New(), Quantity: 1}},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestQuote_OutOfStock(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	products := &stubProducts{byID: map[uuid.UUID]*models.Product{
		productID: {ID: productID, Slug: "widget", BasePriceCents: 1000, Inventory: 1, InStock: true},
	}}
	eng := newTestEngine(t, products, &stubCoupons{}, nil)

	_, err := eng.Quote(context.Background(), QuoteInput{
		Lines: []LineInput{{ProductID: productID, Quantity: 3}},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeBusinessRule, typed.Code())
}

func TestQuote_UnknownVariantSelectionIgnored(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	products := &stubProducts{byID: map[uuid.UUID]*models.Product{
		productID: {
			ID: productID, Slug: "widget", BasePriceCents: 1000, Inventory: 5, InStock: true,
			Variants: []models.ProductVariant{{Name: "size", Value: "large", PriceAdjustmentCents: 100}},
		},
	}}
	eng := newTestEngine(t, products, &stubCoupons{}, nil)

	quote, err := eng.Quote(context.Background(), QuoteInput{
		Lines: []LineInput{{
			ProductID: productID,
			Quantity:  1,
			Variants:  types.VariantPick{"size": "xxl", "bogus": "value"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), quote.Lines[0].UnitPriceCents)
}

func TestQuote_NegativeRatesClamped(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	products := &stubProducts{byID: map[uuid.UUID]*models.Product{
		productID: {ID: productID, Slug: "widget", BasePriceCents: 1000, Inventory: 5, InStock: true},
	}}
	eng := newTestEngine(t, products, &stubCoupons{}, StaticRates{Shipping: -500, Tax: -200})

	quote, err := eng.Quote(context.Background(), QuoteInput{
		Lines: []LineInput{{ProductID: productID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), quote.ShippingCents)
	assert.Equal(t, int64(0), quote.TaxCents)
	assert.Equal(t, int64(1000), quote.TotalCents)
}

func TestQuote_FixedCouponNeverDrivesTotalNegative(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	products := &stubProducts{byID: map[uuid.UUID]*models.Product{
		productID: {ID: productID, Slug: "widget", BasePriceCents: 300, Inventory: 5, InStock: true},
	}}
	coupon := validCoupon("HUGE")
	coupon.Type = enums.CouponTypeFixed
	coupon.Value = 100000
	coupons := &stubCoupons{byCode: map[string]*models.Coupon{"HUGE": coupon}}

	eng := newTestEngine(t, products, coupons, nil)

	quote, err := eng.Quote(context.Background(), QuoteInput{
		Lines:      []LineInput{{ProductID: productID, Quantity: 1}},
		CouponCode: "HUGE",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(300), quote.DiscountCents)
	assert.Equal(t, int64(0), quote.TotalCents)
}

func TestQuote_ExhaustedCoupon(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	products := &stubProducts{byID: map[uuid.UUID]*models.Product{
		productID: {ID: productID, Slug: "widget", BasePriceCents: 1000, Inventory: 5, InStock: true},
	}}
	coupon := validCoupon("ONCE")
	coupon.Type = enums.CouponTypeFixed
	coupon.Value = 100
	coupon.UsageLimit = intPtr(1)
	coupon.UsageCount = 1
	coupons := &stubCoupons{byCode: map[string]*models.Coupon{"ONCE": coupon}}

	eng := newTestEngine(t, products, coupons, nil)

	_, err := eng.Quote(context.Background(), QuoteInput{
		Lines:      []LineInput{{ProductID: productID, Quantity: 1}},
		CouponCode: "ONCE",
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "coupon_exhausted", details["reason"])
}

func TestQuote_ExpiredCoupon(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	products := &stubProducts{byID: map[uuid.UUID]*models.Product{
		productID: {ID: productID, Slug: "widget", BasePriceCents: 1000, Inventory: 5, InStock: true},
	}}
	coupon := validCoupon("OLD")
	coupon.Type = enums.CouponTypeFixed
	coupon.Value = 100
	coupon.ValidTo = time.Now().Add(-time.Minute)
	coupons := &stubCoupons{byCode: map[string]*models.Coupon{"OLD": coupon}}

	eng := newTestEngine(t, products, coupons, nil)

	_, err := eng.Quote(context.Background(), QuoteInput{
		Lines:      []LineInput{{ProductID: productID, Quantity: 1}},
		CouponCode: "OLD",
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "invalid_coupon", details["reason"])
}
