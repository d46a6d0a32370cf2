package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/internal/catalog"
	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
	"github.com/mfigueroa/ordercore-backend/pkg/enums"
	pkgerrors "github.com/mfigueroa/ordercore-backend/pkg/errors"
)

// Engine computes authoritative prices from the catalog. Client-supplied
// amounts never enter the computation.
type Engine interface {
	WithTx(tx *gorm.DB) Engine
	Quote(ctx context.Context, input QuoteInput) (*Quote, error)
}

type engine struct {
	products catalog.ProductRepository
	coupons  catalog.CouponRepository
	rates    RateProvider
	now      func() time.Time
}

// NewEngine builds the pricing engine.
func NewEngine(products catalog.ProductRepository, coupons catalog.CouponRepository, rates RateProvider) (Engine, error) {
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if rates == nil {
		rates = StaticRates{}
	}
	return &engine{
		products: products,
		coupons:  coupons,
		rates:    rates,
		now:      time.Now,
	}, nil
}

// WithTx rebinds the catalog reads to tx so a quote taken inside the
// checkout transaction sees the rows it is about to mutate.
func (e *engine) WithTx(tx *gorm.DB) Engine {
	if tx == nil {
		return e
	}
	return &engine{
		products: e.products.WithTx(tx),
		coupons:  e.coupons.WithTx(tx),
		rates:    e.rates,
		now:      e.now,
	}
}

func (e *engine) Quote(ctx context.Context, input QuoteInput) (*Quote, error) {
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}

	quote := &Quote{Lines: make([]QuoteLine, 0, len(input.Lines))}

	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}

		product, err := e.products.FindByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", line.ProductID))
			}
			return nil, err
		}

		if !product.InStock || product.Inventory < line.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, fmt.Sprintf("product %s is out of stock", product.Slug)).
				WithDetails(map[string]any{"productId": product.ID, "available": product.Inventory})
		}

		unitPrice := product.BasePriceCents + variantAdjustment(product.Variants, line.Variants)
		lineTotal := unitPrice * int64(line.Quantity)

		quote.Lines = append(quote.Lines, QuoteLine{
			ProductID:      product.ID,
			ProductName:    product.Name,
			ProductSlug:    product.Slug,
			Quantity:       line.Quantity,
			UnitPriceCents: unitPrice,
			TotalCents:     lineTotal,
			Variants:       line.Variants,
		})
		quote.SubtotalCents += lineTotal
	}

	if code := strings.TrimSpace(input.CouponCode); code != "" {
		coupon, err := e.validateCoupon(ctx, code, quote.SubtotalCents)
		if err != nil {
			return nil, err
		}
		quote.Coupon = coupon
		quote.DiscountCents = discountFor(coupon, quote.SubtotalCents)
	}

	quote.ShippingCents = clampNonNegative(e.rates.ShippingCents(ctx, quote.SubtotalCents))
	quote.TaxCents = clampNonNegative(e.rates.TaxCents(ctx, quote.SubtotalCents))

	total := quote.SubtotalCents + quote.ShippingCents + quote.TaxCents - quote.DiscountCents
	quote.TotalCents = clampNonNegative(total)

	return quote, nil
}

// variantAdjustment sums the price deltas of the selected options that
// actually exist on the product. Selections with no matching catalog row
// are ignored rather than rejected.
func variantAdjustment(variants []models.ProductVariant, picked map[string]string) int64 {
	if len(picked) == 0 {
		return 0
	}
	var adjustment int64
	for _, variant := range variants {
		if value, ok := picked[variant.Name]; ok && value == variant.Value {
			adjustment += variant.PriceAdjustmentCents
		}
	}
	return adjustment
}

func (e *engine) validateCoupon(ctx context.Context, code string, subtotalCents int64) (*models.Coupon, error) {
	coupon, err := e.coupons.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "coupon is not valid").
				WithDetails(map[string]any{"reason": "invalid_coupon"})
		}
		return nil, err
	}

	now := e.now()
	if !coupon.Active || now.Before(coupon.ValidFrom) || now.After(coupon.ValidTo) {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "coupon is not valid").
			WithDetails(map[string]any{"reason": "invalid_coupon"})
	}
	if coupon.MinAmountCents != nil && subtotalCents < *coupon.MinAmountCents {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "order does not meet the coupon minimum").
			WithDetails(map[string]any{"reason": "coupon_minimum_not_met", "minimum": *coupon.MinAmountCents})
	}
	if coupon.UsageLimit != nil && coupon.UsageCount >= *coupon.UsageLimit {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "coupon usage limit reached").
			WithDetails(map[string]any{"reason": "coupon_exhausted"})
	}
	return coupon, nil
}

// discountFor computes the coupon discount in cents, capped at the
// coupon's maximum and at the subtotal itself.
func discountFor(coupon *models.Coupon, subtotalCents int64) int64 {
	var discount int64
	switch coupon.Type {
	case enums.CouponTypePercentage:
		discount = decimal.NewFromInt(subtotalCents).
			Mul(decimal.NewFromInt(coupon.Value)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
	case enums.CouponTypeFixed:
		discount = coupon.Value
	default:
		return 0
	}

	if coupon.MaxDiscountCents != nil && discount > *coupon.MaxDiscountCents {
		discount = *coupon.MaxDiscountCents
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	return clampNonNegative(discount)
}

func clampNonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
