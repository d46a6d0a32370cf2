package pricing

import "context"

// RateProvider supplies shipping and tax amounts for a quoted subtotal.
// Negative values are clamped to zero by the engine.
type RateProvider interface {
	ShippingCents(ctx context.Context, subtotalCents int64) int64
	TaxCents(ctx context.Context, subtotalCents int64) int64
}

// StaticRates is a RateProvider with fixed amounts, the default until a
// rate card integration lands.
type StaticRates struct {
	Shipping int64
	Tax      int64
}

func (s StaticRates) ShippingCents(_ context.Context, _ int64) int64 { return s.Shipping }
func (s StaticRates) TaxCents(_ context.Context, _ int64) int64      { return s.Tax }
