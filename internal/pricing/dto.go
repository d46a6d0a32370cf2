package pricing

import (
	"github.com/google/uuid"

	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
	"github.com/mfigueroa/ordercore-backend/pkg/types"
)

// LineInput is one requested line. Quantity comes from the client; the
// price never does.
type LineInput struct {
	ProductID uuid.UUID
	Quantity  int
	Variants  types.VariantPick
}

// QuoteInput is a priced checkout request.
type QuoteInput struct {
	Lines      []LineInput
	CouponCode string
}

// QuoteLine carries the catalog-resolved price for one line plus the
// snapshot fields the order will persist.
type QuoteLine struct {
	ProductID      uuid.UUID
	ProductName    string
	ProductSlug    string
	Quantity       int
	UnitPriceCents int64
	TotalCents     int64
	Variants       types.VariantPick
}

// Quote is the authoritative price breakdown for a checkout request.
type Quote struct {
	Lines         []QuoteLine
	SubtotalCents int64
	DiscountCents int64
	ShippingCents int64
	TaxCents      int64
	TotalCents    int64
	Coupon        *models.Coupon
}
