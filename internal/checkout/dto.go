package checkout

import (
	"github.com/google/uuid"

	"github.com/mfigueroa/ordercore-backend/pkg/types"
)

// AddressInput is the client-provided address, snapshotted verbatim onto
// the order.
type AddressInput struct {
	FullName   string
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
	Phone      string
}

// ItemInput is one requested line. There is deliberately no price field;
// prices are resolved from the catalog only.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	Variants  types.VariantPick
}

// CheckoutInput is a complete checkout request.
type CheckoutInput struct {
	Email           string
	Items           []ItemInput
	ShippingAddress AddressInput
	BillingAddress  *AddressInput
	CouponCode      string
	PaymentMethod   string
}
