package enums

// FinancialStatus tracks the payment side of an order's lifecycle.
type FinancialStatus string

const (
	FinancialStatusPending  FinancialStatus = "pending"
	FinancialStatusPaid     FinancialStatus = "paid"
	FinancialStatusFailed   FinancialStatus = "failed"
	FinancialStatusRefunded FinancialStatus = "refunded"
)

// FulfillmentStatus tracks the shipping side of an order's lifecycle.
type FulfillmentStatus string

const (
	FulfillmentStatusUnfulfilled FulfillmentStatus = "unfulfilled"
	FulfillmentStatusProcessing  FulfillmentStatus = "processing"
	FulfillmentStatusShipped     FulfillmentStatus = "shipped"
	FulfillmentStatusDelivered   FulfillmentStatus = "delivered"
	FulfillmentStatusCancelled   FulfillmentStatus = "cancelled"
)

// IsValidFulfillmentStatus reports whether the value is a known status.
func IsValidFulfillmentStatus(value string) bool {
	switch FulfillmentStatus(value) {
	case FulfillmentStatusUnfulfilled,
		FulfillmentStatusProcessing,
		FulfillmentStatusShipped,
		FulfillmentStatusDelivered,
		FulfillmentStatusCancelled:
		return true
	}
	return false
}
