package enums

// CouponType distinguishes percentage discounts from fixed-amount ones.
type CouponType string

const (
	CouponTypePercentage CouponType = "percentage"
	CouponTypeFixed      CouponType = "fixed"
)
