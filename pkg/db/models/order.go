package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/pkg/enums"
)

// Order is the system of record for a settled checkout. Monetary fields are
// snapshots computed at checkout time and never recomputed afterwards.
type Order struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber       string                  `gorm:"column:order_number;uniqueIndex;not null"`
	Email             string                  `gorm:"column:email;not null"`
	SubtotalCents     int64                   `gorm:"column:subtotal_cents;not null"`
	DiscountCents     int64                   `gorm:"column:discount_cents;not null;default:0"`
	ShippingCents     int64                   `gorm:"column:shipping_cents;not null;default:0"`
	TaxCents          int64                   `gorm:"column:tax_cents;not null;default:0"`
	TotalCents        int64                   `gorm:"column:total_cents;not null"`
	FinancialStatus   enums.FinancialStatus   `gorm:"column:financial_status;not null;default:'pending'"`
	FulfillmentStatus enums.FulfillmentStatus `gorm:"column:fulfillment_status;not null;default:'unfulfilled'"`
	CouponCode        *string                 `gorm:"column:coupon_code"`
	PaymentID         *string                 `gorm:"column:payment_id"`
	PaymentMethod     *string                 `gorm:"column:payment_method"`
	ExternalERPID     *int64                  `gorm:"column:external_erp_id"`
	ShippingAddressID uuid.UUID               `gorm:"column:shipping_address_id;type:uuid;not null"`
	BillingAddressID  *uuid.UUID              `gorm:"column:billing_address_id;type:uuid"`
	TrackingNumber    *string                 `gorm:"column:tracking_number"`
	Carrier           *string                 `gorm:"column:carrier"`
	LabelURL          *string                 `gorm:"column:label_url"`
	ShippedAt         *time.Time              `gorm:"column:shipped_at"`
	EstimatedDelivery *time.Time              `gorm:"column:estimated_delivery"`
	Items             []OrderItem             `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ShippingAddress   *OrderAddress           `gorm:"foreignKey:ShippingAddressID"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
