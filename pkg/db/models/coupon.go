package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/pkg/enums"
)

// Coupon is a discount rule keyed by a unique code. UsageCount may never
// exceed UsageLimit when a limit is set; the checkout transaction enforces
// that with a guarded increment.
type Coupon struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Code             string           `gorm:"column:code;uniqueIndex;not null"`
	Type             enums.CouponType `gorm:"column:type;not null"`
	Value            int64            `gorm:"column:value;not null"`
	MinAmountCents   *int64           `gorm:"column:min_amount_cents"`
	MaxDiscountCents *int64           `gorm:"column:max_discount_cents"`
	UsageLimit       *int             `gorm:"column:usage_limit"`
	UsageCount       int              `gorm:"column:usage_count;not null;default:0"`
	ValidFrom        time.Time        `gorm:"column:valid_from;not null"`
	ValidTo          time.Time        `gorm:"column:valid_to;not null"`
	Active           bool             `gorm:"column:active;not null;default:true"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Coupon) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
