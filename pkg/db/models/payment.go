package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/pkg/enums"
)

// Payment records a verified gateway payment against an order.
type Payment struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	PaymentRef  string              `gorm:"column:payment_ref;uniqueIndex;not null"`
	AmountCents int64               `gorm:"column:amount_cents;not null"`
	Status      enums.PaymentStatus `gorm:"column:status;not null"`
	RawStatus   string              `gorm:"column:raw_status;not null"`
	VerifiedAt  time.Time           `gorm:"column:verified_at;not null"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
