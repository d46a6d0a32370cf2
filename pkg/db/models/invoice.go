package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invoice is generated by the outbox worker after checkout, one per order.
type Invoice struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID `gorm:"column:order_id;type:uuid;uniqueIndex;not null"`
	InvoiceNumber string    `gorm:"column:invoice_number;uniqueIndex;not null"`
	AmountCents   int64     `gorm:"column:amount_cents;not null"`
	IssuedAt      time.Time `gorm:"column:issued_at;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
