package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderAddress is the immutable address snapshot captured per order. It is
// never a live reference to an address book entry: edits to a customer's
// saved addresses must not rewrite history on settled orders.
type OrderAddress struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	FullName   string    `gorm:"column:full_name;not null"`
	Line1      string    `gorm:"column:line1;not null"`
	Line2      *string   `gorm:"column:line2"`
	City       string    `gorm:"column:city;not null"`
	Region     string    `gorm:"column:region;not null"`
	PostalCode string    `gorm:"column:postal_code;not null"`
	Country    string    `gorm:"column:country;not null;default:'IN'"`
	Phone      *string   `gorm:"column:phone"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (a *OrderAddress) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
