package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/pkg/types"
)

// OrderItem captures the per-line snapshot of an order. UnitPriceCents is the
// authoritative price at order time and is never recomputed.
type OrderItem struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID        uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	ProductName      string            `gorm:"column:product_name;not null"`
	ProductSlug      string            `gorm:"column:product_slug;not null"`
	Quantity         int               `gorm:"column:quantity;not null"`
	UnitPriceCents   int64             `gorm:"column:unit_price_cents;not null"`
	TotalCents       int64             `gorm:"column:total_cents;not null"`
	SelectedVariants types.VariantPick `gorm:"column:selected_variants;type:jsonb;serializer:json"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
