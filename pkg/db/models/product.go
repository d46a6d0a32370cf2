package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Product is the local catalog entry. ExternalERPID links it to the ERP's
// product template; the link is written once when the catalog sync first
// matches the product by slug.
type Product struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Slug           string           `gorm:"column:slug;uniqueIndex;not null"`
	Name           string           `gorm:"column:name;not null"`
	BasePriceCents int64            `gorm:"column:base_price_cents;not null"`
	Inventory      int              `gorm:"column:inventory;not null;default:0"`
	InStock        bool             `gorm:"column:in_stock;not null;default:true"`
	ExternalERPID  *int64           `gorm:"column:external_erp_id;index"`
	CategoryTags   pq.StringArray   `gorm:"column:category_tags;type:text[]"`
	Variants       []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProductVariant is a name/value option with a price delta relative to the
// product's base price.
type ProductVariant struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID            uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Name                 string    `gorm:"column:name;not null"`
	Value                string    `gorm:"column:value;not null"`
	PriceAdjustmentCents int64     `gorm:"column:price_adjustment_cents;not null;default:0"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
