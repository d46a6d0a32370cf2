package invoices

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
)

// Repository persists invoices and the per-year number sequence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
	NextSequence(ctx context.Context, year int) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// NextSequence mints the next invoice number for the year, creating the
// year's counter row on first use. The increment takes a row lock, so
// concurrent invoice generation serializes per year.
func (r *repository) NextSequence(ctx context.Context, year int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InvoiceSequence{}).
		Where("id = ?", year).
		Update("next_value", gorm.Expr("next_value + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		row := models.InvoiceSequence{ID: year, Year: year, NextValue: 2}
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return 0, fmt.Errorf("create invoice sequence for %d: %w", year, err)
		}
		return 1, nil
	}

	var seq models.InvoiceSequence
	if err := r.db.WithContext(ctx).Where("id = ?", year).First(&seq).Error; err != nil {
		return 0, err
	}
	return seq.NextValue - 1, nil
}
