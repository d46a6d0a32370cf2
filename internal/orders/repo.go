package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
	"github.com/mfigueroa/ordercore-backend/pkg/enums"
)

// Repository persists orders and their immutable snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	CreateAddress(ctx context.Context, address *models.OrderAddress) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	NextOrderSequence(ctx context.Context) (int64, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, paymentRef string) (bool, error)
	SetExternalERPID(ctx context.Context, orderID uuid.UUID, erpID int64) (bool, error)
	UpdateTracking(ctx context.Context, orderID uuid.UUID, fields map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) CreateAddress(ctx context.Context, address *models.OrderAddress) error {
	return r.db.WithContext(ctx).Create(address).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("ShippingAddress").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("ShippingAddress").
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// NextOrderSequence mints the next order number sequence. The increment
// takes a row lock, so concurrent transactions serialize here and each
// gets a distinct value. Must run inside the checkout transaction.
func (r *repository) NextOrderSequence(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderSequence{}).
		Where("id = ?", 1).
		Update("next_value", gorm.Expr("next_value + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("order sequence row missing")
	}

	var seq models.OrderSequence
	if err := r.db.WithContext(ctx).Where("id = ?", 1).First(&seq).Error; err != nil {
		return 0, err
	}
	return seq.NextValue - 1, nil
}

// MarkPaid flips a pending order to paid. The status guard makes the
// flip happen at most once; callers decide how to treat a zero-row
// result.
func (r *repository) MarkPaid(ctx context.Context, orderID uuid.UUID, paymentRef string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND financial_status = ?", orderID, enums.FinancialStatusPending).
		Updates(map[string]any{
			"financial_status": enums.FinancialStatusPaid,
			"payment_id":       paymentRef,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetExternalERPID records the ERP order id, write-once.
func (r *repository) SetExternalERPID(ctx context.Context, orderID uuid.UUID, erpID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND external_erp_id IS NULL", orderID).
		Update("external_erp_id", erpID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdateTracking(ctx context.Context, orderID uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now()
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(fields).Error
}
