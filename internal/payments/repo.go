package payments

import (
	"context"

	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
)

// Repository persists verified payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Payment, error)
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

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("payment_ref = ?", paymentRef).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
