package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/internal/orders"
	"github.com/mfigueroa/ordercore-backend/pkg/db"
	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
	pkgerrors "github.com/mfigueroa/ordercore-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service generates one invoice per order. Generation is idempotent:
// the worker may retry the invoice event any number of times.
type Service interface {
	Generate(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
}

type service struct {
	tx         txRunner
	repo       Repository
	ordersRepo orders.Repository
	now        func() time.Time
}

func NewService(tx txRunner, repo Repository, ordersRepo orders.Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("invoices repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{
		tx:         tx,
		repo:       repo,
		ordersRepo: ordersRepo,
		now:        time.Now,
	}, nil
}

func (s *service) Generate(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error) {
	existing, err := s.repo.FindByOrderID(ctx, orderID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	order, err := s.ordersRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}

	var invoice *models.Invoice
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		issuedAt := s.now()
		seq, err := repo.NextSequence(ctx, issuedAt.Year())
		if err != nil {
			return err
		}

		invoice = &models.Invoice{
			OrderID:       order.ID,
			InvoiceNumber: fmt.Sprintf("INV-%d-%06d", issuedAt.Year(), seq),
			AmountCents:   order.TotalCents,
			IssuedAt:      issuedAt,
		}
		return repo.Create(ctx, invoice)
	})
	if txErr != nil {
		// A concurrent retry may have won the unique order_id index;
		// return its invoice instead of failing.
		if db.IsUniqueViolation(txErr, "") {
			return s.repo.FindByOrderID(ctx, orderID)
		}
		return nil, txErr
	}
	return invoice, nil
}
