package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
	"github.com/mfigueroa/ordercore-backend/pkg/enums"
	pkgerrors "github.com/mfigueroa/ordercore-backend/pkg/errors"
)

// TrackingUpdate carries the optional fields of a partial tracking
// update. Nil fields are left untouched.
type TrackingUpdate struct {
	TrackingNumber    *string
	Carrier           *string
	ShippedAt         *time.Time
	EstimatedDelivery *time.Time
	FulfillmentStatus *string
}

// Service exposes order reads and the tracking mutation.
type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	UpdateTracking(ctx context.Context, id uuid.UUID, update TrackingUpdate) (*models.Order, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return order, nil
}

func (s *service) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	order, err := s.repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return order, nil
}

func (s *service) UpdateTracking(ctx context.Context, id uuid.UUID, update TrackingUpdate) (*models.Order, error) {
	fields := map[string]any{}
	if update.TrackingNumber != nil {
		fields["tracking_number"] = *update.TrackingNumber
	}
	if update.Carrier != nil {
		fields["carrier"] = *update.Carrier
	}
	if update.ShippedAt != nil {
		fields["shipped_at"] = *update.ShippedAt
	}
	if update.EstimatedDelivery != nil {
		fields["estimated_delivery"] = *update.EstimatedDelivery
	}
	if update.FulfillmentStatus != nil {
		if !enums.IsValidFulfillmentStatus(*update.FulfillmentStatus) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown fulfillment status %q", *update.FulfillmentStatus))
		}
		fields["fulfillment_status"] = *update.FulfillmentStatus
	}
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no tracking fields provided")
	}

	// Existence check first so a bad id reads as 404, not a silent no-op.
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateTracking(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}
