package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/internal/orders"
	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
	"github.com/mfigueroa/ordercore-backend/pkg/enums"
	pkgerrors "github.com/mfigueroa/ordercore-backend/pkg/errors"
	"github.com/mfigueroa/ordercore-backend/pkg/gateway"
	"github.com/mfigueroa/ordercore-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type paymentFetcher interface {
	FetchPayment(ctx context.Context, paymentRef string) (*gateway.Payment, error)
	CallbackSecret() string
}

type outboxPublisher interface {
	EmitOnce(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CallbackInput is the gateway callback body. Only the references and
// the signature matter; the callback's claimed amount and status are
// never trusted.
type CallbackInput struct {
	OrderRef   string
	PaymentRef string
	Signature  string
}

// Service verifies gateway callbacks and settles the payment side of an
// order.
type Service interface {
	VerifyCallback(ctx context.Context, input CallbackInput) (*models.Payment, error)
}

type service struct {
	tx         txRunner
	gateway    paymentFetcher
	ordersRepo orders.Repository
	repo       Repository
	outbox     outboxPublisher
}

// NewService builds the payment verifier.
func NewService(tx txRunner, gw paymentFetcher, ordersRepo orders.Repository, repo Repository, publisher outboxPublisher) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if gw == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:         tx,
		gateway:    gw,
		ordersRepo: ordersRepo,
		repo:       repo,
		outbox:     publisher,
	}, nil
}

func (s *service) VerifyCallback(ctx context.Context, input CallbackInput) (*models.Payment, error) {
	if input.OrderRef == "" || input.PaymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order and payment references are required")
	}

	if !gateway.VerifySignature(s.gateway.CallbackSecret(), input.OrderRef, input.PaymentRef, input.Signature) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "signature mismatch")
	}

	// The callback only names the payment; everything about it is
	// re-read from the gateway.
	remote, err := s.gateway.FetchPayment(ctx, input.PaymentRef)
	if err != nil {
		return nil, err
	}
	if remote.Status != gateway.StatusCaptured {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "payment not captured").
			WithDetails(map[string]any{"status": remote.Status})
	}

	order, err := s.ordersRepo.FindByOrderNumber(ctx, input.OrderRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}

	if remote.AmountCents != order.TotalCents {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "payment amount mismatch").
			WithDetails(map[string]any{"expected": order.TotalCents, "actual": remote.AmountCents})
	}

	// Idempotent replay: same order, same payment, already settled.
	if order.FinancialStatus == enums.FinancialStatusPaid {
		if order.PaymentID != nil && *order.PaymentID == input.PaymentRef {
			return s.repo.FindByPaymentRef(ctx, input.PaymentRef)
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already paid with a different payment")
	}

	var payment *models.Payment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRepo.WithTx(tx)
		repo := s.repo.WithTx(tx)

		flipped, err := ordersRepo.MarkPaid(ctx, order.ID, input.PaymentRef)
		if err != nil {
			return err
		}
		if !flipped {
			// Lost the race to a concurrent callback for the same order.
			return pkgerrors.New(pkgerrors.CodeConflict, "order payment already being settled")
		}

		payment = &models.Payment{
			OrderID:     order.ID,
			PaymentRef:  input.PaymentRef,
			AmountCents: remote.AmountCents,
			Status:      enums.PaymentStatusCaptured,
			RawStatus:   remote.Status,
			VerifiedAt:  time.Now(),
		}
		if err := repo.Create(ctx, payment); err != nil {
			return err
		}

		return s.outbox.EmitOnce(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmationMail,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: outbox.ConfirmationMailPayload{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Email:       order.Email,
				TotalCents:  order.TotalCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}
