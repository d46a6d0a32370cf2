package checkout

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mfigueroa/ordercore-backend/internal/catalog"
	"github.com/mfigueroa/ordercore-backend/internal/orders"
	"github.com/mfigueroa/ordercore-backend/internal/pricing"
	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
	"github.com/mfigueroa/ordercore-backend/pkg/enums"
	pkgerrors "github.com/mfigueroa/ordercore-backend/pkg/errors"
	"github.com/mfigueroa/ordercore-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service executes checkout orchestration. Everything happens inside one
// transaction: pricing, persistence, inventory, coupon redemption, and
// the outbox rows for downstream fan-out. A failure at any step leaves
// no trace.
type Service interface {
	Execute(ctx context.Context, input CheckoutInput) (*models.Order, error)
}

type service struct {
	tx         txRunner
	pricer     pricing.Engine
	ordersRepo orders.Repository
	products   catalog.ProductRepository
	coupons    catalog.CouponRepository
	outbox     outboxPublisher
	now        func() time.Time
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	pricer pricing.Engine,
	ordersRepo orders.Repository,
	products catalog.ProductRepository,
	coupons catalog.CouponRepository,
	publisher outboxPublisher,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if pricer == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:         tx,
		pricer:     pricer,
		ordersRepo: ordersRepo,
		products:   products,
		coupons:    coupons,
		outbox:     publisher,
		now:        time.Now,
	}, nil
}

func (s *service) Execute(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	if input.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRepo.WithTx(tx)
		products := s.products.WithTx(tx)
		coupons := s.coupons.WithTx(tx)

		lines := make([]pricing.LineInput, len(input.Items))
		for i, item := range input.Items {
			lines[i] = pricing.LineInput{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Variants:  item.Variants,
			}
		}

		quote, err := s.pricer.WithTx(tx).Quote(ctx, pricing.QuoteInput{
			Lines:      lines,
			CouponCode: input.CouponCode,
		})
		if err != nil {
			return err
		}

		shippingAddr := addressModel(input.ShippingAddress)
		if err := ordersRepo.CreateAddress(ctx, shippingAddr); err != nil {
			return err
		}
		order := &models.Order{
			Email:             input.Email,
			SubtotalCents:     quote.SubtotalCents,
			DiscountCents:     quote.DiscountCents,
			ShippingCents:     quote.ShippingCents,
			TaxCents:          quote.TaxCents,
			TotalCents:        quote.TotalCents,
			FinancialStatus:   enums.FinancialStatusPending,
			FulfillmentStatus: enums.FulfillmentStatusUnfulfilled,
			ShippingAddressID: shippingAddr.ID,
		}
		if input.BillingAddress != nil {
			billingAddr := addressModel(*input.BillingAddress)
			if err := ordersRepo.CreateAddress(ctx, billingAddr); err != nil {
				return err
			}
			order.BillingAddressID = &billingAddr.ID
		}
		if quote.Coupon != nil {
			code := quote.Coupon.Code
			order.CouponCode = &code
		}
		if input.PaymentMethod != "" {
			method := input.PaymentMethod
			order.PaymentMethod = &method
		}

		seq, err := ordersRepo.NextOrderSequence(ctx)
		if err != nil {
			return err
		}
		order.OrderNumber = fmt.Sprintf("ORD-%d-%d", s.now().Unix(), seq)

		order.Items = make([]models.OrderItem, len(quote.Lines))
		for i, line := range quote.Lines {
			order.Items[i] = models.OrderItem{
				ProductID:        line.ProductID,
				ProductName:      line.ProductName,
				ProductSlug:      line.ProductSlug,
				Quantity:         line.Quantity,
				UnitPriceCents:   line.UnitPriceCents,
				TotalCents:       line.TotalCents,
				SelectedVariants: line.Variants,
			}
		}

		if err := ordersRepo.Create(ctx, order); err != nil {
			return err
		}

		for _, line := range quote.Lines {
			ok, err := products.DecrementInventory(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("insufficient inventory for %s", line.ProductSlug))
			}
		}

		if quote.Coupon != nil {
			ok, err := coupons.IncrementUsage(ctx, quote.Coupon.ID)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, "coupon usage limit reached")
			}
		}

		if err := s.emitFanout(ctx, tx, order); err != nil {
			return err
		}

		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// emitFanout records the post-checkout side effects as outbox rows in the
// same transaction. The worker performs them after commit. The
// confirmation mail is not queued here: the order is still pending, and
// the payment callback emits the mail event once the payment captures.
func (s *service) emitFanout(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	events := []outbox.DomainEvent{
		{
			EventType:     enums.EventOrderInvoiceRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data:          outbox.InvoiceRequestedPayload{OrderID: order.ID, OrderNumber: order.OrderNumber},
		},
		{
			EventType:     enums.EventOrderERPPushRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data:          outbox.ERPPushRequestedPayload{OrderID: order.ID, OrderNumber: order.OrderNumber},
		},
	}
	for _, event := range events {
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
	}
	return nil
}

func addressModel(input AddressInput) *models.OrderAddress {
	addr := &models.OrderAddress{
		FullName:   input.FullName,
		Line1:      input.Line1,
		City:       input.City,
		Region:     input.Region,
		PostalCode: input.PostalCode,
		Country:    input.Country,
	}
	if input.Line2 != "" {
		line2 := input.Line2
		addr.Line2 = &line2
	}
	if input.Phone != "" {
		phone := input.Phone
		addr.Phone = &phone
	}
	if addr.Country == "" {
		addr.Country = "IN"
	}
	return addr
}
