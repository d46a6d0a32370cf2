package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mfigueroa/ordercore-backend/api/responses"
	"github.com/mfigueroa/ordercore-backend/api/validators"
	checkoutsvc "github.com/mfigueroa/ordercore-backend/internal/checkout"
	orderssvc "github.com/mfigueroa/ordercore-backend/internal/orders"
	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
	pkgerrors "github.com/mfigueroa/ordercore-backend/pkg/errors"
	"github.com/mfigueroa/ordercore-backend/pkg/logger"
	"github.com/mfigueroa/ordercore-backend/pkg/types"
)

// Checkout settles a new order. The request carries no price fields;
// every amount on the response was computed server side.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Execute(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

// GetOrder returns one order with its line items and addresses.
func GetOrder(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id"))
			return
		}

		order, err := svc.GetByID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// UpdateTracking applies a partial tracking update to an order.
func UpdateTracking(svc orderssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id"))
			return
		}

		var payload trackingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.UpdateTracking(r.Context(), orderID, orderssvc.TrackingUpdate{
			TrackingNumber:    payload.TrackingNumber,
			Carrier:           payload.Carrier,
			ShippedAt:         payload.ShippedAt,
			EstimatedDelivery: payload.EstimatedDelivery,
			FulfillmentStatus: payload.FulfillmentStatus,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type addressRequest struct {
	FullName   string `json:"full_name" validate:"required"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	Region     string `json:"region" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type itemRequest struct {
	ProductID uuid.UUID         `json:"product_id" validate:"required"`
	Quantity  int               `json:"quantity" validate:"required,min=1"`
	Variants  types.VariantPick `json:"variants,omitempty"`
}

type checkoutRequest struct {
	Email           string          `json:"email" validate:"required,email"`
	Items           []itemRequest   `json:"items" validate:"required,min=1,dive"`
	ShippingAddress addressRequest  `json:"shipping_address" validate:"required"`
	BillingAddress  *addressRequest `json:"billing_address,omitempty"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
}

func (req checkoutRequest) toInput() checkoutsvc.CheckoutInput {
	items := make([]checkoutsvc.ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, checkoutsvc.ItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Variants:  item.Variants,
		})
	}
	input := checkoutsvc.CheckoutInput{
		Email:           req.Email,
		Items:           items,
		ShippingAddress: toAddressInput(req.ShippingAddress),
		CouponCode:      req.CouponCode,
		PaymentMethod:   req.PaymentMethod,
	}
	if req.BillingAddress != nil {
		billing := toAddressInput(*req.BillingAddress)
		input.BillingAddress = &billing
	}
	return input
}

func toAddressInput(req addressRequest) checkoutsvc.AddressInput {
	return checkoutsvc.AddressInput{
		FullName:   req.FullName,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		Region:     req.Region,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		Phone:      req.Phone,
	}
}

type trackingRequest struct {
	TrackingNumber    *string    `json:"tracking_number,omitempty"`
	Carrier           *string    `json:"carrier,omitempty"`
	ShippedAt         *time.Time `json:"shipped_at,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	FulfillmentStatus *string    `json:"fulfillment_status,omitempty"`
}

type orderResponse struct {
	OrderID           uuid.UUID           `json:"order_id"`
	OrderNumber       string              `json:"order_number"`
	Email             string              `json:"email"`
	SubtotalCents     int64               `json:"subtotal_cents"`
	DiscountCents     int64               `json:"discount_cents"`
	ShippingCents     int64               `json:"shipping_cents"`
	TaxCents          int64               `json:"tax_cents"`
	TotalCents        int64               `json:"total_cents"`
	FinancialStatus   string              `json:"financial_status"`
	FulfillmentStatus string              `json:"fulfillment_status"`
	CouponCode        *string             `json:"coupon_code,omitempty"`
	PaymentMethod     *string             `json:"payment_method,omitempty"`
	TrackingNumber    *string             `json:"tracking_number,omitempty"`
	Carrier           *string             `json:"carrier,omitempty"`
	ShippedAt         *time.Time          `json:"shipped_at,omitempty"`
	EstimatedDelivery *time.Time          `json:"estimated_delivery,omitempty"`
	Items             []orderItemResponse `json:"items"`
	ShippingAddress   *addressResponse    `json:"shipping_address,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}

type orderItemResponse struct {
	ItemID           uuid.UUID         `json:"item_id"`
	ProductID        uuid.UUID         `json:"product_id"`
	ProductName      string            `json:"product_name"`
	ProductSlug      string            `json:"product_slug"`
	Quantity         int               `json:"quantity"`
	UnitPriceCents   int64             `json:"unit_price_cents"`
	TotalCents       int64             `json:"total_cents"`
	SelectedVariants types.VariantPick `json:"selected_variants,omitempty"`
}

type addressResponse struct {
	FullName   string  `json:"full_name"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	Region     string  `json:"region"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone,omitempty"`
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{}
	}
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ItemID:           item.ID,
			ProductID:        item.ProductID,
			ProductName:      item.ProductName,
			ProductSlug:      item.ProductSlug,
			Quantity:         item.Quantity,
			UnitPriceCents:   item.UnitPriceCents,
			TotalCents:       item.TotalCents,
			SelectedVariants: item.SelectedVariants,
		})
	}
	resp := orderResponse{
		OrderID:           order.ID,
		OrderNumber:       order.OrderNumber,
		Email:             order.Email,
		SubtotalCents:     order.SubtotalCents,
		DiscountCents:     order.DiscountCents,
		ShippingCents:     order.ShippingCents,
		TaxCents:          order.TaxCents,
		TotalCents:        order.TotalCents,
		FinancialStatus:   string(order.FinancialStatus),
		FulfillmentStatus: string(order.FulfillmentStatus),
		CouponCode:        order.CouponCode,
		PaymentMethod:     order.PaymentMethod,
		TrackingNumber:    order.TrackingNumber,
		Carrier:           order.Carrier,
		ShippedAt:         order.ShippedAt,
		EstimatedDelivery: order.EstimatedDelivery,
		Items:             items,
		CreatedAt:         order.CreatedAt,
	}
	if order.ShippingAddress != nil {
		resp.ShippingAddress = &addressResponse{
			FullName:   order.ShippingAddress.FullName,
			Line1:      order.ShippingAddress.Line1,
			Line2:      order.ShippingAddress.Line2,
			City:       order.ShippingAddress.City,
			Region:     order.ShippingAddress.Region,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
			Phone:      order.ShippingAddress.Phone,
		}
	}
	return resp
}
