package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mfigueroa/ordercore-backend/api/responses"
	"github.com/mfigueroa/ordercore-backend/api/validators"
	paymentssvc "github.com/mfigueroa/ordercore-backend/internal/payments"
	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
	pkgerrors "github.com/mfigueroa/ordercore-backend/pkg/errors"
	"github.com/mfigueroa/ordercore-backend/pkg/logger"
)

// PaymentWebhook receives the gateway callback. Nothing in the body is
// trusted: the signature is verified and the payment is re-fetched from
// the gateway before the order is marked paid.
func PaymentWebhook(svc paymentssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload paymentCallbackRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.VerifyCallback(r.Context(), paymentssvc.CallbackInput{
			OrderRef:   payload.OrderRef,
			PaymentRef: payload.PaymentRef,
			Signature:  payload.Signature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPaymentResponse(payment))
	}
}

type paymentCallbackRequest struct {
	OrderRef   string `json:"order_ref" validate:"required"`
	PaymentRef string `json:"payment_ref" validate:"required"`
	Signature  string `json:"signature" validate:"required"`

	// Gateways also post claimed order metadata. It is accepted so the
	// documented callback shape parses, and never read: the payment is
	// re-fetched from the gateway before anything is trusted.
	OrderMeta *paymentOrderMeta `json:"order_meta,omitempty"`
}

type paymentOrderMeta struct {
	ID     string      `json:"id,omitempty"`
	Email  string      `json:"email,omitempty"`
	Amount json.Number `json:"amount,omitempty"`
}

type paymentResponse struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	OrderID    uuid.UUID `json:"order_id"`
	PaymentRef string    `json:"payment_ref"`
	Status     string    `json:"status"`
	VerifiedAt time.Time `json:"verified_at"`
}

func newPaymentResponse(payment *models.Payment) paymentResponse {
	if payment == nil {
		return paymentResponse{}
	}
	return paymentResponse{
		PaymentID:  payment.ID,
		OrderID:    payment.OrderID,
		PaymentRef: payment.PaymentRef,
		Status:     string(payment.Status),
		VerifiedAt: payment.VerifiedAt,
	}
}
