package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mfigueroa/ordercore-backend/api/responses"
	"github.com/mfigueroa/ordercore-backend/api/validators"
	"github.com/mfigueroa/ordercore-backend/internal/shipping"
	"github.com/mfigueroa/ordercore-backend/pkg/enums"
	pkgerrors "github.com/mfigueroa/ordercore-backend/pkg/errors"
	"github.com/mfigueroa/ordercore-backend/pkg/logger"
)

// GenerateLabel creates a shipping label with the requested carrier.
// Carrier failures come back error-tagged in the result body, not as
// HTTP errors; only bad requests fail the call itself.
func GenerateLabel(registry *shipping.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping registry unavailable"))
			return
		}

		var payload labelRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		carrier, err := registry.Get(enums.CarrierCode(payload.Carrier))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithCarrier(r.Context(), payload.Carrier)
		result := carrier.GenerateLabel(ctx, shipping.LabelInput{
			OrderNumber:    payload.OrderNumber,
			Address:        payload.Address.toShipping(),
			WeightGrams:    payload.WeightGrams,
			Dimensions:     payload.Dimensions.toShipping(),
			CODAmountCents: payload.CODAmountCents,
		})
		responses.WriteSuccess(w, result)
	}
}

// SchedulePickup books a carrier pickup for a labeled shipment.
func SchedulePickup(registry *shipping.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping registry unavailable"))
			return
		}

		var payload pickupRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		carrier, err := registry.Get(enums.CarrierCode(payload.Carrier))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithCarrier(r.Context(), payload.Carrier)
		result := carrier.SchedulePickup(ctx, shipping.PickupInput{
			AWB:        payload.AWB,
			Address:    payload.Address.toShipping(),
			PickupDate: payload.PickupDate,
		})
		responses.WriteSuccess(w, result)
	}
}

// TrackShipment looks up live tracking for an AWB with the carrier.
func TrackShipment(registry *shipping.Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping registry unavailable"))
			return
		}

		provider := chi.URLParam(r, "provider")
		awb := chi.URLParam(r, "awb")
		if awb == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "awb is required"))
			return
		}

		carrier, err := registry.Get(enums.CarrierCode(provider))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithCarrier(r.Context(), provider)
		responses.WriteSuccess(w, carrier.Track(ctx, awb))
	}
}

type shippingAddressRequest struct {
	FullName   string `json:"full_name" validate:"required"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	Region     string `json:"region" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

func (req shippingAddressRequest) toShipping() shipping.Address {
	return shipping.Address{
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

type dimensionsRequest struct {
	Length float64 `json:"length" validate:"required,gt=0"`
	Width  float64 `json:"width" validate:"required,gt=0"`
	Height float64 `json:"height" validate:"required,gt=0"`
}

func (req *dimensionsRequest) toShipping() *shipping.Dimensions {
	if req == nil {
		return nil
	}
	return &shipping.Dimensions{Length: req.Length, Width: req.Width, Height: req.Height}
}

type labelRequest struct {
	Carrier        string                 `json:"carrier" validate:"required"`
	OrderNumber    string                 `json:"order_number" validate:"required"`
	Address        shippingAddressRequest `json:"address" validate:"required"`
	WeightGrams    int                    `json:"weight_grams" validate:"required,min=1"`
	Dimensions     *dimensionsRequest     `json:"dimensions,omitempty"`
	CODAmountCents int64                  `json:"cod_amount_cents,omitempty" validate:"omitempty,min=0"`
}

type pickupRequest struct {
	Carrier    string                 `json:"carrier" validate:"required"`
	AWB        string                 `json:"awb" validate:"required"`
	Address    shippingAddressRequest `json:"address" validate:"required"`
	PickupDate time.Time              `json:"pickup_date" validate:"required"`
}
