package shipping

import (
	"context"
	"time"

	"github.com/mfigueroa/ordercore-backend/pkg/enums"
)

// Address is the delivery destination passed to a carrier.
type Address struct {
	FullName   string
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
	Phone      string
}

// Dimensions in centimeters.
type Dimensions struct {
	Length float64
	Width  float64
	Height float64
}

// LabelInput describes one shipment to label.
type LabelInput struct {
	OrderNumber    string
	Address        Address
	WeightGrams    int
	Dimensions     *Dimensions
	CODAmountCents int64
}

// LabelResult is error-tagged rather than error-returning: a carrier
// failure marks the result instead of aborting the caller, so one flaky
// carrier cannot take down a fulfillment batch.
type LabelResult struct {
	Carrier        enums.CarrierCode `json:"carrier"`
	Success        bool              `json:"success"`
	TrackingNumber string            `json:"trackingNumber,omitempty"`
	TrackingURL    string            `json:"trackingUrl,omitempty"`
	LabelURL       string            `json:"labelUrl,omitempty"`
	Mock           bool              `json:"mock"`
	Error          string            `json:"error,omitempty"`
}

// PickupInput schedules a carrier pickup for a labeled shipment.
type PickupInput struct {
	AWB        string
	Address    Address
	PickupDate time.Time
}

type PickupResult struct {
	Carrier         enums.CarrierCode `json:"carrier"`
	PickupScheduled bool              `json:"pickupScheduled"`
	PickupID        string            `json:"pickupId,omitempty"`
	PickupDate      string            `json:"pickupDate,omitempty"`
	Mock            bool              `json:"mock"`
	Error           string            `json:"error,omitempty"`
}

type TrackResult struct {
	Carrier     enums.CarrierCode `json:"carrier"`
	AWB         string            `json:"awb"`
	Status      string            `json:"status"`
	TrackingURL string            `json:"trackingUrl"`
	Mock        bool              `json:"mock"`
	Error       string            `json:"error,omitempty"`
}

// Carrier is one shipping integration. Implementations fall back to
// deterministic mock behavior when their credentials are absent.
type Carrier interface {
	Code() enums.CarrierCode
	GenerateLabel(ctx context.Context, input LabelInput) LabelResult
	SchedulePickup(ctx context.Context, input PickupInput) PickupResult
	TrackingURL(awb string) string
	Track(ctx context.Context, awb string) TrackResult
}
