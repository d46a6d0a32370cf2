package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// InvoiceRequestedPayload asks the worker to create the invoice for a
// newly paid order.
type InvoiceRequestedPayload struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
}

// ERPPushRequestedPayload asks the worker to mirror the order into the ERP.
type ERPPushRequestedPayload struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
}

// ConfirmationMailPayload asks the worker to send the order confirmation
// email. The snapshot fields let the mail go out without re-reading the
// order row.
type ConfirmationMailPayload struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Email       string    `json:"email"`
	TotalCents  int64     `json:"totalCents"`
}
