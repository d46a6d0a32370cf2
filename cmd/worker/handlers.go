package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mfigueroa/ordercore-backend/pkg/db/models"
	"github.com/mfigueroa/ordercore-backend/pkg/enums"
	"github.com/mfigueroa/ordercore-backend/pkg/mailer"
	"github.com/mfigueroa/ordercore-backend/pkg/outbox"
	"github.com/mfigueroa/ordercore-backend/pkg/types"
)

type invoiceGenerator interface {
	Generate(ctx context.Context, orderID uuid.UUID) (*models.Invoice, error)
}

type orderPusher interface {
	PushOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
}

type mailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// newHandlers binds each event type to its side effect. The ERP handler
// may be nil when the integration is not configured; its events then
// fail with a clear message instead of being silently consumed.
func newHandlers(invoices invoiceGenerator, erp orderPusher, mail mailSender) map[enums.OutboxEventType]Handler {
	handlers := map[enums.OutboxEventType]Handler{
		enums.EventOrderInvoiceRequested: invoiceHandler(invoices),
		enums.EventOrderConfirmationMail: confirmationMailHandler(mail),
	}
	if erp != nil {
		handlers[enums.EventOrderERPPushRequested] = erpPushHandler(erp)
	}
	return handlers
}

func invoiceHandler(invoices invoiceGenerator) Handler {
	return func(ctx context.Context, event models.OutboxEvent, envelope outbox.PayloadEnvelope) error {
		var payload outbox.InvoiceRequestedPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return fmt.Errorf("decode invoice payload: %w", err)
		}
		if _, err := invoices.Generate(ctx, payload.OrderID); err != nil {
			return fmt.Errorf("generate invoice for %s: %w", payload.OrderNumber, err)
		}
		return nil
	}
}

func erpPushHandler(erp orderPusher) Handler {
	return func(ctx context.Context, event models.OutboxEvent, envelope outbox.PayloadEnvelope) error {
		var payload outbox.ERPPushRequestedPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return fmt.Errorf("decode erp push payload: %w", err)
		}
		if _, err := erp.PushOrder(ctx, payload.OrderID); err != nil {
			return fmt.Errorf("push order %s to erp: %w", payload.OrderNumber, err)
		}
		return nil
	}
}

func confirmationMailHandler(mail mailSender) Handler {
	return func(ctx context.Context, event models.OutboxEvent, envelope outbox.PayloadEnvelope) error {
		var payload outbox.ConfirmationMailPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return fmt.Errorf("decode confirmation mail payload: %w", err)
		}
		msg := mailer.Message{
			To:       payload.Email,
			Subject:  fmt.Sprintf("Order %s confirmed", payload.OrderNumber),
			HTMLBody: confirmationBody(payload),
		}
		if err := mail.Send(ctx, msg); err != nil {
			return fmt.Errorf("send confirmation for %s: %w", payload.OrderNumber, err)
		}
		return nil
	}
}

func confirmationBody(payload outbox.ConfirmationMailPayload) string {
	return fmt.Sprintf(
		"<p>Thanks for your order!</p><p>Order <strong>%s</strong> is confirmed. Total charged: %s.</p>",
		payload.OrderNumber,
		types.FormatCents(payload.TotalCents),
	)
}
