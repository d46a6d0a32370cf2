package enums

// OutboxEventType enumerates the durable side effects emitted at checkout
// and by the payment verifier. The worker dispatches on these values.
type OutboxEventType string

const (
	EventOrderInvoiceRequested OutboxEventType = "order.invoice_requested"
	EventOrderERPPushRequested OutboxEventType = "order.erp_push_requested"
	EventOrderConfirmationMail OutboxEventType = "order.confirmation_email"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)
