package domain

// PaymentStatus is the marketplace's own order status string.
type PaymentStatus string

const (
	PaymentStatusOpen       PaymentStatus = "open"
	PaymentStatusProcessing PaymentStatus = "payment_processing"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusCanceled   PaymentStatus = "canceled"
)

// ReconcileStatus tracks the local fulfillment lifecycle of a receipt.
type ReconcileStatus string

const (
	ReconcileStatusIncomplete ReconcileStatus = "incomplete"
	ReconcileStatusComplete   ReconcileStatus = "complete"
	ReconcileStatusCanceled   ReconcileStatus = "canceled"
	// ReconcileStatusError marks a receipt whose partner submission came back
	// with issues. needs_fulfillment stays true so the next run retries.
	ReconcileStatusError ReconcileStatus = "error"
)

// FulfillmentStatus tracks a single line item.
type FulfillmentStatus string

const (
	FulfillmentStatusNeedsFulfillment FulfillmentStatus = "needs_fulfillment"
	FulfillmentStatusInProgress       FulfillmentStatus = "in_progress"
	FulfillmentStatusCompleted        FulfillmentStatus = "completed"
	FulfillmentStatusCanceled         FulfillmentStatus = "canceled"
)
