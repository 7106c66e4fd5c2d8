package enum

// ── Order lifecycle (forward-only, see handler.allowedTransitions) ──

const (
	OrderStatusPendingPayment = "pending_payment"
	OrderStatusPaid           = "paid"
	OrderStatusPreparing      = "preparing"
	OrderStatusReady          = "ready"
	OrderStatusCompleted      = "completed"
	OrderStatusCancelled      = "cancelled"
)

const (
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// ── Request vocabularies ──

const (
	OrderTypePickup   = "pickup"
	OrderTypeDelivery = "delivery"
	OrderTypeDineIn   = "dine_in"
)

const (
	PaymentMethodCard  = "card"
	PaymentMethodCash  = "cash"
	PaymentMethodOther = "other"
)

const (
	OrderSourceVoiceAgent = "ai_voice_agent"
	OrderSourceDashboard  = "dashboard"
)

const (
	RoleStaff   = "staff"
	RoleManager = "manager"
)

// ── Card brands reported by the mock processor ──

const (
	CardBrandVisa       = "visa"
	CardBrandMastercard = "mastercard"
	CardBrandAmex       = "amex"
	CardBrandDiscover   = "discover"
	CardBrandUnknown    = "unknown"
)
