package model

import "time"

// Purchase ledger statuses.  The ledger is an operational record for
// reconciliation; the gateway remains authoritative for payment state.
const (
	PurchaseChargeCreated = "CHARGE_CREATED"
	PurchasePaid          = "PAID"
	PurchaseConfirmed     = "CONFIRMED"
	PurchaseConfirmFailed = "CONFIRM_FAILED"
	PurchaseExpired       = "EXPIRED"
	PurchaseFailed        = "FAILED"
)

// Purchase is one checkout attempt as recorded in the purchases table.
//
// Fields:
//
//	PaymentID   – gateway charge id (primary key).
//	Protocol    – catalog attendance protocol.
//	CPF         – buyer document.
//	Quantity    – coupons reserved.
//	AmountCents – charged amount in minor units.
//	Status      – one of the Purchase* constants.
//	LastError   – last confirmation error, if any.
type Purchase struct {
	PaymentID   string    `json:"paymentId"`
	Protocol    string    `json:"protocol"`
	CPF         string    `json:"cpf"`
	Quantity    int       `json:"quantity"`
	AmountCents int64     `json:"amountCents"`
	Status      string    `json:"status"`
	LastError   string    `json:"lastError,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
