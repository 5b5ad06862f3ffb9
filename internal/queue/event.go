// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

// PurchaseConfirmedQueue is the durable queue confirmed purchases are
// published to.
const PurchaseConfirmedQueue = "purchase.confirmed"

// PurchaseConfirmedEvent is published once an attendance has been confirmed
// after its Pix payment was observed as paid.  It carries enough for
// downstream consumers to log, notify or reconcile without calling the
// catalog or gateway.
type PurchaseConfirmedEvent struct {
	PaymentID   string `json:"payment_id"`
	Protocol    string `json:"protocol"`
	CPF         string `json:"cpf"`
	Quantity    int    `json:"quantity"`
	AmountCents int64  `json:"amount_cents"`
	Source      string `json:"source"` // poll, webhook, confirm or reconcile
	ConfirmedAt string `json:"confirmed_at"`
}
