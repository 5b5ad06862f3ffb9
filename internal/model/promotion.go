package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PromotionConfig describes the raffle currently on sale.  It is read from
// the catalog service on every request; UnitPrice is authoritative for the
// server-side amount computation.
//
// Fields:
//
//	ID            – catalog promotion identifier.
//	Title         – promotion title shown to buyers.
//	Banner        – banner image URL.
//	UnitPrice     – price of one coupon in currency units (e.g. 2.50).
//	MinQty/MaxQty – inclusive quantity bounds per order.
//	QuickAddSteps – quantities offered as "+N" shortcuts.
//	DrawDate      – main draw date.
type PromotionConfig struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Banner        string          `json:"banner"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	MinQty        int             `json:"minQty"`
	MaxQty        int             `json:"maxQty"`
	QuickAddSteps []int           `json:"quickAddSteps"`
	DrawDate      time.Time       `json:"drawDate"`
}

// Coupon is one purchased raffle title with its draw numbers.
type Coupon struct {
	ID                 string    `json:"id"`
	PurchaseTimestamp  time.Time `json:"purchaseTimestamp"`
	AuthenticationCode string    `json:"authenticationCode"`
	DrawNumbers        []string  `json:"drawNumbers"`
}

// PromotionSummary is one entry of the past promotions list.
type PromotionSummary struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	DrawDate time.Time `json:"drawDate"`
}

// Draw is a single draw of a promotion with its winners.
type Draw struct {
	Order       int      `json:"order"`
	Description string   `json:"description"`
	Winners     []Winner `json:"winners"`
}

// Winner of a draw.  City may be empty.
type Winner struct {
	Name   string `json:"name"`
	City   string `json:"city,omitempty"`
	Coupon string `json:"coupon"`
}

// DrawInfo is the landing page payload for the current draw.
type DrawInfo struct {
	Banner string `json:"banner"`
}
