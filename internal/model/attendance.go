package model

// AttendanceRecord is the catalog's reservation of coupons for a buyer,
// created before payment so that coupon numbers exist if payment succeeds.
// It is immutable once issued; an attendance that is never confirmed is
// left for the catalog to expire.
type AttendanceRecord struct {
	Protocol          string `json:"protocol"`
	CPF               string `json:"cpf"`
	Phone             string `json:"phone"`
	Quantity          int    `json:"quantity"`
	ExternalClientKey string `json:"externalClientKey"`
}
