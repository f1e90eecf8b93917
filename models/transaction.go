package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	TransactionStatusSuccessful = "successful"
	TransactionStatusFailed     = "failed"
)

// MpesaTransaction is the reconciled outcome of an STK push, keyed by the
// gateway-assigned CheckoutRequestID. A record only exists once a callback
// has arrived; a push that never receives one leaves no trace here.
// Metadata fields are pointers because the callback may omit any of them.
type MpesaTransaction struct {
	gorm.Model
	MerchantRequestID  string     `gorm:"index" json:"merchantRequestId"`
	CheckoutRequestID  string     `gorm:"uniqueIndex;not null" json:"checkoutRequestId"`
	ResultCode         int        `json:"resultCode"`
	ResultDesc         string     `json:"resultDesc"`
	Status             string     `gorm:"not null" json:"status"` // "successful" or "failed"
	Amount             *float64   `json:"amount"`
	MpesaReceiptNumber *string    `json:"mpesaReceiptNumber"`
	TransactionDate    *time.Time `json:"transactionDate"`
	PhoneNumber        *string    `json:"phoneNumber"`
	ProcessedAt        time.Time  `json:"processedAt"`
}
