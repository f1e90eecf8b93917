package models

import "gorm.io/gorm"

// Donation records a card donation confirmed by a Stripe webhook, keyed by
// the PaymentIntent ID so repeated webhook deliveries stay idempotent.
type Donation struct {
	gorm.Model
	PaymentIntentID string `gorm:"uniqueIndex;not null" json:"paymentIntentId"`
	Amount          int64  `gorm:"not null" json:"amount"` // minor currency units
	Currency        string `gorm:"not null" json:"currency"`
	Status          string `gorm:"not null" json:"status"`
	DonorEmail      string `json:"donorEmail"`
}
