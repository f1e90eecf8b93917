package payments

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/Eva254-ke/veyo-backend/config"
	"github.com/Eva254-ke/veyo-backend/models"
	"github.com/Eva254-ke/veyo-backend/utils"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/webhook"
	"gorm.io/gorm"
)

type createDonationIntentInput struct {
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	DonorEmail string `json:"donor_email"`
}

// CreateDonationIntent opens a Stripe PaymentIntent for a card donation.
func CreateDonationIntent(c *gin.Context) {
	var input createDonationIntentInput
	if err := c.BindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if input.Amount <= 0 || input.Currency == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount and currency are required"})
		return
	}

	stripe.Key = config.Current.StripeSecretKey

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(input.Amount),
		Currency: stripe.String(input.Currency),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
	}
	if input.DonorEmail != "" {
		params.ReceiptEmail = stripe.String(input.DonorEmail)
	}
	params.Metadata = map[string]string{
		"purpose":     "donation",
		"donor_email": input.DonorEmail,
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"clientSecret": pi.ClientSecret,
	})
}

// HandleStripeWebhook records confirmed card donations.
func HandleStripeWebhook(c *gin.Context) {
	const MaxBodyBytes = int64(65536)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Writer.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	event, err := webhook.ConstructEvent(payload, c.Request.Header.Get("Stripe-Signature"), config.Current.StripeWebhookSecret)
	if err != nil {
		log.Printf("Webhook signature verification failed: %v", err)
		c.Writer.WriteHeader(http.StatusBadRequest)
		return
	}

	if event.Type == "payment_intent.succeeded" {
		var paymentIntent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
			log.Printf("Error parsing webhook JSON: %v", err)
			c.Writer.WriteHeader(http.StatusBadRequest)
			return
		}
		recordDonation(paymentIntent)
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// recordDonation upserts by PaymentIntent ID so redelivered webhooks do not
// duplicate rows. Failures are logged only; Stripe gets its acknowledgment
// either way.
func recordDonation(paymentIntent stripe.PaymentIntent) {
	donation := models.Donation{
		PaymentIntentID: paymentIntent.ID,
		Amount:          paymentIntent.Amount,
		Currency:        string(paymentIntent.Currency),
		Status:          string(paymentIntent.Status),
		DonorEmail:      paymentIntent.Metadata["donor_email"],
	}

	var existing models.Donation
	err := utils.VeyoDB.Where("payment_intent_id = ?", donation.PaymentIntentID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := utils.VeyoDB.Create(&donation).Error; err != nil {
			log.Printf("Failed to save donation %s: %v", donation.PaymentIntentID, err)
		}
		return
	}
	if err != nil {
		log.Printf("Failed to look up donation %s: %v", donation.PaymentIntentID, err)
		return
	}

	if err := utils.VeyoDB.Model(&existing).Updates(map[string]interface{}{
		"amount":      donation.Amount,
		"currency":    donation.Currency,
		"status":      donation.Status,
		"donor_email": donation.DonorEmail,
	}).Error; err != nil {
		log.Printf("Failed to update donation %s: %v", donation.PaymentIntentID, err)
	}
}
