package payments

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/Eva254-ke/veyo-backend/models"
	"github.com/Eva254-ke/veyo-backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type stkCallbackEnvelope struct {
	Body struct {
		StkCallback *stkCallbackResult `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallbackResult struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        int    `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  struct {
		Item []callbackMetadataItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

// callbackMetadataItem carries one named value from the gateway's
// variable-order metadata list. Values arrive as strings or numbers
// depending on the field, so they are decoded loosely.
type callbackMetadataItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

// MpesaCallback receives the gateway's asynchronous payment result. It
// always acknowledges with HTTP 200: anything else makes the gateway retry
// delivery indefinitely. A payload this service cannot parse is
// acknowledged with a non-zero ResultCode instead.
func MpesaCallback(c *gin.Context) {
	var payload stkCallbackEnvelope
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Body.StkCallback == nil {
		log.Println("Invalid M-Pesa callback format received.")
		c.JSON(http.StatusOK, gin.H{"ResultCode": 1, "ResultDesc": "Invalid callback format."})
		return
	}

	cb := payload.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		// Without the correlation key there is nothing to reconcile against.
		log.Println("M-Pesa callback is missing CheckoutRequestID.")
		c.JSON(http.StatusOK, gin.H{"ResultCode": 1, "ResultDesc": "Invalid callback format."})
		return
	}

	log.Printf("M-Pesa callback for MerchantRequestID=%s CheckoutRequestID=%s ResultCode=%d (%s)",
		cb.MerchantRequestID, cb.CheckoutRequestID, cb.ResultCode, cb.ResultDesc)

	record := models.MpesaTransaction{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		Status:            models.TransactionStatusFailed,
		ProcessedAt:       time.Now(),
	}

	if cb.ResultCode == 0 {
		items := cb.CallbackMetadata.Item
		record.Status = models.TransactionStatusSuccessful
		record.Amount = metadataNumber(items, "Amount")
		record.MpesaReceiptNumber = metadataString(items, "MpesaReceiptNumber")
		record.TransactionDate = metadataTimestamp(items, "TransactionDate")
		record.PhoneNumber = metadataString(items, "PhoneNumber")
	}

	// Persistence failures are logged and swallowed: the callback was
	// received and understood, and a non-success acknowledgment would only
	// trigger a gateway retry storm.
	if err := upsertTransaction(utils.VeyoDB, &record); err != nil {
		log.Printf("Failed to save transaction %s: %v", record.CheckoutRequestID, err)
	}

	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Callback received and processed successfully."})
}

// upsertTransaction creates the record on first delivery and merges
// subsequent deliveries of the same CheckoutRequestID onto it. Status is
// terminal once written; repeats only refresh the envelope fields and fill
// in metadata they actually carry.
func upsertTransaction(db *gorm.DB, incoming *models.MpesaTransaction) error {
	var existing models.MpesaTransaction
	err := db.Where("checkout_request_id = ?", incoming.CheckoutRequestID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Create(incoming).Error
	}
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"merchant_request_id": incoming.MerchantRequestID,
		"result_code":         incoming.ResultCode,
		"result_desc":         incoming.ResultDesc,
		"processed_at":        incoming.ProcessedAt,
	}
	if incoming.Amount != nil {
		updates["amount"] = *incoming.Amount
	}
	if incoming.MpesaReceiptNumber != nil {
		updates["mpesa_receipt_number"] = *incoming.MpesaReceiptNumber
	}
	if incoming.TransactionDate != nil {
		updates["transaction_date"] = *incoming.TransactionDate
	}
	if incoming.PhoneNumber != nil {
		updates["phone_number"] = *incoming.PhoneNumber
	}

	return db.Model(&existing).Updates(updates).Error
}

func findMetadataItem(items []callbackMetadataItem, name string) (interface{}, bool) {
	for _, item := range items {
		if item.Name == name {
			return item.Value, item.Value != nil
		}
	}
	return nil, false
}

func metadataString(items []callbackMetadataItem, name string) *string {
	value, ok := findMetadataItem(items, name)
	if !ok {
		return nil
	}
	switch v := value.(type) {
	case string:
		return &v
	case float64:
		// Numeric fields like PhoneNumber arrive as JSON numbers.
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	default:
		return nil
	}
}

func metadataNumber(items []callbackMetadataItem, name string) *float64 {
	value, ok := findMetadataItem(items, name)
	if !ok {
		return nil
	}
	switch v := value.(type) {
	case float64:
		return &v
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

// metadataTimestamp parses the gateway's 14-digit YYYYMMDDHHmmss
// transaction date. Anything unparsable maps to nil, never an error.
func metadataTimestamp(items []callbackMetadataItem, name string) *time.Time {
	raw := metadataString(items, name)
	if raw == nil {
		return nil
	}
	t, err := time.Parse("20060102150405", *raw)
	if err != nil {
		return nil
	}
	return &t
}
