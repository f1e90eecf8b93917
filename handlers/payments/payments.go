package payments

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Eva254-ke/veyo-backend/config"
	"github.com/Eva254-ke/veyo-backend/utils"

	"github.com/gin-gonic/gin"
)

type stkPushInput struct {
	Phone  string   `json:"phone"`
	Amount *float64 `json:"amount"`
}

// StkPush initiates an M-Pesa push payment against the default project.
// The response is only the gateway's initiation acknowledgment; the final
// outcome arrives later on /mpesa/callback.
func StkPush(c *gin.Context) {
	var input stkPushInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body."})
		return
	}

	if input.Phone == "" || input.Amount == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Phone number and amount are required."})
		return
	}
	if *input.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid amount. Amount must be a positive number."})
		return
	}
	if err := utils.ValidatePhoneNumber(input.Phone); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid phone number format. Expected format: 254XXXXXXXXX"})
		return
	}

	res, err := utils.SendStkPush(config.Current.Default(), input.Phone, *input.Amount, "")
	if err != nil {
		respondStkPushError(c, err)
		return
	}

	message := res.CustomerMessage
	if message == "" {
		message = "STK push initiated successfully."
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      message,
		"responseData": json.RawMessage(res.Raw),
	})
}

// StkPushForProject initiates a push payment using the credentials of the
// project named in the URL.
func StkPushForProject(c *gin.Context) {
	projectID := c.Param("project_id")

	cfg, ok := config.Current.Resolve(projectID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
		return
	}

	var input struct {
		PhoneNumber string  `json:"phoneNumber"`
		Amount      float64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	res, err := utils.SendStkPush(cfg, input.PhoneNumber, input.Amount, "")
	if err != nil {
		if errors.Is(err, utils.ErrInvalidPhone) || errors.Is(err, utils.ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("STK push for project %s failed: %v", projectID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STK Push failed"})
		return
	}

	// Gateway response passthrough.
	c.Data(http.StatusOK, "application/json", res.Raw)
}

// Donate runs a donation through the default project's till with its own
// account reference.
func Donate(c *gin.Context) {
	var input stkPushInput
	if err := c.ShouldBindJSON(&input); err != nil || input.Phone == "" || input.Amount == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Phone number and amount are required."})
		return
	}

	res, err := utils.SendStkPush(config.Current.Default(), input.Phone, *input.Amount, "VEYO_DONATION")
	if err != nil {
		respondStkPushError(c, err)
		return
	}

	message := res.CustomerMessage
	if message == "" {
		message = "Donation request sent. Check your phone to confirm."
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      message,
		"responseData": json.RawMessage(res.Raw),
	})
}

// respondStkPushError maps client faults to 400 and forwards whatever
// status and diagnostics the gateway supplied, defaulting to 500.
func respondStkPushError(c *gin.Context, err error) {
	if errors.Is(err, utils.ErrInvalidPhone) || errors.Is(err, utils.ErrInvalidAmount) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	var mpesaErr *utils.MpesaError
	if errors.As(err, &mpesaErr) {
		log.Printf("STK push rejected by gateway: %v", mpesaErr)
		status := mpesaErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		response := gin.H{
			"success": false,
			"message": "Failed to initiate STK push.",
			"error":   mpesaErr.ErrorMessage,
		}
		if mpesaErr.ErrorMessage == "" {
			response["error"] = mpesaErr.Body
		}
		if mpesaErr.ErrorCode != "" {
			response["errorCode"] = mpesaErr.ErrorCode
		}
		c.JSON(status, response)
		return
	}

	log.Printf("STK push error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"message": "Failed to initiate STK push.",
		"error":   err.Error(),
	})
}
