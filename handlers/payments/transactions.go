package payments

import (
	"errors"
	"net/http"

	"github.com/Eva254-ke/veyo-backend/models"
	"github.com/Eva254-ke/veyo-backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetTransactions lists reconciled transactions for the ops dashboard,
// most recent first, optionally filtered by status.
func GetTransactions(c *gin.Context) {
	query := utils.VeyoDB.Order("processed_at desc")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var transactions []models.MpesaTransaction
	if err := query.Find(&transactions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve transactions."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

// GetTransaction looks up a single transaction by its gateway-assigned
// CheckoutRequestID.
func GetTransaction(c *gin.Context) {
	checkoutRequestID := c.Param("checkout_request_id")

	var transaction models.MpesaTransaction
	err := utils.VeyoDB.Where("checkout_request_id = ?", checkoutRequestID).First(&transaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve transaction."})
		return
	}

	c.JSON(http.StatusOK, transaction)
}
