package alerts

import (
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/Eva254-ke/veyo-backend/config"
	"github.com/Eva254-ke/veyo-backend/utils"

	"github.com/gin-gonic/gin"
)

type emergencyAlertInput struct {
	UserPhone string `json:"userPhone"`
	UserName  string `json:"userName"`
	Location  string `json:"location"`
}

// EmergencyAlert fans one SMS out to every configured emergency contact
// plus the dispatch number and waits for all sends. Any single failure
// fails the whole batch response; partial delivery is not reported
// per-recipient.
func EmergencyAlert(c *gin.Context) {
	var input emergencyAlertInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body."})
		return
	}

	name := input.UserName
	if name == "" {
		name = "A user"
	}
	location := input.Location
	if location == "" {
		location = "Unknown"
	}
	message := fmt.Sprintf("EMERGENCY ALERT: %s needs help! Location: %s. Please respond ASAP.", name, location)

	settings := config.Current
	recipients := settings.AlertRecipients()
	if len(recipients) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "No emergency contacts configured."})
		return
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, number := range recipients {
		wg.Add(1)
		go func(number string) {
			defer wg.Done()
			if err := utils.SendSMS(settings, number, message); err != nil {
				log.Printf("Emergency SMS to %s failed: %v", number, err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(number)
	}
	wg.Wait()

	if firstErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": firstErr.Error()})
		return
	}

	log.Printf("Emergency alert sent to %d recipients (user=%s phone=%s)", len(recipients), name, input.UserPhone)
	utils.SendDispatchEmail(settings, "Emergency alert", message)

	c.JSON(http.StatusOK, gin.H{"success": true, "sent": len(recipients)})
}
