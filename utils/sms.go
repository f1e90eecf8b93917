package utils

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Eva254-ke/veyo-backend/config"
)

// TwilioAPIBaseURL is a variable so tests can point SMS sends at a fake
// server.
var TwilioAPIBaseURL = "https://api.twilio.com"

var twilioHTTPClient = &http.Client{Timeout: 15 * time.Second}

// SendSMS delivers one message through the Twilio Messages API.
func SendSMS(s *config.Settings, to, message string) error {
	if s.TwilioAccountSID == "" || s.TwilioAuthToken == "" || s.TwilioPhoneNumber == "" {
		return fmt.Errorf("Twilio is not configured")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.TwilioPhoneNumber)
	form.Set("Body", message)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", TwilioAPIBaseURL, s.TwilioAccountSID)
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.TwilioAccountSID, s.TwilioAuthToken)

	resp, err := twilioHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Twilio rejected SMS to %s with status %d: %s", to, resp.StatusCode, string(body))
	}
	return nil
}
