package utils

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"time"

	"github.com/Eva254-ke/veyo-backend/config"
)

var (
	ErrInvalidPhone  = errors.New("invalid phone number format, expected 254XXXXXXXXX")
	ErrInvalidAmount = errors.New("amount must be a positive number")
)

// MpesaAPIBaseURL is set from config at startup; tests point it at a fake
// Daraja server.
var MpesaAPIBaseURL = "https://sandbox.safaricom.co.ke"

var MpesaHTTPClient = &http.Client{Timeout: 30 * time.Second}

var phonePattern = regexp.MustCompile(`^254\d{9}$`)

// StkPushRequest is the Daraja process-request payload.
type StkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int    `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// StkPushResponse is the gateway's initiation acknowledgment. The final
// outcome only arrives later on the callback URL.
type StkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`

	// Raw is the unmodified gateway response body, for passthrough endpoints.
	Raw json.RawMessage `json:"-"`
}

// MpesaError wraps a non-2xx gateway response, keeping whatever diagnostics
// Daraja supplied.
type MpesaError struct {
	StatusCode   int
	RequestID    string
	ErrorCode    string
	ErrorMessage string
	Body         string
}

func (e *MpesaError) Error() string {
	if e.ErrorMessage != "" {
		return fmt.Sprintf("mpesa: %s (code %s)", e.ErrorMessage, e.ErrorCode)
	}
	if e.Body != "" {
		return fmt.Sprintf("mpesa: request failed with status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("mpesa: request failed with status %d", e.StatusCode)
}

// ValidatePhoneNumber checks the canonical local format: 254 followed by
// nine digits, 12 digits total.
func ValidatePhoneNumber(phone string) error {
	if !phonePattern.MatchString(phone) {
		return ErrInvalidPhone
	}
	return nil
}

// MpesaTimestamp formats a time the way Daraja expects: YYYYMMDDHHmmss.
func MpesaTimestamp(t time.Time) string {
	return t.Format("20060102150405")
}

// DerivePassword builds the Daraja request password. Because the timestamp
// is part of the input, every request produces a distinct password even
// with identical credentials.
func DerivePassword(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

// GetAccessToken exchanges the tenant's consumer key/secret for a
// short-lived bearer token. No caching: fetched fresh per request.
func GetAccessToken(cfg config.TenantConfig) (string, error) {
	auth := base64.StdEncoding.EncodeToString([]byte(cfg.ConsumerKey + ":" + cfg.ConsumerSecret))

	req, err := http.NewRequest(http.MethodGet, MpesaAPIBaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := MpesaHTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not reach M-Pesa token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read M-Pesa token response: %w", err)
	}

	// The upstream body is safe to surface; the credentials never are.
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("M-Pesa token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil || tokenResp.AccessToken == "" {
		return "", errors.New("M-Pesa token response is missing access_token")
	}
	return tokenResp.AccessToken, nil
}

// SendStkPush initiates a push payment against the customer's phone.
// Input is validated before any network call; a non-integer amount is
// rounded because the gateway only accepts whole currency units.
func SendStkPush(cfg config.TenantConfig, phone string, amount float64, accountReference string) (*StkPushResponse, error) {
	if err := ValidatePhoneNumber(phone); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if accountReference == "" {
		accountReference = cfg.AccountReference
	}

	token, err := GetAccessToken(cfg)
	if err != nil {
		return nil, err
	}

	timestamp := MpesaTimestamp(time.Now())
	payload := StkPushRequest{
		BusinessShortCode: cfg.Shortcode,
		Password:          DerivePassword(cfg.Shortcode, cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerBuyGoodsOnline", // Till number flow, not paybill
		Amount:            int(math.Round(amount)),
		PartyA:            phone,
		PartyB:            cfg.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       cfg.CallbackURL,
		AccountReference:  accountReference,
		TransactionDesc:   cfg.TransactionDesc,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, MpesaAPIBaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := MpesaHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not reach M-Pesa STK push endpoint: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read M-Pesa STK push response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		mpesaErr := &MpesaError{StatusCode: resp.StatusCode, Body: string(raw)}
		var detail struct {
			RequestID    string `json:"requestId"`
			ErrorCode    string `json:"errorCode"`
			ErrorMessage string `json:"errorMessage"`
		}
		if json.Unmarshal(raw, &detail) == nil {
			mpesaErr.RequestID = detail.RequestID
			mpesaErr.ErrorCode = detail.ErrorCode
			mpesaErr.ErrorMessage = detail.ErrorMessage
		}
		return nil, mpesaErr
	}

	var out StkPushResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("could not decode M-Pesa STK push response: %w", err)
	}
	out.Raw = raw
	return &out, nil
}
