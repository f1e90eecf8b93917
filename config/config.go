package config

import (
	"fmt"
	"os"
	"strings"
)

// DefaultProjectID is the tenant used by the single-tenant endpoints
// (/api/stkpush, /api/donate).
const DefaultProjectID = "veyoApp"

// TenantConfig holds the Daraja credentials and settings for one project.
type TenantConfig struct {
	ID               string
	ConsumerKey      string
	ConsumerSecret   string
	Passkey          string
	Shortcode        string
	CallbackURL      string
	AccountReference string
	TransactionDesc  string
}

// Settings is built once at startup and treated as immutable afterwards.
type Settings struct {
	Environment     string
	MpesaAPIBaseURL string
	Tenants         map[string]TenantConfig

	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string
	EmergencyContacts []string
	DispatchNumber    string
	DispatchEmail     string

	SMTPHost   string
	SMTPUser   string
	SMTPPass   string
	SMTPSender string

	StripeSecretKey     string
	StripeWebhookSecret string

	JWTSecret             string
	DashboardEmail        string
	DashboardPasswordHash string
}

// Current is set in main after a successful Load.
var Current *Settings

var requiredVars = []string{
	"MPESA_CONSUMER_KEY",
	"MPESA_CONSUMER_SECRET",
	"MPESA_PASSKEY",
	"MPESA_SHORTCODE",
	"MPESA_CALLBACK_URL",
}

// Load reads settings from the environment. It reports every missing
// required variable at once so a misconfigured deploy fails fast with a
// complete picture.
func Load() (*Settings, error) {
	var missing []string
	for _, name := range requiredVars {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	environment := getEnv("MPESA_ENVIRONMENT", "sandbox")
	baseURL := "https://sandbox.safaricom.co.ke"
	if environment == "production" {
		baseURL = "https://api.safaricom.co.ke"
	}

	s := &Settings{
		Environment:     environment,
		MpesaAPIBaseURL: baseURL,
		Tenants:         map[string]TenantConfig{},

		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioPhoneNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
		EmergencyContacts: splitContacts(os.Getenv("EMERGENCY_CONTACTS")),
		DispatchNumber:    os.Getenv("DISPATCH_NUMBER"),
		DispatchEmail:     os.Getenv("DISPATCH_EMAIL"),

		SMTPHost:   os.Getenv("SMTP_HOST"),
		SMTPUser:   os.Getenv("SMTP_USER"),
		SMTPPass:   os.Getenv("SMTP_PASS"),
		SMTPSender: os.Getenv("SMTP_SENDER"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		JWTSecret:             os.Getenv("JWT_SECRET"),
		DashboardEmail:        os.Getenv("DASHBOARD_EMAIL"),
		DashboardPasswordHash: os.Getenv("DASHBOARD_PASSWORD_HASH"),
	}

	s.Tenants[DefaultProjectID] = TenantConfig{
		ID:               DefaultProjectID,
		ConsumerKey:      os.Getenv("MPESA_CONSUMER_KEY"),
		ConsumerSecret:   os.Getenv("MPESA_CONSUMER_SECRET"),
		Passkey:          os.Getenv("MPESA_PASSKEY"),
		Shortcode:        os.Getenv("MPESA_SHORTCODE"),
		CallbackURL:      os.Getenv("MPESA_CALLBACK_URL"),
		AccountReference: getEnv("MPESA_ACCOUNT_REFERENCE", "VeyoRide"),
		TransactionDesc:  getEnv("MPESA_TRANSACTION_DESC", "Payment for ride service"),
	}

	return s, nil
}

// Resolve looks up the M-Pesa configuration for a project. The second
// return value is false when the project is unknown; callers must treat
// that as a client error, never a crash.
func (s *Settings) Resolve(projectID string) (TenantConfig, bool) {
	cfg, ok := s.Tenants[projectID]
	return cfg, ok
}

// Default returns the single-tenant deployment configuration.
func (s *Settings) Default() TenantConfig {
	return s.Tenants[DefaultProjectID]
}

// AlertRecipients is the combined emergency contact list plus the dispatch
// number, with blanks filtered out.
func (s *Settings) AlertRecipients() []string {
	recipients := make([]string, 0, len(s.EmergencyContacts)+1)
	for _, number := range s.EmergencyContacts {
		if number != "" {
			recipients = append(recipients, number)
		}
	}
	if s.DispatchNumber != "" {
		recipients = append(recipients, s.DispatchNumber)
	}
	return recipients
}

func splitContacts(raw string) []string {
	if raw == "" {
		return nil
	}
	var contacts []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			contacts = append(contacts, trimmed)
		}
	}
	return contacts
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
