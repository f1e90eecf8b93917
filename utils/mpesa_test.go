package utils

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Eva254-ke/veyo-backend/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTenant() config.TenantConfig {
	return config.TenantConfig{
		ID:               "veyoApp",
		ConsumerKey:      "test-key",
		ConsumerSecret:   "test-secret",
		Passkey:          "test-passkey",
		Shortcode:        "4953118",
		CallbackURL:      "https://example.com/mpesa/callback",
		AccountReference: "VeyoRide",
		TransactionDesc:  "Payment for ride service",
	}
}

// withFakeDaraja points the client at a fake gateway for the duration of
// the test.
func withFakeDaraja(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	old := MpesaAPIBaseURL
	MpesaAPIBaseURL = srv.URL
	t.Cleanup(func() {
		MpesaAPIBaseURL = old
		srv.Close()
	})
	return srv
}

func darajaMux(t *testing.T, stkPush http.HandlerFunc) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("test-key:test-secret"))
		assert.Equal(t, expected, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{"access_token": "token-123", "expires_in": "3599"})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", stkPush)
	return mux
}

func TestMpesaTimestamp(t *testing.T) {
	ts := MpesaTimestamp(time.Date(2023, 6, 10, 12, 34, 56, 0, time.UTC))
	assert.Equal(t, "20230610123456", ts)
	assert.Regexp(t, regexp.MustCompile(`^\d{14}$`), MpesaTimestamp(time.Now()))
}

func TestDerivePassword(t *testing.T) {
	password := DerivePassword("4953118", "passkey", "20230610123456")
	decoded, err := base64.StdEncoding.DecodeString(password)
	require.NoError(t, err)
	assert.Equal(t, "4953118passkey20230610123456", string(decoded))
}

func TestValidatePhoneNumber(t *testing.T) {
	cases := []struct {
		phone string
		valid bool
	}{
		{"254712345678", true},
		{"254700000000", true},
		{"0712345678", false},
		{"25471234567", false},
		{"2547123456789", false},
		{"254712a45678", false},
		{"+254712345678", false},
		{"", false},
	}
	for _, tc := range cases {
		err := ValidatePhoneNumber(tc.phone)
		if tc.valid {
			assert.NoError(t, err, tc.phone)
		} else {
			assert.ErrorIs(t, err, ErrInvalidPhone, tc.phone)
		}
	}
}

func TestSendStkPushRejectsInvalidInputBeforeNetwork(t *testing.T) {
	var calls int32
	withFakeDaraja(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))

	_, err := SendStkPush(testTenant(), "0712345678", 100, "")
	assert.ErrorIs(t, err, ErrInvalidPhone)

	_, err = SendStkPush(testTenant(), "254712345678", 0, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = SendStkPush(testTenant(), "254712345678", -5, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "no network calls expected for invalid input")
}

func TestSendStkPushSuccess(t *testing.T) {
	var captured StkPushRequest
	mux := darajaMux(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]string{
			"MerchantRequestID":   "29115-34620561-1",
			"CheckoutRequestID":   "ws_CO_191220191020363925",
			"ResponseCode":        "0",
			"ResponseDescription": "Success. Request accepted for processing",
			"CustomerMessage":     "Success. Request accepted for processing",
		})
	})
	withFakeDaraja(t, mux)

	res, err := SendStkPush(testTenant(), "254712345678", 100.6, "")
	require.NoError(t, err)

	assert.Equal(t, 101, captured.Amount, "amount must be rounded to the nearest integer")
	assert.Equal(t, "CustomerBuyGoodsOnline", captured.TransactionType)
	assert.Equal(t, "4953118", captured.BusinessShortCode)
	assert.Equal(t, "4953118", captured.PartyB)
	assert.Equal(t, "254712345678", captured.PartyA)
	assert.Equal(t, "254712345678", captured.PhoneNumber)
	assert.Equal(t, "https://example.com/mpesa/callback", captured.CallBackURL)
	assert.Equal(t, "VeyoRide", captured.AccountReference)
	assert.Regexp(t, regexp.MustCompile(`^\d{14}$`), captured.Timestamp)
	assert.Equal(t, DerivePassword("4953118", "test-passkey", captured.Timestamp), captured.Password)

	assert.Equal(t, "ws_CO_191220191020363925", res.CheckoutRequestID)
	assert.Equal(t, "Success. Request accepted for processing", res.CustomerMessage)
	assert.NotEmpty(t, res.Raw)
}

func TestSendStkPushCustomAccountReference(t *testing.T) {
	var captured StkPushRequest
	mux := darajaMux(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]string{"ResponseCode": "0"})
	})
	withFakeDaraja(t, mux)

	_, err := SendStkPush(testTenant(), "254712345678", 50, "VEYO_DONATION")
	require.NoError(t, err)
	assert.Equal(t, "VEYO_DONATION", captured.AccountReference)
}

func TestSendStkPushUpstreamError(t *testing.T) {
	mux := darajaMux(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"requestId":    "12345-67890-1",
			"errorCode":    "400.002.02",
			"errorMessage": "Bad Request - Invalid CallBackURL",
		})
	})
	withFakeDaraja(t, mux)

	_, err := SendStkPush(testTenant(), "254712345678", 100, "")
	require.Error(t, err)

	var mpesaErr *MpesaError
	require.ErrorAs(t, err, &mpesaErr)
	assert.Equal(t, http.StatusBadRequest, mpesaErr.StatusCode)
	assert.Equal(t, "400.002.02", mpesaErr.ErrorCode)
	assert.Equal(t, "Bad Request - Invalid CallBackURL", mpesaErr.ErrorMessage)
	assert.Equal(t, "12345-67890-1", mpesaErr.RequestID)
}

func TestGetAccessTokenFailures(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		withFakeDaraja(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"errorMessage":"Invalid Credentials"}`))
		}))

		_, err := GetAccessToken(testTenant())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
		assert.NotContains(t, err.Error(), "test-secret", "credentials must never leak into errors")
	})

	t.Run("missing access_token", func(t *testing.T) {
		withFakeDaraja(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))

		_, err := GetAccessToken(testTenant())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access_token")
	})
}
