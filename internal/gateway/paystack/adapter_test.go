package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupay/edupay/internal/domain/gateway"
	"github.com/edupay/edupay/internal/domain/payment"
)

type staticCreds struct {
	cred *gateway.Credential
	err  error
}

func (s staticCreds) Active(ctx context.Context, gw payment.Gateway) (*gateway.Credential, error) {
	return s.cred, s.err
}

func testCreds() staticCreds {
	return staticCreds{cred: &gateway.Credential{
		Gateway:       payment.GatewayPaystack,
		Active:        true,
		SecretKey:     "sk_test_abc",
		WebhookSecret: "whsec_test",
		Currencies:    []string{"NGN", "GHS"},
	}}
}

func testPayment(method payment.Method) *payment.Payment {
	p := payment.NewPayment(uuid.New(), payment.ResourceCourse, uuid.New(),
		decimal.RequireFromString("99.99"), "NGN", payment.GatewayPaystack, method)
	p.CustomerEmail = "learner@example.com"
	p.PhoneNumber = "+2348031234567"
	return p
}

func TestInitializeUSSD(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/charge", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_abc", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(9999), body["amount"])
		assert.Equal(t, "NGN", body["currency"])
		assert.Equal(t, map[string]interface{}{"type": "737"}, body["ussd"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": true,
			"message": "Charge attempted",
			"data": {
				"reference": "PSK-REF-1",
				"status": "pay_offline",
				"ussd_code": "*737*000*1234#",
				"display_text": "Dial *737*000*1234# to complete payment"
			}
		}`))
	}))
	defer srv.Close()

	adapter := New(testCreds(), Config{BaseURL: srv.URL})

	res, err := adapter.Initialize(context.Background(), testPayment(payment.MethodUSSD))
	require.NoError(t, err)
	assert.Equal(t, "PSK-REF-1", res.Reference)
	assert.Equal(t, "*737*000*1234#", res.Instructions.USSDCode)
	assert.NotEmpty(t, res.Instructions.DisplayText)
}

func TestInitializeCard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		w.Write([]byte(`{
			"status": true,
			"data": {
				"authorization_url": "https://checkout.paystack.com/abc",
				"access_code": "abc",
				"reference": "PSK-REF-2"
			}
		}`))
	}))
	defer srv.Close()

	adapter := New(testCreds(), Config{BaseURL: srv.URL})

	res, err := adapter.Initialize(context.Background(), testPayment(payment.MethodCard))
	require.NoError(t, err)
	assert.Equal(t, "PSK-REF-2", res.Reference)
	assert.Equal(t, "https://checkout.paystack.com/abc", res.Instructions.RedirectURL)
}

func TestInitializeMobileMoneyDerivesCarrier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mm := body["mobile_money"].(map[string]interface{})
		assert.Equal(t, "mtn", mm["provider"])

		w.Write([]byte(`{"status": true, "data": {"reference": "PSK-REF-3", "display_text": "Approve on your phone"}}`))
	}))
	defer srv.Close()

	adapter := New(testCreds(), Config{BaseURL: srv.URL})

	res, err := adapter.Initialize(context.Background(), testPayment(payment.MethodMobileMoney))
	require.NoError(t, err)
	assert.Equal(t, "mtn", res.Instructions.Carrier)
}

func TestInitializeUnsupportedCurrency(t *testing.T) {
	adapter := New(testCreds(), Config{BaseURL: "http://unused"})

	p := testPayment(payment.MethodCard)
	p.Currency = "USD"

	_, err := adapter.Initialize(context.Background(), p)
	assert.ErrorIs(t, err, gateway.ErrUnsupportedCurrency)
}

func TestVerifyMapsStatuses(t *testing.T) {
	tests := []struct {
		provider string
		want     gateway.State
	}{
		{"success", gateway.StateSuccess},
		{"failed", gateway.StateFailed},
		{"abandoned", gateway.StateFailed},
		{"reversed", gateway.StateFailed},
		{"ongoing", gateway.StatePending},
		{"pending", gateway.StatePending},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/transaction/verify/PSK-REF-4", r.URL.Path)
				w.Write([]byte(`{"status": true, "data": {"status": "` + tt.provider + `", "amount": 9999}}`))
			}))
			defer srv.Close()

			adapter := New(testCreds(), Config{BaseURL: srv.URL})

			res, err := adapter.Verify(context.Background(), "PSK-REF-4")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.State)
			assert.True(t, decimal.RequireFromString("99.99").Equal(res.Amount))
		})
	}
}

func TestVerifyProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status": false, "message": "Transaction reference not found"}`))
	}))
	defer srv.Close()

	adapter := New(testCreds(), Config{BaseURL: srv.URL})

	_, err := adapter.Verify(context.Background(), "missing")
	var reqErr *gateway.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, payment.GatewayPaystack, reqErr.Gateway)
	assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
}

func TestRefundSendsMinorUnits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refund", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "PSK-REF-5", body["transaction"])
		assert.Equal(t, float64(5000), body["amount"])

		w.Write([]byte(`{"status": true, "data": {"id": 42, "status": "processed"}}`))
	}))
	defer srv.Close()

	adapter := New(testCreds(), Config{BaseURL: srv.URL})

	p := testPayment(payment.MethodCard)
	p.AttachReference("PSK-REF-5")

	res, err := adapter.Refund(context.Background(), p, decimal.RequireFromString("50.00"))
	require.NoError(t, err)
	assert.Equal(t, "42", res.RefundID)
	assert.Equal(t, gateway.StateSuccess, res.State)
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhook(t *testing.T) {
	adapter := New(testCreds(), Config{})
	body := []byte(`{"event":"charge.success","data":{"reference":"PSK-REF-6"}}`)

	t.Run("valid signature", func(t *testing.T) {
		err := adapter.VerifyWebhook(context.Background(), body, signBody("whsec_test", body))
		assert.NoError(t, err)
	})

	t.Run("tampered body", func(t *testing.T) {
		tampered := []byte(`{"event":"charge.success","data":{"reference":"PSK-REF-EVIL"}}`)
		err := adapter.VerifyWebhook(context.Background(), tampered, signBody("whsec_test", body))
		assert.ErrorIs(t, err, gateway.ErrSignatureInvalid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		err := adapter.VerifyWebhook(context.Background(), body, signBody("other_secret", body))
		assert.ErrorIs(t, err, gateway.ErrSignatureInvalid)
	})

	t.Run("no webhook secret configured", func(t *testing.T) {
		creds := testCreds()
		creds.cred.WebhookSecret = ""
		bare := New(creds, Config{})

		err := bare.VerifyWebhook(context.Background(), body, signBody("whsec_test", body))
		assert.ErrorIs(t, err, gateway.ErrNotConfigured)
	})
}

func TestParseWebhook(t *testing.T) {
	adapter := New(testCreds(), Config{})

	tests := []struct {
		event string
		want  gateway.EventKind
	}{
		{"charge.success", gateway.EventSuccess},
		{"charge.failed", gateway.EventFailure},
		{"refund.processed", gateway.EventRefundDone},
		{"charge.dispute.create", gateway.EventDisputeCreated},
		{"subscription.create", gateway.EventUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			body := []byte(`{"event":"` + tt.event + `","data":{"id":7,"reference":"PSK-REF-7"}}`)

			evt, err := adapter.ParseWebhook(body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, evt.Kind)
			assert.Equal(t, "PSK-REF-7", evt.Reference)
			assert.NotEmpty(t, evt.EventID)
		})
	}

	t.Run("malformed payload", func(t *testing.T) {
		_, err := adapter.ParseWebhook([]byte(`not json`))
		assert.Error(t, err)
	})
}
