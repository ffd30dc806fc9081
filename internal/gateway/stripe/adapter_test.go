package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

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
		Gateway:       payment.GatewayStripe,
		Active:        true,
		SecretKey:     "sk_test_stripe",
		WebhookSecret: "whsec_stripe",
		Currencies:    []string{"USD", "EUR"},
	}}
}

func testPayment() *payment.Payment {
	p := payment.NewPayment(uuid.New(), payment.ResourceCourse, uuid.New(),
		decimal.RequireFromString("49.99"), "USD", payment.GatewayStripe, payment.MethodCard)
	p.CustomerEmail = "learner@example.com"
	return p
}

func TestInitializeCreatesCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_stripe", r.Header.Get("Authorization"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "usd", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "4999", r.PostForm.Get("line_items[0][price_data][unit_amount]"))

		w.Write([]byte(`{"id": "cs_test_1", "url": "https://checkout.stripe.com/c/pay/cs_test_1", "status": "open"}`))
	}))
	defer srv.Close()

	adapter := New(testCreds(), Config{BaseURL: srv.URL, SuccessURL: "https://app/success", CancelURL: "https://app/cancel"})

	res, err := adapter.Initialize(context.Background(), testPayment())
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", res.Reference)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", res.Instructions.RedirectURL)
}

func TestVerifyMapsSessionStatus(t *testing.T) {
	tests := []struct {
		name          string
		status        string
		paymentStatus string
		want          gateway.State
	}{
		{"paid", "complete", "paid", gateway.StateSuccess},
		{"expired", "expired", "unpaid", gateway.StateFailed},
		{"open", "open", "unpaid", gateway.StatePending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/checkout/sessions/cs_test_2", r.URL.Path)
				fmt.Fprintf(w, `{"id": "cs_test_2", "status": %q, "payment_status": %q, "amount_total": 4999}`, tt.status, tt.paymentStatus)
			}))
			defer srv.Close()

			adapter := New(testCreds(), Config{BaseURL: srv.URL})

			res, err := adapter.Verify(context.Background(), "cs_test_2")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.State)
			assert.True(t, decimal.RequireFromString("49.99").Equal(res.Amount))
		})
	}
}

func TestRefundResolvesPaymentIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/checkout/sessions/cs_test_3":
			w.Write([]byte(`{"id": "cs_test_3", "status": "complete", "payment_status": "paid", "payment_intent": "pi_test_3", "amount_total": 4999}`))
		case "/v1/refunds":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "pi_test_3", r.PostForm.Get("payment_intent"))
			assert.Equal(t, "4999", r.PostForm.Get("amount"))
			w.Write([]byte(`{"id": "re_test_3", "status": "succeeded"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	adapter := New(testCreds(), Config{BaseURL: srv.URL})

	p := testPayment()
	p.AttachReference("cs_test_3")

	res, err := adapter.Refund(context.Background(), p, decimal.RequireFromString("49.99"))
	require.NoError(t, err)
	assert.Equal(t, "re_test_3", res.RefundID)
	assert.Equal(t, gateway.StateSuccess, res.State)
}

func signHeader(secret string, ts time.Time, body []byte) string {
	timestamp := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return "t=" + timestamp + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhook(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	now := time.Now()

	newAdapter := func() *Adapter {
		a := New(testCreds(), Config{})
		a.now = func() time.Time { return now }
		return a
	}

	t.Run("valid signature", func(t *testing.T) {
		err := newAdapter().VerifyWebhook(context.Background(), body, signHeader("whsec_stripe", now, body))
		assert.NoError(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		err := newAdapter().VerifyWebhook(context.Background(), body, signHeader("whsec_other", now, body))
		assert.ErrorIs(t, err, gateway.ErrSignatureInvalid)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		err := newAdapter().VerifyWebhook(context.Background(), body, signHeader("whsec_stripe", now.Add(-10*time.Minute), body))
		assert.ErrorIs(t, err, gateway.ErrSignatureInvalid)
	})

	t.Run("malformed header", func(t *testing.T) {
		err := newAdapter().VerifyWebhook(context.Background(), body, "garbage")
		assert.ErrorIs(t, err, gateway.ErrSignatureInvalid)
	})

	t.Run("second v1 candidate matches", func(t *testing.T) {
		timestamp := strconv.FormatInt(now.Unix(), 10)
		mac := hmac.New(sha256.New, []byte("whsec_stripe"))
		mac.Write([]byte(timestamp))
		mac.Write([]byte("."))
		mac.Write(body)
		header := "t=" + timestamp + ",v1=deadbeef,v1=" + hex.EncodeToString(mac.Sum(nil))

		err := newAdapter().VerifyWebhook(context.Background(), body, header)
		assert.NoError(t, err)
	})
}

func TestParseWebhook(t *testing.T) {
	adapter := New(testCreds(), Config{})

	tests := []struct {
		eventType string
		want      gateway.EventKind
	}{
		{"checkout.session.completed", gateway.EventSuccess},
		{"checkout.session.expired", gateway.EventFailure},
		{"charge.refunded", gateway.EventRefundDone},
		{"charge.dispute.created", gateway.EventDisputeCreated},
		{"invoice.paid", gateway.EventUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			body := []byte(`{"id":"evt_2","type":"` + tt.eventType + `","data":{"object":{"id":"cs_test_4"}}}`)

			evt, err := adapter.ParseWebhook(body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, evt.Kind)
			assert.Equal(t, "cs_test_4", evt.Reference)
			assert.Equal(t, "evt_2", evt.EventID)
		})
	}
}
