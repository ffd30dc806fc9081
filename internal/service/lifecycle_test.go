package service

import (
	"context"
	"io"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupay/edupay/internal/domain/gateway"
	"github.com/edupay/edupay/internal/domain/payment"
	"github.com/edupay/edupay/internal/gateway/paystack"
)

type lifecycleCreds struct {
	cred *gateway.Credential
}

func (c lifecycleCreds) Active(ctx context.Context, gw payment.Gateway) (*gateway.Credential, error) {
	return c.cred, nil
}

func signWebhook(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// The full lifecycle against a wire-accurate provider: initiate a USSD
// charge, settle it with a signed webhook, then absorb a late poll of the
// same transaction without a second enrollment.
func TestPaymentLifecycle(t *testing.T) {
	ctx := context.Background()
	const reference = "PSK-E2E-1"

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/charge":
			w.Write([]byte(`{
				"status": true,
				"data": {
					"reference": "` + reference + `",
					"status": "pay_offline",
					"ussd_code": "*737*000*9#",
					"display_text": "Dial *737*000*9# to complete payment"
				}
			}`))
		case strings.HasPrefix(r.URL.Path, "/transaction/verify/"):
			w.Write([]byte(`{"status": true, "data": {"status": "success", "amount": 1500000}}`))
		default:
			t.Errorf("unexpected provider call: %s", r.URL.Path)
		}
	}))
	defer provider.Close()

	creds := lifecycleCreds{cred: &gateway.Credential{
		Gateway:       payment.GatewayPaystack,
		Active:        true,
		SecretKey:     "sk_test_abc",
		WebhookSecret: "whsec_test",
		Currencies:    []string{"NGN"},
	}}
	adapter := paystack.New(creds, paystack.Config{BaseURL: provider.URL})

	payments := newFakePaymentRepo()
	logs := &fakeLogRepo{}
	enrollments := &fakeEnrollments{}
	notifier := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewPaymentService(payments, logs, fakeProvider{adapter: adapter},
		NewDispatcher(enrollments, notifier, logger), logger)

	// Initiate: remote charge created, payment persisted pending with the
	// provider's reference and polling armed.
	res, err := svc.Initiate(ctx, InitiateParams{
		UserID:        uuid.New(),
		ResourceType:  payment.ResourceCourse,
		ResourceID:    uuid.New(),
		Amount:        decimal.RequireFromString("15000.00"),
		Currency:      "NGN",
		Gateway:       payment.GatewayPaystack,
		Method:        payment.MethodUSSD,
		CustomerEmail: "learner@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, reference, res.Payment.Reference)
	assert.Equal(t, "*737*000*9#", res.Instructions.USSDCode)

	stored, err := payments.GetByReference(ctx, reference)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, stored.Status)
	assert.True(t, stored.PollingActive)

	// Webhook: signature verified, event parsed, transition applied once.
	body := []byte(`{"event":"charge.success","data":{"id":11,"reference":"` + reference + `"}}`)
	require.NoError(t, adapter.VerifyWebhook(ctx, body, signWebhook("whsec_test", body)))

	evt, err := adapter.ParseWebhook(body)
	require.NoError(t, err)
	require.Equal(t, gateway.EventSuccess, evt.Kind)

	settled, err := svc.Apply(ctx, ApplyInput{
		Reference: evt.Reference,
		Status:    payment.StatusCompleted,
		Raw:       evt.Raw,
		Source:    payment.SourceWebhook,
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, settled.Status)
	assert.False(t, settled.PollingActive)
	assert.Equal(t, 1, enrollments.calls)
	assert.Equal(t, 1, notifier.calls)

	// A poll tick that raced the webhook verifies the same success and is
	// absorbed as a duplicate, not a second completion.
	vres, err := adapter.Verify(ctx, reference)
	require.NoError(t, err)
	require.Equal(t, gateway.StateSuccess, vres.State)

	again, err := svc.ApplyVerifyResult(ctx, reference, vres, payment.SourcePoll)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, again.Status)

	assert.Equal(t, 1, logs.countByKind(payment.LogApplied))
	assert.Equal(t, 1, logs.countByKind(payment.LogDuplicate))
	assert.Equal(t, 1, enrollments.calls)
	assert.Equal(t, 1, notifier.calls)
}
