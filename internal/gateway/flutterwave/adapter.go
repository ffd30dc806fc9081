// Package flutterwave implements the Flutterwave gateway adapter.
//
// Wire contract (documented at this boundary only):
//
//	POST /payments                         hosted card redirect; returns data.link
//	GET  /transactions/verify_by_reference status lookup by tx_ref
//	POST /transactions/:id/refund          refund by provider transaction id
//
// All calls carry a bearer secret-key header and JSON bodies. Amounts are
// integer minor units on the wire.
package flutterwave

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/edupay/edupay/internal/domain/gateway"
	"github.com/edupay/edupay/internal/domain/payment"
)

const (
	defaultBaseURL  = "https://api.flutterwave.com/v3"
	signatureHeader = "verif-hash"
)

// Config holds adapter construction options
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RedirectURL string
}

// Adapter implements the Flutterwave gateway adapter
type Adapter struct {
	creds       gateway.CredentialProvider
	baseURL     string
	redirectURL string
	httpClient  *http.Client
}

// New creates a new Flutterwave adapter with its own bound HTTP client
func New(creds gateway.CredentialProvider, cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Adapter{
		creds:       creds,
		baseURL:     cfg.BaseURL,
		redirectURL: cfg.RedirectURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the gateway this adapter speaks for
func (a *Adapter) Name() payment.Gateway {
	return payment.GatewayFlutterwave
}

// SupportsMethod checks if the adapter can process the given instrument
func (a *Adapter) SupportsMethod(method payment.Method) bool {
	return method == payment.MethodCard
}

// SignatureHeader returns the header carrying the webhook signature
func (a *Adapter) SignatureHeader() string {
	return signatureHeader
}

// Initialize creates a hosted payment page and returns the redirect link.
// The tx_ref generated here is the correlation id for all later updates.
func (a *Adapter) Initialize(ctx context.Context, p *payment.Payment) (*gateway.InitiateResult, error) {
	cred, err := a.creds.Active(ctx, payment.GatewayFlutterwave)
	if err != nil {
		return nil, err
	}
	if !cred.SupportsCurrency(p.Currency) {
		return nil, fmt.Errorf("%w: %s", gateway.ErrUnsupportedCurrency, p.Currency)
	}
	if !a.SupportsMethod(p.Method) {
		return nil, fmt.Errorf("%w: %s", gateway.ErrUnsupportedMethod, p.Method)
	}

	txRef := "FLW-" + uuid.NewString()
	body := map[string]interface{}{
		"tx_ref":       txRef,
		"amount":       gateway.MinorUnits(p.Amount),
		"currency":     p.Currency,
		"redirect_url": a.redirectURL,
		"customer": map[string]string{
			"email":       p.CustomerEmail,
			"phonenumber": p.PhoneNumber,
		},
		"meta": map[string]string{"payment_id": p.ID.String()},
	}

	raw, err := a.doRequest(ctx, cred, http.MethodPost, "/payments", body)
	if err != nil {
		return nil, err
	}

	var data struct {
		Link string `json:"link"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse payment response: %w", err)
	}

	return &gateway.InitiateResult{
		Reference: txRef,
		Instructions: gateway.Instructions{
			RedirectURL: data.Link,
		},
		Raw: raw,
	}, nil
}

type transactionData struct {
	ID     int64  `json:"id"`
	TxRef  string `json:"tx_ref"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

// Verify asks Flutterwave for the current status of a transaction
func (a *Adapter) Verify(ctx context.Context, reference string) (*gateway.VerifyResult, error) {
	data, raw, err := a.verifyByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	return &gateway.VerifyResult{
		State:  mapTransactionStatus(data.Status),
		Amount: gateway.FromMinorUnits(data.Amount),
		Raw:    raw,
	}, nil
}

// Refund resolves the provider transaction id for the reference, then
// refunds it fully or partially
func (a *Adapter) Refund(ctx context.Context, p *payment.Payment, amount decimal.Decimal) (*gateway.RefundResult, error) {
	cred, err := a.creds.Active(ctx, payment.GatewayFlutterwave)
	if err != nil {
		return nil, err
	}

	data, _, err := a.verifyByReference(ctx, p.Reference)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"amount": gateway.MinorUnits(amount),
	}

	raw, err := a.doRequest(ctx, cred, http.MethodPost, fmt.Sprintf("/transactions/%d/refund", data.ID), body)
	if err != nil {
		return nil, err
	}

	var refund struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &refund); err != nil {
		return nil, fmt.Errorf("parse refund response: %w", err)
	}

	state := gateway.StateSuccess
	if refund.Status == "failed" {
		state = gateway.StateFailed
	}

	return &gateway.RefundResult{
		RefundID: fmt.Sprintf("%d", refund.ID),
		State:    state,
		Raw:      raw,
	}, nil
}

func (a *Adapter) verifyByReference(ctx context.Context, reference string) (*transactionData, json.RawMessage, error) {
	cred, err := a.creds.Active(ctx, payment.GatewayFlutterwave)
	if err != nil {
		return nil, nil, err
	}

	raw, err := a.doRequest(ctx, cred, http.MethodGet, "/transactions/verify_by_reference?tx_ref="+reference, nil)
	if err != nil {
		return nil, nil, err
	}

	var data transactionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, nil, fmt.Errorf("parse verify response: %w", err)
	}
	return &data, raw, nil
}

// VerifyWebhook authenticates the exact raw body against the verif-hash
// header using HMAC-SHA256 with the stored webhook secret.
func (a *Adapter) VerifyWebhook(ctx context.Context, body []byte, signature string) error {
	cred, err := a.creds.Active(ctx, payment.GatewayFlutterwave)
	if err != nil {
		return err
	}
	if cred.WebhookSecret == "" {
		return gateway.ErrNotConfigured
	}

	mac := hmac.New(sha256.New, []byte(cred.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return gateway.ErrSignatureInvalid
	}
	return nil
}

// ParseWebhook decodes a verified body into the closed event set
func (a *Adapter) ParseWebhook(body []byte) (*gateway.Event, error) {
	var evt struct {
		Event string `json:"event"`
		Data  struct {
			ID     int64  `json:"id"`
			TxRef  string `json:"tx_ref"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("parse webhook payload: %w", err)
	}

	var kind gateway.EventKind
	switch evt.Event {
	case "charge.completed":
		if evt.Data.Status == "successful" {
			kind = gateway.EventSuccess
		} else {
			kind = gateway.EventFailure
		}
	case "refund.completed":
		kind = gateway.EventRefundDone
	case "charge.chargeback":
		kind = gateway.EventDisputeCreated
	default:
		kind = gateway.EventUnrecognized
	}

	return &gateway.Event{
		Kind:      kind,
		Reference: evt.Data.TxRef,
		EventID:   fmt.Sprintf("%s:%d:%s", evt.Event, evt.Data.ID, evt.Data.TxRef),
		RawType:   evt.Event,
		Raw:       body,
	}, nil
}

// doRequest makes an HTTP request to the Flutterwave API and returns the
// data element of the envelope
func (a *Adapter) doRequest(ctx context.Context, cred *gateway.Credential, method, endpoint string, body interface{}) (json.RawMessage, error) {
	url := a.baseURL + endpoint

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.SecretKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &gateway.RequestError{Gateway: payment.GatewayFlutterwave, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &gateway.RequestError{Gateway: payment.GatewayFlutterwave, Message: err.Error(), Err: err}
	}

	var envelope struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, &gateway.RequestError{Gateway: payment.GatewayFlutterwave, StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}

	if resp.StatusCode >= 400 || envelope.Status == "error" {
		return nil, &gateway.RequestError{Gateway: payment.GatewayFlutterwave, StatusCode: resp.StatusCode, Message: envelope.Message}
	}

	return envelope.Data, nil
}

// mapTransactionStatus normalizes Flutterwave transaction statuses
func mapTransactionStatus(status string) gateway.State {
	switch status {
	case "successful":
		return gateway.StateSuccess
	case "failed", "cancelled":
		return gateway.StateFailed
	default:
		return gateway.StatePending
	}
}
