// Package stripe implements the Stripe gateway adapter.
//
// Wire contract (documented at this boundary only):
//
//	POST /v1/checkout/sessions      hosted card redirect; returns id + url
//	GET  /v1/checkout/sessions/:id  session status lookup
//	POST /v1/refunds                refund by payment intent
//
// All calls carry a bearer secret-key header and form-encoded bodies.
// Amounts are integer minor units on the wire. The checkout session id is
// the correlation id; refund and dispute webhooks reference the underlying
// charge instead and are absorbed as unknown references by the state machine.
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edupay/edupay/internal/domain/gateway"
	"github.com/edupay/edupay/internal/domain/payment"
)

const (
	defaultBaseURL  = "https://api.stripe.com"
	signatureHeader = "Stripe-Signature"

	// signatureTolerance bounds how old a signed webhook timestamp may be
	signatureTolerance = 5 * time.Minute
)

// Config holds adapter construction options
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	SuccessURL string
	CancelURL  string
}

// Adapter implements the Stripe gateway adapter
type Adapter struct {
	creds      gateway.CredentialProvider
	baseURL    string
	successURL string
	cancelURL  string
	httpClient *http.Client
	now        func() time.Time
}

// New creates a new Stripe adapter with its own bound HTTP client
func New(creds gateway.CredentialProvider, cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Adapter{
		creds:      creds,
		baseURL:    cfg.BaseURL,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		now: time.Now,
	}
}

// Name returns the gateway this adapter speaks for
func (a *Adapter) Name() payment.Gateway {
	return payment.GatewayStripe
}

// SupportsMethod checks if the adapter can process the given instrument
func (a *Adapter) SupportsMethod(method payment.Method) bool {
	return method == payment.MethodCard
}

// SignatureHeader returns the header carrying the webhook signature
func (a *Adapter) SignatureHeader() string {
	return signatureHeader
}

type session struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	PaymentIntent string `json:"payment_intent"`
	AmountTotal   int64  `json:"amount_total"`
}

// Initialize creates a checkout session and returns its hosted URL.
// The session id is the correlation id for all later updates.
func (a *Adapter) Initialize(ctx context.Context, p *payment.Payment) (*gateway.InitiateResult, error) {
	cred, err := a.creds.Active(ctx, payment.GatewayStripe)
	if err != nil {
		return nil, err
	}
	if !cred.SupportsCurrency(p.Currency) {
		return nil, fmt.Errorf("%w: %s", gateway.ErrUnsupportedCurrency, p.Currency)
	}
	if !a.SupportsMethod(p.Method) {
		return nil, fmt.Errorf("%w: %s", gateway.ErrUnsupportedMethod, p.Method)
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", a.successURL)
	form.Set("cancel_url", a.cancelURL)
	form.Set("client_reference_id", p.ID.String())
	form.Set("customer_email", p.CustomerEmail)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(p.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(gateway.MinorUnits(p.Amount), 10))
	form.Set("line_items[0][price_data][product_data][name]", fmt.Sprintf("%s %s", p.ResourceType, p.ResourceID))

	raw, err := a.doRequest(ctx, cred, http.MethodPost, "/v1/checkout/sessions", form)
	if err != nil {
		return nil, err
	}

	var sess session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("parse session response: %w", err)
	}

	return &gateway.InitiateResult{
		Reference: sess.ID,
		Instructions: gateway.Instructions{
			RedirectURL: sess.URL,
		},
		Raw: raw,
	}, nil
}

// Verify asks Stripe for the current status of a checkout session
func (a *Adapter) Verify(ctx context.Context, reference string) (*gateway.VerifyResult, error) {
	sess, raw, err := a.getSession(ctx, reference)
	if err != nil {
		return nil, err
	}

	return &gateway.VerifyResult{
		State:  mapSessionStatus(sess),
		Amount: gateway.FromMinorUnits(sess.AmountTotal),
		Raw:    raw,
	}, nil
}

// Refund resolves the session's payment intent and refunds it
func (a *Adapter) Refund(ctx context.Context, p *payment.Payment, amount decimal.Decimal) (*gateway.RefundResult, error) {
	cred, err := a.creds.Active(ctx, payment.GatewayStripe)
	if err != nil {
		return nil, err
	}

	sess, _, err := a.getSession(ctx, p.Reference)
	if err != nil {
		return nil, err
	}
	if sess.PaymentIntent == "" {
		return nil, &gateway.RequestError{Gateway: payment.GatewayStripe, Message: "session has no payment intent"}
	}

	form := url.Values{}
	form.Set("payment_intent", sess.PaymentIntent)
	form.Set("amount", strconv.FormatInt(gateway.MinorUnits(amount), 10))

	raw, err := a.doRequest(ctx, cred, http.MethodPost, "/v1/refunds", form)
	if err != nil {
		return nil, err
	}

	var refund struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &refund); err != nil {
		return nil, fmt.Errorf("parse refund response: %w", err)
	}

	state := gateway.StateSuccess
	if refund.Status == "failed" || refund.Status == "canceled" {
		state = gateway.StateFailed
	}

	return &gateway.RefundResult{
		RefundID: refund.ID,
		State:    state,
		Raw:      raw,
	}, nil
}

func (a *Adapter) getSession(ctx context.Context, id string) (*session, json.RawMessage, error) {
	cred, err := a.creds.Active(ctx, payment.GatewayStripe)
	if err != nil {
		return nil, nil, err
	}

	raw, err := a.doRequest(ctx, cred, http.MethodGet, "/v1/checkout/sessions/"+id, nil)
	if err != nil {
		return nil, nil, err
	}

	var sess session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, nil, fmt.Errorf("parse session response: %w", err)
	}
	return &sess, raw, nil
}

// VerifyWebhook authenticates the raw body against the Stripe-Signature
// header: HMAC-SHA256 over "<timestamp>.<body>" with the webhook secret,
// bounded by a timestamp tolerance.
func (a *Adapter) VerifyWebhook(ctx context.Context, body []byte, signature string) error {
	cred, err := a.creds.Active(ctx, payment.GatewayStripe)
	if err != nil {
		return err
	}
	if cred.WebhookSecret == "" {
		return gateway.ErrNotConfigured
	}

	timestamp, candidates := parseSignatureHeader(signature)
	if timestamp == "" || len(candidates) == 0 {
		return gateway.ErrSignatureInvalid
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return gateway.ErrSignatureInvalid
	}
	age := a.now().Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return gateway.ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(cred.WebhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return nil
		}
	}
	return gateway.ErrSignatureInvalid
}

// parseSignatureHeader splits "t=<ts>,v1=<sig>[,v1=<sig>...]"
func parseSignatureHeader(header string) (timestamp string, candidates []string) {
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			candidates = append(candidates, v)
		}
	}
	return timestamp, candidates
}

// ParseWebhook decodes a verified body into the closed event set
func (a *Adapter) ParseWebhook(body []byte) (*gateway.Event, error) {
	var evt struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID string `json:"id"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("parse webhook payload: %w", err)
	}

	var kind gateway.EventKind
	switch evt.Type {
	case "checkout.session.completed":
		kind = gateway.EventSuccess
	case "checkout.session.expired":
		kind = gateway.EventFailure
	case "charge.refunded":
		kind = gateway.EventRefundDone
	case "charge.dispute.created":
		kind = gateway.EventDisputeCreated
	default:
		kind = gateway.EventUnrecognized
	}

	return &gateway.Event{
		Kind:      kind,
		Reference: evt.Data.Object.ID,
		EventID:   evt.ID,
		RawType:   evt.Type,
		Raw:       body,
	}, nil
}

// doRequest makes a form-encoded HTTP request to the Stripe API
func (a *Adapter) doRequest(ctx context.Context, cred *gateway.Credential, method, endpoint string, form url.Values) (json.RawMessage, error) {
	reqURL := a.baseURL + endpoint

	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.SecretKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &gateway.RequestError{Gateway: payment.GatewayStripe, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &gateway.RequestError{Gateway: payment.GatewayStripe, Message: err.Error(), Err: err}
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, &gateway.RequestError{Gateway: payment.GatewayStripe, StatusCode: resp.StatusCode, Message: errResp.Error.Message}
	}

	return respBody, nil
}

// mapSessionStatus normalizes checkout session statuses
func mapSessionStatus(sess *session) gateway.State {
	switch {
	case sess.PaymentStatus == "paid":
		return gateway.StateSuccess
	case sess.Status == "expired":
		return gateway.StateFailed
	default:
		return gateway.StatePending
	}
}
