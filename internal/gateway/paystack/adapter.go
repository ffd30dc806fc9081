// Package paystack implements the Paystack gateway adapter.
//
// Wire contract (documented at this boundary only):
//
//	POST /transaction/initialize  card redirect; returns authorization_url + reference
//	POST /charge                  ussd / bank_transfer / mobile_money sub-flows
//	GET  /transaction/verify/:ref transaction status lookup
//	POST /refund                  refund by transaction reference
//	POST /customer                customer creation
//
// All calls carry a bearer secret-key header and JSON bodies. Amounts are
// integer minor units (kobo/cents) on the wire.
package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edupay/edupay/internal/domain/gateway"
	"github.com/edupay/edupay/internal/domain/payment"
)

const (
	defaultBaseURL  = "https://api.paystack.co"
	signatureHeader = "x-paystack-signature"
	ussdType        = "737"
)

// Config holds adapter construction options
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Adapter implements the Paystack gateway adapter
type Adapter struct {
	creds      gateway.CredentialProvider
	baseURL    string
	httpClient *http.Client
}

// New creates a new Paystack adapter with its own bound HTTP client
func New(creds gateway.CredentialProvider, cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Adapter{
		creds:   creds,
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the gateway this adapter speaks for
func (a *Adapter) Name() payment.Gateway {
	return payment.GatewayPaystack
}

// SupportsMethod checks if the adapter can process the given instrument
func (a *Adapter) SupportsMethod(method payment.Method) bool {
	switch method {
	case payment.MethodCard, payment.MethodUSSD, payment.MethodBankTransfer, payment.MethodMobileMoney:
		return true
	}
	return false
}

// SignatureHeader returns the header carrying the webhook signature
func (a *Adapter) SignatureHeader() string {
	return signatureHeader
}

type apiResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type chargeData struct {
	Reference   string `json:"reference"`
	Status      string `json:"status"`
	USSDCode    string `json:"ussd_code"`
	DisplayText string `json:"display_text"`
	Bank        struct {
		AccountNumber string `json:"account_number"`
		AccountName   string `json:"account_name"`
		BankName      string `json:"bank_name"`
	} `json:"bank_transfer"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Initialize creates a remote transaction for the payment's method
func (a *Adapter) Initialize(ctx context.Context, p *payment.Payment) (*gateway.InitiateResult, error) {
	cred, err := a.credential(ctx, p.Currency)
	if err != nil {
		return nil, err
	}

	switch p.Method {
	case payment.MethodCard:
		return a.initializeCard(ctx, cred, p)
	case payment.MethodUSSD:
		return a.chargeUSSD(ctx, cred, p)
	case payment.MethodBankTransfer:
		return a.chargeBankTransfer(ctx, cred, p)
	case payment.MethodMobileMoney:
		return a.chargeMobileMoney(ctx, cred, p)
	default:
		return nil, fmt.Errorf("%w: %s", gateway.ErrUnsupportedMethod, p.Method)
	}
}

// initializeCard starts a hosted card redirect flow
func (a *Adapter) initializeCard(ctx context.Context, cred *gateway.Credential, p *payment.Payment) (*gateway.InitiateResult, error) {
	body := map[string]interface{}{
		"email":    p.CustomerEmail,
		"amount":   gateway.MinorUnits(p.Amount),
		"currency": p.Currency,
		"metadata": map[string]string{"payment_id": p.ID.String()},
	}

	raw, err := a.doRequest(ctx, cred, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}

	var data initializeData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse initialize response: %w", err)
	}

	return &gateway.InitiateResult{
		Reference: data.Reference,
		Instructions: gateway.Instructions{
			RedirectURL: data.AuthorizationURL,
		},
		Raw: raw,
	}, nil
}

// chargeUSSD issues a bank USSD code the learner dials to authorize
func (a *Adapter) chargeUSSD(ctx context.Context, cred *gateway.Credential, p *payment.Payment) (*gateway.InitiateResult, error) {
	body := map[string]interface{}{
		"email":    p.CustomerEmail,
		"amount":   gateway.MinorUnits(p.Amount),
		"currency": p.Currency,
		"ussd":     map[string]string{"type": ussdType},
	}

	data, raw, err := a.charge(ctx, cred, body)
	if err != nil {
		return nil, err
	}

	return &gateway.InitiateResult{
		Reference: data.Reference,
		Instructions: gateway.Instructions{
			USSDCode:    data.USSDCode,
			DisplayText: data.DisplayText,
		},
		Raw: raw,
	}, nil
}

// chargeBankTransfer issues one-time bank account details to transfer into
func (a *Adapter) chargeBankTransfer(ctx context.Context, cred *gateway.Credential, p *payment.Payment) (*gateway.InitiateResult, error) {
	body := map[string]interface{}{
		"email":         p.CustomerEmail,
		"amount":        gateway.MinorUnits(p.Amount),
		"currency":      p.Currency,
		"bank_transfer": map[string]interface{}{},
	}

	data, raw, err := a.charge(ctx, cred, body)
	if err != nil {
		return nil, err
	}

	return &gateway.InitiateResult{
		Reference: data.Reference,
		Instructions: gateway.Instructions{
			BankName:      data.Bank.BankName,
			AccountNumber: data.Bank.AccountNumber,
			AccountName:   data.Bank.AccountName,
			DisplayText:   data.DisplayText,
		},
		Raw: raw,
	}, nil
}

// chargeMobileMoney routes a charge to the carrier derived from the phone number
func (a *Adapter) chargeMobileMoney(ctx context.Context, cred *gateway.Credential, p *payment.Payment) (*gateway.InitiateResult, error) {
	carrier := CarrierFromPhone(p.PhoneNumber)

	body := map[string]interface{}{
		"email":    p.CustomerEmail,
		"amount":   gateway.MinorUnits(p.Amount),
		"currency": p.Currency,
		"mobile_money": map[string]string{
			"phone":    p.PhoneNumber,
			"provider": carrier,
		},
	}

	data, raw, err := a.charge(ctx, cred, body)
	if err != nil {
		return nil, err
	}

	return &gateway.InitiateResult{
		Reference: data.Reference,
		Instructions: gateway.Instructions{
			Carrier:     carrier,
			DisplayText: data.DisplayText,
		},
		Raw: raw,
	}, nil
}

func (a *Adapter) charge(ctx context.Context, cred *gateway.Credential, body map[string]interface{}) (*chargeData, json.RawMessage, error) {
	raw, err := a.doRequest(ctx, cred, http.MethodPost, "/charge", body)
	if err != nil {
		return nil, nil, err
	}

	var data chargeData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, nil, fmt.Errorf("parse charge response: %w", err)
	}

	return &data, raw, nil
}

// Verify asks Paystack for the current status of a transaction
func (a *Adapter) Verify(ctx context.Context, reference string) (*gateway.VerifyResult, error) {
	cred, err := a.creds.Active(ctx, payment.GatewayPaystack)
	if err != nil {
		return nil, err
	}

	raw, err := a.doRequest(ctx, cred, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		Status string `json:"status"`
		Amount int64  `json:"amount"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse verify response: %w", err)
	}

	return &gateway.VerifyResult{
		State:  mapTransactionStatus(data.Status),
		Amount: gateway.FromMinorUnits(data.Amount),
		Raw:    raw,
	}, nil
}

// Refund refunds a completed transaction, fully or partially
func (a *Adapter) Refund(ctx context.Context, p *payment.Payment, amount decimal.Decimal) (*gateway.RefundResult, error) {
	cred, err := a.creds.Active(ctx, payment.GatewayPaystack)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"transaction": p.Reference,
		"amount":      gateway.MinorUnits(amount),
	}

	raw, err := a.doRequest(ctx, cred, http.MethodPost, "/refund", body)
	if err != nil {
		return nil, err
	}

	var data struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse refund response: %w", err)
	}

	state := gateway.StateSuccess
	if data.Status == "failed" {
		state = gateway.StateFailed
	}

	return &gateway.RefundResult{
		RefundID: fmt.Sprintf("%d", data.ID),
		State:    state,
		Raw:      raw,
	}, nil
}

// CreateCustomer registers the learner with Paystack and returns the
// customer code. Used before recurring charges; optional for one-time flows.
func (a *Adapter) CreateCustomer(ctx context.Context, email, phone string) (string, error) {
	cred, err := a.creds.Active(ctx, payment.GatewayPaystack)
	if err != nil {
		return "", err
	}

	body := map[string]interface{}{
		"email": email,
		"phone": phone,
	}

	raw, err := a.doRequest(ctx, cred, http.MethodPost, "/customer", body)
	if err != nil {
		return "", err
	}

	var data struct {
		CustomerCode string `json:"customer_code"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", fmt.Errorf("parse customer response: %w", err)
	}

	return data.CustomerCode, nil
}

// VerifyWebhook authenticates the exact raw body against the signature
// header using HMAC-SHA512 with the stored webhook secret.
func (a *Adapter) VerifyWebhook(ctx context.Context, body []byte, signature string) error {
	cred, err := a.creds.Active(ctx, payment.GatewayPaystack)
	if err != nil {
		return err
	}
	if cred.WebhookSecret == "" {
		return gateway.ErrNotConfigured
	}

	mac := hmac.New(sha512.New, []byte(cred.WebhookSecret))
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
			ID        int64  `json:"id"`
			Reference string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("parse webhook payload: %w", err)
	}

	var kind gateway.EventKind
	switch evt.Event {
	case "charge.success":
		kind = gateway.EventSuccess
	case "charge.failed":
		kind = gateway.EventFailure
	case "refund.processed":
		kind = gateway.EventRefundDone
	case "charge.dispute.create":
		kind = gateway.EventDisputeCreated
	default:
		kind = gateway.EventUnrecognized
	}

	return &gateway.Event{
		Kind:      kind,
		Reference: evt.Data.Reference,
		EventID:   fmt.Sprintf("%s:%d:%s", evt.Event, evt.Data.ID, evt.Data.Reference),
		RawType:   evt.Event,
		Raw:       body,
	}, nil
}

// credential resolves the active credential and checks currency support
func (a *Adapter) credential(ctx context.Context, currency string) (*gateway.Credential, error) {
	cred, err := a.creds.Active(ctx, payment.GatewayPaystack)
	if err != nil {
		return nil, err
	}
	if !cred.SupportsCurrency(currency) {
		return nil, fmt.Errorf("%w: %s", gateway.ErrUnsupportedCurrency, currency)
	}
	return cred, nil
}

// doRequest makes an HTTP request to the Paystack API and returns the data
// element of the envelope
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
		return nil, &gateway.RequestError{Gateway: payment.GatewayPaystack, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &gateway.RequestError{Gateway: payment.GatewayPaystack, Message: err.Error(), Err: err}
	}

	var envelope apiResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, &gateway.RequestError{Gateway: payment.GatewayPaystack, StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}

	if resp.StatusCode >= 400 || !envelope.Status {
		return nil, &gateway.RequestError{Gateway: payment.GatewayPaystack, StatusCode: resp.StatusCode, Message: envelope.Message}
	}

	return envelope.Data, nil
}

// mapTransactionStatus normalizes Paystack transaction statuses
func mapTransactionStatus(status string) gateway.State {
	switch status {
	case "success":
		return gateway.StateSuccess
	case "failed", "abandoned", "reversed":
		return gateway.StateFailed
	default:
		return gateway.StatePending
	}
}
