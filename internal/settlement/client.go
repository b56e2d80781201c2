package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Client conversa com a API REST do PayPal: token, criação e captura de ordens.
// Cada operação faz uma única tentativa, sem retry.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

type Option func(*Client)

// WithHTTPClient substitui o http.Client padrão (timeout de cfg.Timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient valida a configuração; credenciais ausentes retornam ErrConfigInvalid.
func NewClient(cfg Config, log *zap.Logger, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.Named("paypal"),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

/* ============================== Token ============================== */

// AccessToken troca client id/secret por um bearer token (client_credentials).
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		c.log.Error("token request failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if !is2xx(status) {
		c.log.Error("token endpoint returned non-2xx", zap.Int("status", status), zap.ByteString("body", body))
		return "", fmt.Errorf("%w: status %d", ErrAuthFailed, status)
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || strings.TrimSpace(resp.AccessToken) == "" {
		c.log.Error("token response without access_token", zap.ByteString("body", body))
		return "", fmt.Errorf("%w: access_token ausente", ErrAuthFailed)
	}
	return resp.AccessToken, nil
}

/* ============================== Orders ============================== */

type OrderInput struct {
	Amount      decimal.Decimal
	Description string
	ReturnURL   string
	CancelURL   string
	// RequestID vai no cabeçalho PayPal-Request-Id; vazio gera um uuid.
	RequestID string
}

// Order é a ordem criada; ApprovalURL é o link rel="approve".
type Order struct {
	ID          string
	Status      string
	ApprovalURL string
	Raw         json.RawMessage
}

type link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// CreateOrder cria uma ordem com intent CAPTURE e retorna o link de aprovação.
func (c *Client) CreateOrder(ctx context.Context, in OrderInput) (*Order, error) {
	if in.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: valor negativo", ErrRequestFailed)
	}
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount": map[string]string{
				"currency_code": c.cfg.Currency,
				"value":         in.Amount.StringFixed(2),
			},
			"description": in.Description,
		}},
		"application_context": map[string]string{
			"return_url": in.ReturnURL,
			"cancel_url": in.CancelURL,
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	requestID := in.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/v2/checkout/orders", token, raw)
	if err != nil {
		return nil, err
	}
	req.Header.Set("PayPal-Request-Id", requestID)

	status, body, err := c.do(req)
	if err != nil {
		c.log.Error("create order failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if !is2xx(status) {
		c.log.Error("create order returned non-2xx", zap.Int("status", status), zap.ByteString("body", body))
		return nil, fmt.Errorf("%w: status %d", ErrRequestFailed, status)
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Links  []link `json:"links"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		c.log.Error("create order response is not json", zap.ByteString("body", body))
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}

	order := &Order{ID: resp.ID, Status: resp.Status, Raw: body}
	for _, l := range resp.Links {
		if strings.EqualFold(l.Rel, "approve") && l.Href != "" {
			order.ApprovalURL = l.Href
			break
		}
	}
	if order.ApprovalURL == "" {
		c.log.Error("create order response without approve link", zap.ByteString("body", body))
		return nil, fmt.Errorf("%w: link de aprovação ausente", ErrResponseInvalid)
	}

	c.log.Info("order created", zap.String("order_id", order.ID), zap.String("status", order.Status))
	return order, nil
}

/* ============================== Capture ============================== */

// CaptureResult: TransactionID vazio significa resultado inconclusivo
// (o processador aceitou a captura mas a resposta não traz o id).
type CaptureResult struct {
	OrderID       string
	Status        string
	TransactionID string
	Raw           json.RawMessage
}

func (r *CaptureResult) Inconclusive() bool { return r.TransactionID == "" }

// CaptureRequestID é o cabeçalho de idempotência da captura de uma ordem.
func CaptureRequestID(orderID string) string { return "capture-" + orderID }

// CaptureOrder captura uma ordem aprovada. Resposta 2xx sem o id da transação
// não é erro: volta um CaptureResult inconclusivo.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id vazio", ErrRequestFailed)
	}
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := c.newJSONRequest(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(orderID)+"/capture", token, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("PayPal-Request-Id", CaptureRequestID(orderID))

	status, body, err := c.do(req)
	if err != nil {
		c.log.Error("capture failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if !is2xx(status) {
		c.log.Error("capture returned non-2xx", zap.String("order_id", orderID), zap.Int("status", status), zap.ByteString("body", body))
		return nil, fmt.Errorf("%w: status %d", ErrRequestFailed, status)
	}

	res := &CaptureResult{OrderID: orderID, Raw: body}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		c.log.Warn("capture response is not json", zap.String("order_id", orderID), zap.ByteString("body", body))
		return res, nil
	}
	res.Status, _ = doc["status"].(string)
	res.TransactionID = captureID(doc)
	if res.Inconclusive() {
		c.log.Warn("capture response without transaction id", zap.String("order_id", orderID), zap.ByteString("body", body))
	} else {
		c.log.Info("order captured", zap.String("order_id", orderID), zap.String("transaction_id", res.TransactionID))
	}
	return res, nil
}

// captureID lê purchase_units[0].payments.captures[0].id.
func captureID(doc map[string]any) string {
	units, _ := doc["purchase_units"].([]any)
	if len(units) == 0 {
		return ""
	}
	unit, _ := units[0].(map[string]any)
	payments, _ := unit["payments"].(map[string]any)
	captures, _ := payments["captures"].([]any)
	if len(captures) == 0 {
		return ""
	}
	first, _ := captures[0].(map[string]any)
	id, _ := first["id"].(string)
	return strings.TrimSpace(id)
}

/* ============================== HTTP ============================== */

func (c *Client) newJSONRequest(ctx context.Context, method, path, token string, body []byte) (*http.Request, error) {
	var r io.Reader = http.NoBody
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func is2xx(status int) bool { return status >= 200 && status < 300 }
