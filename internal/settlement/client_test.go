package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

// fakePaypal emula os três endpoints usados pelo Client.
type fakePaypal struct {
	mu sync.Mutex

	tokenStatus   int
	orderStatus   int
	orderBody     string
	captureStatus int
	captureBody   string

	orderPayload    map[string]any
	orderRequestID  string
	captureRequest  string
	capturePath     string
	tokenCalls      int
	bearerOnCapture string
}

func (f *fakePaypal) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.tokenCalls++

		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			t.Errorf("basic auth = %q/%q (ok=%v)", user, pass, ok)
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q (err=%v)", r.PostForm.Get("grant_type"), err)
		}
		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"A21AA-token","token_type":"Bearer","expires_in":32400}`)
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.orderRequestID = r.Header.Get("PayPal-Request-Id")
		_ = json.NewDecoder(r.Body).Decode(&f.orderPayload)
		if f.orderStatus != 0 {
			w.WriteHeader(f.orderStatus)
		} else {
			w.WriteHeader(http.StatusCreated)
		}
		body := f.orderBody
		if body == "" {
			body = `{"id":"5O190127TN364715T","status":"CREATED","links":[
				{"href":"https://api.sandbox.paypal.com/v2/checkout/orders/5O190127TN364715T","rel":"self","method":"GET"},
				{"href":"https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T","rel":"approve","method":"GET"}]}`
		}
		_, _ = io.WriteString(w, body)
	})
	mux.HandleFunc("/v2/checkout/orders/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.capturePath = r.URL.Path
		f.captureRequest = r.Header.Get("PayPal-Request-Id")
		f.bearerOnCapture = r.Header.Get("Authorization")
		if f.captureStatus != 0 {
			w.WriteHeader(f.captureStatus)
		} else {
			w.WriteHeader(http.StatusCreated)
		}
		body := f.captureBody
		if body == "" {
			body = `{"id":"5O190127TN364715T","status":"COMPLETED","purchase_units":[{"payments":{"captures":[{"id":"3C679366HH908993F","status":"COMPLETED"}]}}]}`
		}
		_, _ = io.WriteString(w, body)
	})
	return mux
}

func newTestClient(t *testing.T, f *fakePaypal) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL + "/", ClientID: "client-id", ClientSecret: "client-secret", Currency: "usd"}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClient_Config(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{ClientID: "id", ClientSecret: "secret"}, false},
		{"missing secret", Config{ClientID: "id"}, true},
		{"blank id", Config{ClientID: "  ", ClientSecret: "secret"}, true},
		{"relative url", Config{BaseURL: "api.paypal.com", ClientID: "id", ClientSecret: "secret"}, true},
		{"bad currency", Config{ClientID: "id", ClientSecret: "secret", Currency: "DOLLAR"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewClient(tc.cfg, nil)
			if tc.wantErr {
				if !errors.Is(err, ErrConfigInvalid) {
					t.Fatalf("err = %v, want ErrConfigInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.cfg.BaseURL != SandboxBaseURL || c.cfg.Currency != DefaultCurrency || c.cfg.Timeout != DefaultTimeout {
				t.Fatalf("defaults not applied: %+v", c.cfg)
			}
		})
	}
}

func TestAccessToken(t *testing.T) {
	f := &fakePaypal{}
	c := newTestClient(t, f)

	tok, err := c.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if tok != "A21AA-token" {
		t.Fatalf("token = %q", tok)
	}
}

func TestAccessToken_Rejected(t *testing.T) {
	f := &fakePaypal{tokenStatus: http.StatusUnauthorized}
	c := newTestClient(t, f)

	if _, err := c.AccessToken(context.Background()); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
	if _, err := c.CreateOrder(context.Background(), OrderInput{Amount: decimal.NewFromInt(1)}); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("CreateOrder err = %v, want ErrAuthFailed", err)
	}
}

func TestCreateOrder(t *testing.T) {
	f := &fakePaypal{}
	c := newTestClient(t, f)

	order, err := c.CreateOrder(context.Background(), OrderInput{
		Amount:      decimal.RequireFromString("150.5"),
		Description: "Mensualidad marzo",
		ReturnURL:   "http://api.test/api/payments/1/paypal-capture",
		CancelURL:   "http://front.test/payments",
		RequestID:   "req-1",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if order.ID != "5O190127TN364715T" || !strings.Contains(order.ApprovalURL, "checkoutnow") {
		t.Fatalf("unexpected order %+v", order)
	}
	if f.orderRequestID != "req-1" {
		t.Errorf("PayPal-Request-Id = %q", f.orderRequestID)
	}

	if f.orderPayload["intent"] != "CAPTURE" {
		t.Errorf("intent = %v", f.orderPayload["intent"])
	}
	units := f.orderPayload["purchase_units"].([]any)
	amount := units[0].(map[string]any)["amount"].(map[string]any)
	if amount["value"] != "150.50" || amount["currency_code"] != "USD" {
		t.Errorf("amount = %v", amount)
	}
	appCtx := f.orderPayload["application_context"].(map[string]any)
	if appCtx["return_url"] != "http://api.test/api/payments/1/paypal-capture" || appCtx["cancel_url"] != "http://front.test/payments" {
		t.Errorf("application_context = %v", appCtx)
	}
}

func TestCreateOrder_Failures(t *testing.T) {
	cases := []struct {
		name string
		f    *fakePaypal
		in   OrderInput
		want error
	}{
		{"negative amount", &fakePaypal{}, OrderInput{Amount: decimal.NewFromInt(-1)}, ErrRequestFailed},
		{"rejected", &fakePaypal{orderStatus: http.StatusUnprocessableEntity, orderBody: `{"name":"UNPROCESSABLE_ENTITY"}`}, OrderInput{Amount: decimal.NewFromInt(1)}, ErrRequestFailed},
		{"not json", &fakePaypal{orderBody: `<html>oops</html>`}, OrderInput{Amount: decimal.NewFromInt(1)}, ErrResponseInvalid},
		{"no approve link", &fakePaypal{orderBody: `{"id":"X","links":[{"href":"h","rel":"self"}]}`}, OrderInput{Amount: decimal.NewFromInt(1)}, ErrResponseInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, tc.f)
			if _, err := c.CreateOrder(context.Background(), tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCaptureOrder(t *testing.T) {
	f := &fakePaypal{}
	c := newTestClient(t, f)

	res, err := c.CaptureOrder(context.Background(), " 5O190127TN364715T ")
	if err != nil {
		t.Fatalf("CaptureOrder: %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if res.Inconclusive() || res.TransactionID != "3C679366HH908993F" || res.Status != "COMPLETED" {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.capturePath != "/v2/checkout/orders/5O190127TN364715T/capture" {
		t.Errorf("path = %q", f.capturePath)
	}
	if f.captureRequest != CaptureRequestID("5O190127TN364715T") {
		t.Errorf("PayPal-Request-Id = %q", f.captureRequest)
	}
	if f.bearerOnCapture != "Bearer A21AA-token" {
		t.Errorf("Authorization = %q", f.bearerOnCapture)
	}
}

func TestCaptureOrder_Inconclusive(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no captures", `{"id":"O-1","status":"COMPLETED","purchase_units":[{"payments":{"captures":[]}}]}`},
		{"no purchase units", `{"id":"O-1","status":"PENDING"}`},
		{"not json", `accepted`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, &fakePaypal{captureBody: tc.body})
			res, err := c.CaptureOrder(context.Background(), "O-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !res.Inconclusive() {
				t.Fatalf("expected inconclusive, got %+v", res)
			}
			if string(res.Raw) != tc.body {
				t.Errorf("raw body not kept: %q", res.Raw)
			}
		})
	}
}

func TestCaptureOrder_Failures(t *testing.T) {
	c := newTestClient(t, &fakePaypal{captureStatus: http.StatusUnprocessableEntity, captureBody: `{"name":"ORDER_NOT_APPROVED"}`})
	if _, err := c.CaptureOrder(context.Background(), "O-1"); !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("err = %v, want ErrRequestFailed", err)
	}
	if _, err := c.CaptureOrder(context.Background(), "  "); !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("empty id: err = %v, want ErrRequestFailed", err)
	}
}
