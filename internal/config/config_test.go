package config

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/KromaEnergia/api-pagos/internal/settlement"
)

// fakeSecrets devolve segredos fixos por id e conta as consultas.
type fakeSecrets struct {
	values map[string]string
	calls  []string
}

func (f *fakeSecrets) FetchJSON(_ context.Context, secretID string, out any) error {
	f.calls = append(f.calls, secretID)
	raw, ok := f.values[secretID]
	if !ok {
		return errors.New("secret não encontrado")
	}
	return json.Unmarshal([]byte(raw), out)
}

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "PORT", "TZ_LOCATION", "PAYPAL_BASE_URL", "PAYPAL_MODE", "PAYPAL_TIMEOUT", "CHECKOUT_STATE_TTL", "CORS_ALLOWED_ORIGINS", "CHECKOUT_CAPTURE_URL"} {
		t.Setenv(k, "")
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Env != "development" || cfg.Port != "8080" || cfg.IsProduction() {
		t.Errorf("unexpected env/port: %q %q", cfg.Env, cfg.Port)
	}
	if cfg.Paypal.BaseURL != settlement.SandboxBaseURL || cfg.Paypal.Timeout != settlement.DefaultTimeout {
		t.Errorf("unexpected paypal defaults: %+v", cfg.Paypal)
	}
	if cfg.Checkout.StateTTL != 3*time.Hour || cfg.Checkout.CaptureURL == "" {
		t.Errorf("unexpected checkout defaults: %+v", cfg.Checkout)
	}
	if len(cfg.CORSOrigins) != 0 {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("TZ_LOCATION", "UTC")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("PAYPAL_CLIENT_ID", " id ")
	t.Setenv("PAYPAL_CLIENT_SECRET", "secret")
	t.Setenv("PAYPAL_CURRENCY", "mxn")
	t.Setenv("PAYPAL_TIMEOUT", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, ,https://b.test")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if !cfg.IsProduction() || cfg.Location != time.UTC || cfg.DB.Port != 6543 {
		t.Fatalf("unexpected cfg %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.test" {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}

	sc := cfg.Settlement()
	if sc.ClientID != "id" || sc.Timeout != 5*time.Second || sc.Currency != "mxn" {
		t.Fatalf("unexpected settlement config %+v", sc)
	}
	if _, err := settlement.NewClient(sc, nil); err != nil {
		t.Fatalf("settlement config should be valid: %v", err)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]string{
		"TZ_LOCATION":        "Mars/Olympus",
		"PAYPAL_TIMEOUT":     "quinze",
		"CHECKOUT_STATE_TTL": "-",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error for %s=%q", key, val)
			}
		})
	}
}

func TestResolveSecrets(t *testing.T) {
	fetch := &fakeSecrets{values: map[string]string{
		"db/pagos":     `{"username":"pagos","password":"s3nha"}`,
		"paypal/pagos": `{"client_id":"cid","client_secret":"csecret"}`,
	}}
	cfg := &Config{
		DB:     DBConfig{SecretID: "db/pagos"},
		Paypal: PaypalConfig{SecretID: "paypal/pagos"},
	}
	if err := cfg.ResolveSecrets(context.Background(), fetch); err != nil {
		t.Fatalf("ResolveSecrets: %v", err)
	}
	if cfg.DB.Username != "pagos" || cfg.DB.Password != "s3nha" {
		t.Errorf("db creds = %+v", cfg.DB)
	}
	if cfg.Paypal.ClientID != "cid" || cfg.Paypal.ClientSecret != "csecret" {
		t.Errorf("paypal creds = %+v", cfg.Paypal)
	}
}

func TestResolveSecrets_SkipsWhenCredentialsPresent(t *testing.T) {
	fetch := &fakeSecrets{}
	cfg := &Config{
		DB:     DBConfig{Username: "u", Password: "p", SecretID: "db/pagos"},
		Paypal: PaypalConfig{},
	}
	if err := cfg.ResolveSecrets(context.Background(), fetch); err != nil {
		t.Fatalf("ResolveSecrets: %v", err)
	}
	if len(fetch.calls) != 0 {
		t.Fatalf("no secret should be fetched, got %v", fetch.calls)
	}
}

func TestResolveSecrets_Error(t *testing.T) {
	cfg := &Config{Paypal: PaypalConfig{SecretID: "missing"}}
	if err := cfg.ResolveSecrets(context.Background(), &fakeSecrets{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestFromEnv_PaypalMode(t *testing.T) {
	t.Setenv("PAYPAL_BASE_URL", "")
	t.Setenv("PAYPAL_MODE", "LIVE")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Paypal.BaseURL != settlement.LiveBaseURL {
		t.Fatalf("BaseURL = %q, want live", cfg.Paypal.BaseURL)
	}

	t.Setenv("PAYPAL_BASE_URL", "http://localhost:9999")
	cfg, err = FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Paypal.BaseURL != "http://localhost:9999" {
		t.Fatalf("explicit base url must win, got %q", cfg.Paypal.BaseURL)
	}
}
