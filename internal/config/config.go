package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/KromaEnergia/api-pagos/internal/settlement"
	"github.com/joho/godotenv"
)

type DBConfig struct {
	Host       string
	Port       uint
	Name       string
	Username   string
	Password   string
	SecretID   string
	SSLDisable bool
}

type PaypalConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	SecretID     string
	Currency     string
	Timeout      time.Duration
}

type CheckoutConfig struct {
	CaptureURL  string
	CancelURL   string
	SuccessURL  string
	StateSecret string
	StateTTL    time.Duration
}

type Config struct {
	Env         string
	Port        string
	Location    *time.Location
	AutoMigrate bool
	DB          DBConfig
	Paypal      PaypalConfig
	Checkout    CheckoutConfig
	CORSOrigins []string
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// Settlement converte para a configuração do cliente PayPal.
func (c *Config) Settlement() settlement.Config {
	return settlement.Config{
		BaseURL:      c.Paypal.BaseURL,
		ClientID:     c.Paypal.ClientID,
		ClientSecret: c.Paypal.ClientSecret,
		Currency:     c.Paypal.Currency,
		Timeout:      c.Paypal.Timeout,
	}
}

// GetEnv retorna a variável ou o padrão quando ausente/vazia.
func GetEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(GetEnv(key, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := GetEnv(key, "")
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s inválido: %w", key, err)
	}
	return d, nil
}

// Load lê o .env (se existir) sem sobrescrever variáveis já definidas e monta a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv monta a Config só a partir do ambiente.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Env:         strings.ToLower(GetEnv("APP_ENV", "development")),
		Port:        GetEnv("PORT", "8080"),
		AutoMigrate: getBool("AUTO_MIGRATE", false),
	}

	loc, err := time.LoadLocation(GetEnv("TZ_LOCATION", "Local"))
	if err != nil {
		return nil, fmt.Errorf("TZ_LOCATION inválido: %w", err)
	}
	cfg.Location = loc

	port, err := strconv.ParseUint(GetEnv("DB_PORT", "5432"), 10, 32)
	if err != nil {
		port = 5432
	}
	cfg.DB = DBConfig{
		Host:       GetEnv("DB_HOST", "localhost"),
		Port:       uint(port),
		Name:       GetEnv("DB_NAME", "pagos"),
		Username:   GetEnv("DB_USERNAME", ""),
		Password:   GetEnv("DB_PASSWORD", ""),
		SecretID:   GetEnv("DB_SECRET_ID", ""),
		SSLDisable: getBool("DB_SSL_MODE_DISABLE", false),
	}

	timeout, err := getDuration("PAYPAL_TIMEOUT", settlement.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	baseURL := settlement.SandboxBaseURL
	if strings.EqualFold(GetEnv("PAYPAL_MODE", "sandbox"), "live") {
		baseURL = settlement.LiveBaseURL
	}
	cfg.Paypal = PaypalConfig{
		BaseURL:      GetEnv("PAYPAL_BASE_URL", baseURL),
		ClientID:     GetEnv("PAYPAL_CLIENT_ID", ""),
		ClientSecret: GetEnv("PAYPAL_CLIENT_SECRET", ""),
		SecretID:     GetEnv("PAYPAL_SECRET_ID", ""),
		Currency:     GetEnv("PAYPAL_CURRENCY", settlement.DefaultCurrency),
		Timeout:      timeout,
	}

	ttl, err := getDuration("CHECKOUT_STATE_TTL", 3*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.Checkout = CheckoutConfig{
		CaptureURL:  GetEnv("CHECKOUT_CAPTURE_URL", "http://localhost:8080/api/payments/{id}/paypal-capture"),
		CancelURL:   GetEnv("CHECKOUT_CANCEL_URL", "http://localhost:5173/payments"),
		SuccessURL:  GetEnv("CHECKOUT_SUCCESS_URL", "http://localhost:5173/success"),
		StateSecret: GetEnv("CHECKOUT_STATE_SECRET", ""),
		StateTTL:    ttl,
	}

	for _, o := range strings.Split(GetEnv("CORS_ALLOWED_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}
	return cfg, nil
}

// ResolveSecrets completa credenciais ausentes a partir do AWS Secrets Manager.
// Só consulta a AWS quando há um secret id configurado e algum valor faltando.
func (c *Config) ResolveSecrets(ctx context.Context, fetch SecretFetcher) error {
	if (c.DB.Username == "" || c.DB.Password == "") && c.DB.SecretID != "" {
		var creds DBCredentials
		if err := fetch.FetchJSON(ctx, c.DB.SecretID, &creds); err != nil {
			return fmt.Errorf("credenciais do banco: %w", err)
		}
		c.DB.Username, c.DB.Password = creds.Username, creds.Password
	}
	if (c.Paypal.ClientID == "" || c.Paypal.ClientSecret == "") && c.Paypal.SecretID != "" {
		var creds PaypalCredentials
		if err := fetch.FetchJSON(ctx, c.Paypal.SecretID, &creds); err != nil {
			return fmt.Errorf("credenciais do paypal: %w", err)
		}
		c.Paypal.ClientID, c.Paypal.ClientSecret = creds.ClientID, creds.ClientSecret
	}
	return nil
}
