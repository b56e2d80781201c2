package settlement

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	SandboxBaseURL = "https://api-m.sandbox.paypal.com"
	LiveBaseURL    = "https://api-m.paypal.com"

	DefaultCurrency = "USD"
	DefaultTimeout  = 15 * time.Second
)

// Config são as credenciais e parâmetros do processador, injetados na construção do Client.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Currency     string
	Timeout      time.Duration
}

// withDefaults preenche moeda, timeout e URL base ausentes.
func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = SandboxBaseURL
	}
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Validate exige credenciais e URL base absoluta.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" || strings.TrimSpace(c.ClientSecret) == "" {
		return fmt.Errorf("%w: client id/secret ausentes", ErrConfigInvalid)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base url %q", ErrConfigInvalid, c.BaseURL)
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("%w: moeda %q", ErrConfigInvalid, c.Currency)
	}
	return nil
}
