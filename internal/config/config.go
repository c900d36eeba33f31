package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"momopay"`
		Env  string `envconfig:"APP_ENV" default:"dev"`
		Port int    `envconfig:"PORT" default:"8080"`
		// Public base URL of this service, used to build the gateway callback URL.
		BaseURL string `envconfig:"APP_BASE_URL" default:"http://localhost:8080"`
		// Where the gateway sends the buyer after paying.
		ReturnURL string `envconfig:"APP_RETURN_URL" default:"http://localhost:3000/checkout/success"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"momopay"`
		Migrate  bool   `envconfig:"DB_MIGRATE" default:"false"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}

	Gateway struct {
		BaseURL           string            `envconfig:"GATEWAY_BASE_URL" default:"https://api.semoa-payments.com/api"`
		ClientID          string            `envconfig:"GATEWAY_CLIENT_ID"`
		ClientSecret      string            `envconfig:"GATEWAY_CLIENT_SECRET"`
		Username          string            `envconfig:"GATEWAY_USERNAME"`
		Password          string            `envconfig:"GATEWAY_PASSWORD"`
		APIKey            string            `envconfig:"GATEWAY_API_KEY"`
		UserAgent         string            `envconfig:"GATEWAY_USER_AGENT" default:"momopay/1.0"`
		Timeout           time.Duration     `envconfig:"GATEWAY_TIMEOUT" default:"30s"`
		TokenMargin       time.Duration     `envconfig:"GATEWAY_TOKEN_SAFETY_MARGIN" default:"5s"`
		TokenDefaultTTL   time.Duration     `envconfig:"GATEWAY_TOKEN_DEFAULT_TTL" default:"300s"`
		Channels          map[string]string `envconfig:"GATEWAY_CHANNELS" default:"tmoney:TMONEY,flooz:FLOOZ,airtel:AIRTEL_MONEY,mtn:MTN_MOMO"`
		DefaultChannel    string            `envconfig:"GATEWAY_DEFAULT_CHANNEL" default:"TMONEY"`
		IDFields          []string          `envconfig:"GATEWAY_ID_FIELDS" default:"transaction_id,id,reference"`
		StatusFields      []string          `envconfig:"GATEWAY_STATUS_FIELDS" default:"status"`
		CallbackToken     string            `envconfig:"GATEWAY_CALLBACK_TOKEN"`
		DescriptionPrefix string            `envconfig:"GATEWAY_DESCRIPTION_PREFIX" default:"Commande"`
	}

	Payment struct {
		Currency string `envconfig:"PAYMENT_CURRENCY" default:"XOF"`
	}

	Auth struct {
		JWTSecret string `envconfig:"AUTH_JWT_SECRET"`
		Issuer    string `envconfig:"AUTH_JWT_ISSUER"`
	}

	CORS struct {
		AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

// CallbackURL is the webhook address handed to the gateway with every charge.
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.App.BaseURL, "/") + "/api/v1/payments/callback"
}

// Production reports whether logs should be machine readable.
func (c *Config) Production() bool {
	return c.App.Env == "prod" || c.App.Env == "production"
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

// TUI configures the terminal checkout client.
type TUI struct {
	APIURL       string        `envconfig:"TUI_API_URL" default:"http://localhost:8080"`
	PollInterval time.Duration `envconfig:"TUI_POLL_INTERVAL" default:"3s"`
	PollWindow   time.Duration `envconfig:"TUI_POLL_WINDOW" default:"2m"`
	Currency     string        `envconfig:"PAYMENT_CURRENCY" default:"XOF"`
	BuyerToken   string        `envconfig:"TUI_BUYER_TOKEN"`
}

func LoadTUI() (*TUI, error) {
	var cfg TUI
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
