package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is shared by every entry point; each binary reads only the fields it needs.
type Config struct {
	AWSRegion        string `envconfig:"AWS_REGION" default:"us-east-1"`
	EndpointOverride string `envconfig:"AWS_ENDPOINT_OVERRIDE"`

	InvoicesTable     string `envconfig:"INVOICES_TABLE" default:"invoices"`
	EventsTable       string `envconfig:"EVENTS_TABLE" default:"events"`
	InvoicesBucket    string `envconfig:"INVOICES_BUCKET"`
	WebSocketEndpoint string `envconfig:"INVOICE_WSAPI_ENDPOINT"`
	FailuresQueueURL  string `envconfig:"IMPORT_FAILURES_QUEUE_URL"`
	MetricsNamespace  string `envconfig:"METRICS_NAMESPACE"`

	TransactionTimeBox time.Duration `envconfig:"TRANSACTION_TIMEBOX" default:"5m"`
	UploadURLExpires   time.Duration `envconfig:"UPLOAD_URL_EXPIRES" default:"5m"`
	EventTTL           time.Duration `envconfig:"EVENT_TTL" default:"1h"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	RunLocal bool   `envconfig:"RUN_LOCAL" default:"false"`
	Port     string `envconfig:"PORT" default:"8080"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	// a missing .env is the normal case inside Lambda
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("error processing envconfig: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.TransactionTimeBox <= 0 {
		return fmt.Errorf("TRANSACTION_TIMEBOX must be positive, got %s", c.TransactionTimeBox)
	}
	if c.UploadURLExpires <= 0 {
		return fmt.Errorf("UPLOAD_URL_EXPIRES must be positive, got %s", c.UploadURLExpires)
	}
	if c.InvoicesTable == "" {
		return fmt.Errorf("INVOICES_TABLE is required")
	}
	return nil
}
