package foundry

import (
	"context"
	"fmt"
	"os"

	"github.com/cerina/foundry-go/model"
	"github.com/cerina/foundry-go/model/anthropic"
	"github.com/cerina/foundry-go/model/google"
	"github.com/cerina/foundry-go/model/openai"
)

// Config holds the environment-driven settings shared by the front
// ends. All keys are prefixed FOUNDRY_; binaries load a .env file
// first (via godotenv) so local development doesn't need exported
// variables.
type Config struct {
	// Provider selects the LLM backend: "openai" (default),
	// "anthropic", or "google".
	Provider string

	// APIKey authenticates with the selected provider. Required; a
	// missing key is a reported configuration error at startup.
	APIKey string

	// Model overrides the provider's default model name.
	Model string

	// WebhookURL, when set, enables crisis alerts to the webhook.
	WebhookURL string

	// DBPath is the SQLite database file (default "foundry.db").
	// Ignored when MySQLDSN is set.
	DBPath string

	// MySQLDSN, when set, selects the MySQL store instead of SQLite.
	MySQLDSN string

	// ListenAddr is the HTTP server bind address (default ":8000").
	ListenAddr string
}

// ConfigFromEnv reads configuration from FOUNDRY_* environment
// variables, applying defaults for optional settings.
func ConfigFromEnv() Config {
	cfg := Config{
		Provider:   os.Getenv("FOUNDRY_PROVIDER"),
		APIKey:     os.Getenv("FOUNDRY_API_KEY"),
		Model:      os.Getenv("FOUNDRY_MODEL"),
		WebhookURL: os.Getenv("FOUNDRY_WEBHOOK_URL"),
		DBPath:     os.Getenv("FOUNDRY_DB_PATH"),
		MySQLDSN:   os.Getenv("FOUNDRY_MYSQL_DSN"),
		ListenAddr: os.Getenv("FOUNDRY_LISTEN_ADDR"),
	}
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "foundry.db"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8000"
	}
	return cfg
}

// NewChatModel constructs the configured LLM capability.
//
// Initialization failure (missing key, unreachable provider) is
// returned as an error for the caller to report and exit; it is never
// deferred to the first workflow run.
func NewChatModel(ctx context.Context, cfg Config) (model.ChatModel, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewChatModel(cfg.APIKey, cfg.Model)
	case "anthropic":
		return anthropic.NewChatModel(cfg.APIKey, cfg.Model)
	case "google":
		return google.NewChatModel(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown provider %q (want openai, anthropic, or google)", cfg.Provider)
	}
}

// NewAlerter constructs the crisis alert sink: a webhook alerter when
// a URL is configured, otherwise a no-op.
func NewAlerter(cfg Config) Alerter {
	if cfg.WebhookURL == "" {
		return NopAlerter{}
	}
	return NewWebhookAlerter(cfg.WebhookURL)
}
