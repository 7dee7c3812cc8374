package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ----------------------------
	// Mail transport
	// ----------------------------
	MailProvider string `envconfig:"MAIL_PROVIDER" default:"gmail"`
	SenderName   string `envconfig:"SENDER_NAME" default:""`

	SMTPHost     string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"465"`
	SMTPUser     string `envconfig:"SMTP_USER" default:""`
	SMTPPassword string `envconfig:"SMTP_PASSWORD" default:""`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:""`

	ResendAPIKey string `envconfig:"RESEND_API_KEY" default:""`
	ResendFrom   string `envconfig:"RESEND_FROM" default:""`

	// ----------------------------
	// Gmail OAuth
	// ----------------------------
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID" default:""`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET" default:""`
	GoogleRedirectURI  string `envconfig:"GOOGLE_REDIRECT_URI" default:"http://localhost:5000/oauth2callback"`
	FrontendURL        string `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`

	TokenStore string `envconfig:"TOKEN_STORE" default:"memory"`
	RedisURL   string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`

	// ----------------------------
	// AI content
	// ----------------------------
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY" default:""`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-pro"`

	// ----------------------------
	// Campaigns
	// ----------------------------
	MaxEmailsPerHour int           `envconfig:"MAX_EMAILS_PER_HOUR" default:"150"`
	DefaultMaxEmails int           `envconfig:"DEFAULT_MAX_EMAILS" default:"30"`
	SendTimeout      time.Duration `envconfig:"SEND_TIMEOUT" default:"60s"`
	RetryAttempts    int           `envconfig:"RETRY_ATTEMPTS" default:"3"`

	// ----------------------------
	// Uploads
	// ----------------------------
	UploadDir      string `envconfig:"UPLOAD_FOLDER" default:"uploads"`
	MaxUploadBytes int64  `envconfig:"MAX_CONTENT_LENGTH" default:"16777216"`

	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort     string   `envconfig:"API_PORT" default:"5000"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`

	// ----------------------------
	// Metrics
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	// ----------------------------
	// Ledger
	// ----------------------------
	LedgerBackend string `envconfig:"LEDGER_BACKEND" default:"postgres"`
	LedgerScope   string `envconfig:"LEDGER_SCOPE" default:"global"`
	DatabaseURL   string `envconfig:"DATABASE_URL" default:""`
	AutoMigrate   bool   `envconfig:"AUTO_MIGRATE" default:"true"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.MailProvider {
	case "gmail", "smtp", "resend":
	default:
		return errors.New("MAIL_PROVIDER must be one of gmail, smtp, resend")
	}
	switch c.LedgerBackend {
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when LEDGER_BACKEND=postgres")
		}
	case "memory":
	default:
		return errors.New("LEDGER_BACKEND must be postgres or memory")
	}
	if c.LedgerScope != "global" && c.LedgerScope != "campaign" {
		return errors.New("LEDGER_SCOPE must be global or campaign")
	}
	if c.TokenStore != "memory" && c.TokenStore != "redis" {
		return errors.New("TOKEN_STORE must be memory or redis")
	}
	if c.MaxEmailsPerHour <= 0 {
		return errors.New("MAX_EMAILS_PER_HOUR must be positive")
	}
	return nil
}

// CampaignScoped reports whether duplicate suppression is limited to one campaign id.
func (c *Config) CampaignScoped() bool {
	return c.LedgerScope == "campaign"
}
