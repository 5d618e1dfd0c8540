package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration, loaded from the environment.
type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	Env       string `envconfig:"ENV" default:"dev"`
	JWTSecret string `envconfig:"SECRET" required:"true"`

	MongoURI string `envconfig:"MONGO_URI" required:"true"`
	MongoDB  string `envconfig:"MONGO_DB" default:"parkhive"`

	PayPalClientID     string `envconfig:"PAYPAL_CLIENT_ID"`
	PayPalClientSecret string `envconfig:"PAYPAL_CLIENT_SECRET"`

	MailgunDomain     string `envconfig:"MAILGUN_DOMAIN"`
	MailgunPrivateKey string `envconfig:"MAILGUN_PRIVATE_KEY"`
	MailFrom          string `envconfig:"MAIL_FROM"`

	ServiceAccountKeyPath string `envconfig:"SERVICE_ACCOUNT_KEY_PATH"`

	// ReleaseAfterStart controls what happens to escrowed funds when a
	// confirmed booking is cancelled after its start time: true releases
	// them to the owner, false refunds the requester in full. Cancelling
	// before the start always refunds in full.
	ReleaseAfterStart bool `envconfig:"CANCEL_RELEASE_AFTER_START" default:"true"`

	RefundMaxAttempts int           `envconfig:"REFUND_MAX_ATTEMPTS" default:"3"`
	RefundBackoff     time.Duration `envconfig:"REFUND_BACKOFF" default:"2s"`
	RefundCallTimeout time.Duration `envconfig:"REFUND_CALL_TIMEOUT" default:"15s"`

	PendingExpiry    time.Duration `envconfig:"PENDING_EXPIRY" default:"30m"`
	JobSweepInterval time.Duration `envconfig:"JOB_SWEEP_INTERVAL" default:"1m"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var c Config
	err := envconfig.Process("", &c)
	return c, err
}
