package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Square       SquareConfig
	Checkout     CheckoutConfig
	Entitlement  EntitlementConfig
	Webhook      WebhookConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STREAMPASS_APP_ENV" required:"true"`
	Port         string `envconfig:"STREAMPASS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STREAMPASS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STREAMPASS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STREAMPASS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STREAMPASS_DB_DSN"`
	Driver string `envconfig:"STREAMPASS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STREAMPASS_DB_HOST"`
	LegacyPort     int    `envconfig:"STREAMPASS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STREAMPASS_DB_USER"`
	LegacyPassword string `envconfig:"STREAMPASS_DB_PASSWORD"`
	LegacyName     string `envconfig:"STREAMPASS_DB_NAME"`
	LegacySSLMode  string `envconfig:"STREAMPASS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STREAMPASS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STREAMPASS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STREAMPASS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STREAMPASS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STREAMPASS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STREAMPASS_REDIS_ADDR"`
	Password     string        `envconfig:"STREAMPASS_REDIS_PASSWORD"`
	DB           int           `envconfig:"STREAMPASS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STREAMPASS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STREAMPASS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STREAMPASS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STREAMPASS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STREAMPASS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type SquareConfig struct {
	AccessToken    string        `envconfig:"STREAMPASS_SQUARE_ACCESS_TOKEN"`
	WebhookSecret  string        `envconfig:"STREAMPASS_SQUARE_WEBHOOK_SECRET"`
	LocationID     string        `envconfig:"STREAMPASS_SQUARE_LOCATION_ID"`
	Env            string        `envconfig:"STREAMPASS_SQUARE_ENV" default:"sandbox"`
	ConfirmTimeout time.Duration `envconfig:"STREAMPASS_SQUARE_CONFIRM_TIMEOUT" default:"15s"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// CheckoutConfig controls the marketplace split applied to every purchase.
// Fees are expressed in basis points so the split stays in integer arithmetic.
type CheckoutConfig struct {
	PlatformFeeBps         int    `envconfig:"STREAMPASS_PLATFORM_FEE_BPS" default:"1000"`
	ProcessorFeeBps        int    `envconfig:"STREAMPASS_PROCESSOR_FEE_BPS" default:"290"`
	ProcessorFeeFixedCents int64  `envconfig:"STREAMPASS_PROCESSOR_FEE_FIXED_CENTS" default:"30"`
	CheckoutBaseURL        string `envconfig:"STREAMPASS_CHECKOUT_BASE_URL" required:"true"`
	DefaultCurrency        string `envconfig:"STREAMPASS_DEFAULT_CURRENCY" default:"USD"`
	MaxConfirmAttemptsHint int    `envconfig:"STREAMPASS_CONFIRM_ATTEMPTS_HINT" default:"3"`
}

func (c CheckoutConfig) validate() error {
	if c.PlatformFeeBps < 0 || c.PlatformFeeBps > 10000 {
		return fmt.Errorf("platform fee bps must be within [0,10000], got %d", c.PlatformFeeBps)
	}
	if c.ProcessorFeeBps < 0 || c.ProcessorFeeBps > 10000 {
		return fmt.Errorf("processor fee bps must be within [0,10000], got %d", c.ProcessorFeeBps)
	}
	if c.ProcessorFeeFixedCents < 0 {
		return fmt.Errorf("processor fixed fee must be non-negative, got %d", c.ProcessorFeeFixedCents)
	}
	return nil
}

type EntitlementConfig struct {
	DefaultTTL time.Duration `envconfig:"STREAMPASS_ENTITLEMENT_DEFAULT_TTL" default:"24h"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"STREAMPASS_WEBHOOK_IDEMPOTENCY_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STREAMPASS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STREAMPASS_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STREAMPASS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STREAMPASS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STREAMPASS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	PurchasesTopic       string `envconfig:"STREAMPASS_PUBSUB_PURCHASES_TOPIC" default:"sp-purchase-events"`
	PlaybackTopic        string `envconfig:"STREAMPASS_PUBSUB_PLAYBACK_TOPIC" default:"sp-playback-events"`
	PlaybackSubscription string `envconfig:"STREAMPASS_PUBSUB_PLAYBACK_SUBSCRIPTION"`
}

type BigQueryConfig struct {
	Dataset            string `envconfig:"STREAMPASS_BIGQUERY_DATASET" default:"streampass"`
	PlaybackFactsTable string `envconfig:"STREAMPASS_BIGQUERY_PLAYBACK_TABLE" default:"playback_facts"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"STREAMPASS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"STREAMPASS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"STREAMPASS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"STREAMPASS_OUTBOX_IDEMPOTENCY_TTL" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
