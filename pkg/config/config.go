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
	JWT          JWTConfig
	Billing      BillingConfig
	FeatureFlags FeatureFlagsConfig
	Gateway      GatewayConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LUMEA_APP_ENV" required:"true"`
	Port         string `envconfig:"LUMEA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LUMEA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LUMEA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LUMEA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LUMEA_DB_DSN"`
	Driver string `envconfig:"LUMEA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LUMEA_DB_HOST"`
	LegacyPort     int    `envconfig:"LUMEA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LUMEA_DB_USER"`
	LegacyPassword string `envconfig:"LUMEA_DB_PASSWORD"`
	LegacyName     string `envconfig:"LUMEA_DB_NAME"`
	LegacySSLMode  string `envconfig:"LUMEA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LUMEA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LUMEA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LUMEA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LUMEA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LUMEA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LUMEA_REDIS_ADDR"`
	Password     string        `envconfig:"LUMEA_REDIS_PASSWORD"`
	DB           int           `envconfig:"LUMEA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LUMEA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LUMEA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LUMEA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LUMEA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LUMEA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"LUMEA_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"LUMEA_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"LUMEA_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"LUMEA_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type BillingConfig struct {
	DefaultCommissionPct int    `envconfig:"LUMEA_BILLING_DEFAULT_COMMISSION_PCT" default:"20"`
	CoinValueINR         string `envconfig:"LUMEA_BILLING_COIN_VALUE_INR" default:"0.10"`
	MinWithdrawCoins     int64  `envconfig:"LUMEA_BILLING_MIN_WITHDRAW_COINS" default:"500"`

	PresenceTTL     time.Duration `envconfig:"LUMEA_PRESENCE_TTL" default:"60s"`
	SessionMaxLen   time.Duration `envconfig:"LUMEA_SESSION_MAX_LENGTH" default:"4h"`
	SessionStaleAge time.Duration `envconfig:"LUMEA_SESSION_STALE_AGE" default:"6h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LUMEA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LUMEA_AUTO_MIGRATE" default:"false"`
}

type GatewayConfig struct {
	KeyID     string `envconfig:"LUMEA_GATEWAY_KEY_ID"`
	KeySecret string `envconfig:"LUMEA_GATEWAY_KEY_SECRET"`
	Env       string `envconfig:"LUMEA_GATEWAY_ENV" default:"test"`
}

// Environment returns the normalized payment gateway environment (test/live).
func (g GatewayConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(g.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LUMEA_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"LUMEA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LUMEA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	LedgerTopic            string `envconfig:"LUMEA_PUBSUB_LEDGER_TOPIC" default:"lumea-ledger-events"`
	LedgerSubscription     string `envconfig:"LUMEA_PUBSUB_LEDGER_SUBSCRIPTION" required:"true"`
	SessionTopic           string `envconfig:"LUMEA_PUBSUB_SESSION_TOPIC" default:"lumea-session-events"`
	SessionSubscription    string `envconfig:"LUMEA_PUBSUB_SESSION_SUBSCRIPTION" required:"true"`
	WithdrawalTopic        string `envconfig:"LUMEA_PUBSUB_WITHDRAWAL_TOPIC" default:"lumea-withdrawal-events"`
	WithdrawalSubscription string `envconfig:"LUMEA_PUBSUB_WITHDRAWAL_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LUMEA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LUMEA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LUMEA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type RateLimitConfig struct {
	WithdrawWindow       time.Duration `envconfig:"LUMEA_RATELIMIT_WITHDRAW_WINDOW" default:"1m"`
	WithdrawIPLimit      int           `envconfig:"LUMEA_RATELIMIT_WITHDRAW_IP_LIMIT" default:"10"`
	WithdrawAccountLimit int           `envconfig:"LUMEA_RATELIMIT_WITHDRAW_ACCOUNT_LIMIT" default:"3"`

	SessionWindow       time.Duration `envconfig:"LUMEA_RATELIMIT_SESSION_WINDOW" default:"1m"`
	SessionIPLimit      int           `envconfig:"LUMEA_RATELIMIT_SESSION_IP_LIMIT" default:"30"`
	SessionAccountLimit int           `envconfig:"LUMEA_RATELIMIT_SESSION_ACCOUNT_LIMIT" default:"10"`
}

type CronConfig struct {
	StaleSessionSweepInterval time.Duration `envconfig:"LUMEA_CRON_STALE_SESSION_INTERVAL" default:"5m"`
	OutboxRetentionDays       int           `envconfig:"LUMEA_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
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
