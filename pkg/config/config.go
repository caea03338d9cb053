package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "TRADELEDGER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "TRADELEDGER_APP_ENV"
	EnvPort         = "TRADELEDGER_APP_PORT"
	EnvDBDSN        = "TRADELEDGER_DB_DSN"
	EnvDBHost       = "TRADELEDGER_DB_HOST"
	EnvDBUser       = "TRADELEDGER_DB_USER"
	EnvDBName       = "TRADELEDGER_DB_NAME"
	EnvRedisURL     = "TRADELEDGER_REDIS_URL"
	EnvJWTSecret    = "TRADELEDGER_JWT_SECRET"
	EnvJWTIssuer    = "TRADELEDGER_JWT_ISSUER"
	EnvGCPProjectID = "TRADELEDGER_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Ledger       LedgerConfig
	Market       MarketConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	if cfg.Ledger.OperationTimeout <= 0 {
		return nil, fmt.Errorf("ledger operation timeout must be positive")
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"TRADELEDGER_APP_ENV" required:"true"`
	Port         string   `envconfig:"TRADELEDGER_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"TRADELEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"TRADELEDGER_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"TRADELEDGER_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// ServiceConfig identifies the binary. Workers serve /metrics and
// /health/ready on AdminPort; the API serves them on its main port.
type ServiceConfig struct {
	Kind      string `envconfig:"TRADELEDGER_SERVICE_KIND" default:"api"`
	AdminPort string `envconfig:"TRADELEDGER_ADMIN_PORT" default:"9090"`
}

type DBConfig struct {
	DSN    string `envconfig:"TRADELEDGER_DB_DSN"`
	Driver string `envconfig:"TRADELEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TRADELEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"TRADELEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TRADELEDGER_DB_USER"`
	LegacyPassword string `envconfig:"TRADELEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"TRADELEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"TRADELEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRADELEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRADELEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRADELEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRADELEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// LockTimeout bounds how long a ledger operation waits on a wallet row lock.
	LockTimeout time.Duration `envconfig:"TRADELEDGER_DB_LOCK_TIMEOUT" default:"3s"`
	// SlowQuery is the threshold above which a statement is logged at warn.
	SlowQuery time.Duration `envconfig:"TRADELEDGER_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TRADELEDGER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TRADELEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"TRADELEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRADELEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRADELEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRADELEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRADELEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRADELEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRADELEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies bearer tokens minted by the identity service.
type JWTConfig struct {
	Secret string        `envconfig:"TRADELEDGER_JWT_SECRET" required:"true"`
	Issuer string        `envconfig:"TRADELEDGER_JWT_ISSUER" required:"true"`
	Leeway time.Duration `envconfig:"TRADELEDGER_JWT_LEEWAY" default:"30s"`
}

type LedgerConfig struct {
	OperationTimeout time.Duration `envconfig:"TRADELEDGER_LEDGER_OPERATION_TIMEOUT" default:"10s"`
	IdempotencyTTL   time.Duration `envconfig:"TRADELEDGER_LEDGER_IDEMPOTENCY_TTL" default:"24h"`
	DefaultPrecision int32         `envconfig:"TRADELEDGER_LEDGER_DEFAULT_PRECISION" default:"8"`
	// FeeAccountID owns the wallets that collected fees are credited to.
	FeeAccountID     string        `envconfig:"TRADELEDGER_LEDGER_FEE_ACCOUNT_ID" default:"00000000-0000-0000-0000-00000000fee0"`
}

type MarketConfig struct {
	Provider       string        `envconfig:"TRADELEDGER_MARKET_PROVIDER" default:"binance"`
	APIKey         string        `envconfig:"TRADELEDGER_MARKET_API_KEY"`
	SecretKey      string        `envconfig:"TRADELEDGER_MARKET_SECRET_KEY"`
	BaseURL        string        `envconfig:"TRADELEDGER_MARKET_BASE_URL"`
	RequestTimeout time.Duration `envconfig:"TRADELEDGER_MARKET_REQUEST_TIMEOUT" default:"5s"`
	MaxRetries     int           `envconfig:"TRADELEDGER_MARKET_MAX_RETRIES" default:"3"`
	RetryInterval  time.Duration `envconfig:"TRADELEDGER_MARKET_RETRY_INTERVAL" default:"200ms"`
	TickerCacheTTL time.Duration `envconfig:"TRADELEDGER_MARKET_TICKER_CACHE_TTL" default:"2s"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"TRADELEDGER_CRON_INTERVAL" default:"15s"`
	BinarySettleBatch     int           `envconfig:"TRADELEDGER_CRON_BINARY_SETTLE_BATCH" default:"100"`
	InvestmentMatureBatch int           `envconfig:"TRADELEDGER_CRON_INVESTMENT_MATURE_BATCH" default:"100"`
	// MaintenanceEvery spaces out the idempotency purge and outbox retention
	// jobs; settlement jobs run every interval.
	MaintenanceEvery time.Duration `envconfig:"TRADELEDGER_CRON_MAINTENANCE_EVERY" default:"1h"`
}

// RateLimitConfig throttles money-moving routes per user. A zero limit
// disables the policy.
type RateLimitConfig struct {
	WithdrawalWindow time.Duration `envconfig:"TRADELEDGER_RATE_LIMIT_WITHDRAWAL_WINDOW" default:"1h"`
	WithdrawalLimit  int           `envconfig:"TRADELEDGER_RATE_LIMIT_WITHDRAWAL_LIMIT" default:"10"`
	OrderWindow      time.Duration `envconfig:"TRADELEDGER_RATE_LIMIT_ORDER_WINDOW" default:"1m"`
	OrderLimit       int           `envconfig:"TRADELEDGER_RATE_LIMIT_ORDER_LIMIT" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TRADELEDGER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TRADELEDGER_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TRADELEDGER_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"TRADELEDGER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	LedgerTopic        string `envconfig:"TRADELEDGER_PUBSUB_LEDGER_TOPIC" default:"tl-ledger-events"`
	LedgerSubscription string `envconfig:"TRADELEDGER_PUBSUB_LEDGER_SUBSCRIPTION" default:"tl-ledger-events-sub"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TRADELEDGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TRADELEDGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TRADELEDGER_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"TRADELEDGER_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetention   int `envconfig:"TRADELEDGER_OUTBOX_DLQ_RETENTION_DAYS" default:"90"`
	BacklogWarn    int `envconfig:"TRADELEDGER_OUTBOX_BACKLOG_WARN" default:"1000"`
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
