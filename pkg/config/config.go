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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Earnings     EarningsConfig
	Dashboard    DashboardConfig
	Idempotency  IdempotencyConfig
	RateLimit    RateLimitConfig
	Broadcast    BroadcastConfig
	Stripe       StripeConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if cfg.Earnings.PerLegCents < 0 {
		return nil, fmt.Errorf("%s must be non-negative", EnvEarningPerLegCents)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ZIPSHIFT_APP_ENV" required:"true"`
	Port         string `envconfig:"ZIPSHIFT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ZIPSHIFT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ZIPSHIFT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ZIPSHIFT_DB_DSN"`
	Driver string `envconfig:"ZIPSHIFT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ZIPSHIFT_DB_HOST"`
	LegacyPort     int    `envconfig:"ZIPSHIFT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ZIPSHIFT_DB_USER"`
	LegacyPassword string `envconfig:"ZIPSHIFT_DB_PASSWORD"`
	LegacyName     string `envconfig:"ZIPSHIFT_DB_NAME"`
	LegacySSLMode  string `envconfig:"ZIPSHIFT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ZIPSHIFT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ZIPSHIFT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ZIPSHIFT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ZIPSHIFT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ZIPSHIFT_REDIS_URL"`
	Address      string        `envconfig:"ZIPSHIFT_REDIS_ADDR"`
	Password     string        `envconfig:"ZIPSHIFT_REDIS_PASSWORD"`
	DB           int           `envconfig:"ZIPSHIFT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ZIPSHIFT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ZIPSHIFT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ZIPSHIFT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ZIPSHIFT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ZIPSHIFT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"ZIPSHIFT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ZIPSHIFT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ZIPSHIFT_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite      bool `envconfig:"ZIPSHIFT_USE_SQLITE" default:"false"`
	AutoMigrate    bool `envconfig:"ZIPSHIFT_AUTO_MIGRATE" default:"false"`
	DashboardCache bool `envconfig:"ZIPSHIFT_FEATURE_DASHBOARD_CACHE" default:"false"`
}

type EarningsConfig struct {
	PerLegCents int64 `envconfig:"ZIPSHIFT_RIDER_EARNING_PER_LEG_CENTS" default:"5000"`
}

type DashboardConfig struct {
	CacheTTL time.Duration `envconfig:"ZIPSHIFT_DASHBOARD_CACHE_TTL" default:"30s"`
}

type IdempotencyConfig struct {
	TTL              time.Duration `envconfig:"ZIPSHIFT_IDEMPOTENCY_TTL" default:"24h"`
	StripeWebhookTTL time.Duration `envconfig:"ZIPSHIFT_STRIPE_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type RateLimitConfig struct {
	TrackingWindow  time.Duration `envconfig:"ZIPSHIFT_TRACKING_RATE_LIMIT_WINDOW" default:"1m"`
	TrackingIPLimit int           `envconfig:"ZIPSHIFT_TRACKING_RATE_LIMIT_IP" default:"60"`
}

type BroadcastConfig struct {
	AllowedOrigins []string      `envconfig:"ZIPSHIFT_WS_ALLOWED_ORIGINS"`
	WriteTimeout   time.Duration `envconfig:"ZIPSHIFT_WS_WRITE_TIMEOUT" default:"10s"`
	SendBuffer     int           `envconfig:"ZIPSHIFT_WS_SEND_BUFFER" default:"64"`
}

type StripeConfig struct {
	APIKey string `envconfig:"ZIPSHIFT_STRIPE_API_KEY"`
	Secret string `envconfig:"ZIPSHIFT_STRIPE_SECRET"`
	Env    string `envconfig:"ZIPSHIFT_STRIPE_ENV" default:"test"`
}

// Enabled reports whether stripe credentials were supplied.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GCPConfig struct {
	ProjectID string `envconfig:"ZIPSHIFT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"ZIPSHIFT_PUBSUB_NOTIFICATION_TOPIC"`
}

// Enabled reports whether notification fan-out over pubsub is configured.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.NotificationTopic) != ""
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = "file:zipshift.db?_foreign_keys=on"
		}
		return nil
	}
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
