package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "ZIPSHIFT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "ZIPSHIFT_APP_ENV"
	EnvPort     = "ZIPSHIFT_APP_PORT"
	EnvLogLevel = "ZIPSHIFT_LOG_LEVEL"

	EnvDBDSN  = "ZIPSHIFT_DB_DSN"
	EnvDBHost = "ZIPSHIFT_DB_HOST"
	EnvDBUser = "ZIPSHIFT_DB_USER"
	EnvDBName = "ZIPSHIFT_DB_NAME"

	EnvRedisURL = "ZIPSHIFT_REDIS_URL"

	EnvJWTSecret  = "ZIPSHIFT_JWT_SECRET"
	EnvJWTIssuer  = "ZIPSHIFT_JWT_ISSUER"
	EnvJWTExpMins = "ZIPSHIFT_JWT_EXPIRATION_MINUTES"

	EnvUseSQLite          = "ZIPSHIFT_USE_SQLITE"
	EnvEarningPerLegCents = "ZIPSHIFT_RIDER_EARNING_PER_LEG_CENTS"
	EnvDashboardCacheTTL  = "ZIPSHIFT_DASHBOARD_CACHE_TTL"

	EnvStripeAPIKey = "ZIPSHIFT_STRIPE_API_KEY"
	EnvStripeSecret = "ZIPSHIFT_STRIPE_SECRET"

	EnvPubSubNotificationTopic = "ZIPSHIFT_PUBSUB_NOTIFICATION_TOPIC"
	EnvWSAllowedOrigins        = "ZIPSHIFT_WS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
