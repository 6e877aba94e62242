package config

const (
	EnvPrefix = "BACKOFFICE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "BACKOFFICE_APP_ENV"
	EnvPort     = "BACKOFFICE_APP_PORT"
	EnvLogLevel = "BACKOFFICE_LOG_LEVEL"

	EnvDBDSN  = "BACKOFFICE_DB_DSN"
	EnvDBHost = "BACKOFFICE_DB_HOST"
	EnvDBUser = "BACKOFFICE_DB_USER"
	EnvDBName = "BACKOFFICE_DB_NAME"

	EnvUseSQLite = "BACKOFFICE_USE_SQLITE"
	EnvRedisURL  = "BACKOFFICE_REDIS_URL"

	EnvScanBufferSize      = "BACKOFFICE_SCAN_BUFFER_SIZE"
	EnvScanDrainDelay      = "BACKOFFICE_SCAN_DRAIN_DELAY"
	EnvScanLookupTimeout   = "BACKOFFICE_SCAN_LOOKUP_TIMEOUT"
	EnvScanDuplicatePolicy = "BACKOFFICE_SCAN_DUPLICATE_POLICY"

	EnvSessionIdleTTL = "BACKOFFICE_SESSION_IDLE_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
