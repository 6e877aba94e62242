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
	FeatureFlags FeatureFlagsConfig
	Scan         ScanConfig
	Sessions     SessionsConfig
	ProductCache ProductCacheConfig
	RateLimit    RateLimitConfig
	Expiry       ExpiryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Scan.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BACKOFFICE_APP_ENV" required:"true"`
	Port         string `envconfig:"BACKOFFICE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BACKOFFICE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BACKOFFICE_LOG_WARN_STACK" default:"false"`

	CORSOrigins     []string      `envconfig:"BACKOFFICE_CORS_ORIGINS"`
	ShutdownTimeout time.Duration `envconfig:"BACKOFFICE_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

type DBConfig struct {
	DSN    string `envconfig:"BACKOFFICE_DB_DSN"`
	Driver string `envconfig:"BACKOFFICE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BACKOFFICE_DB_HOST"`
	LegacyPort     int    `envconfig:"BACKOFFICE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BACKOFFICE_DB_USER"`
	LegacyPassword string `envconfig:"BACKOFFICE_DB_PASSWORD"`
	LegacyName     string `envconfig:"BACKOFFICE_DB_NAME"`
	LegacySSLMode  string `envconfig:"BACKOFFICE_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"BACKOFFICE_SQLITE_PATH" default:"backoffice.db"`

	MaxOpenConns    int           `envconfig:"BACKOFFICE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BACKOFFICE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BACKOFFICE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BACKOFFICE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQuery is the duration above which a statement is logged at warn.
	SlowQuery time.Duration `envconfig:"BACKOFFICE_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BACKOFFICE_REDIS_URL"`
	Address      string        `envconfig:"BACKOFFICE_REDIS_ADDR"`
	Password     string        `envconfig:"BACKOFFICE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BACKOFFICE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BACKOFFICE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BACKOFFICE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BACKOFFICE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BACKOFFICE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BACKOFFICE_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"BACKOFFICE_REDIS_KEY_PREFIX" default:"bo"`
}

// Enabled reports whether a Redis endpoint was configured at all.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BACKOFFICE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BACKOFFICE_AUTO_MIGRATE" default:"false"`
}

// ScanConfig tunes the per-session scan ingestion queue.
type ScanConfig struct {
	BufferSize      int           `envconfig:"BACKOFFICE_SCAN_BUFFER_SIZE" default:"256"`
	DrainDelay      time.Duration `envconfig:"BACKOFFICE_SCAN_DRAIN_DELAY" default:"25ms"`
	LookupTimeout   time.Duration `envconfig:"BACKOFFICE_SCAN_LOOKUP_TIMEOUT" default:"5s"`
	DuplicatePolicy string        `envconfig:"BACKOFFICE_SCAN_DUPLICATE_POLICY" default:"drop"`
}

func (s ScanConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.DuplicatePolicy)) {
	case "", "drop", "queue":
	default:
		return fmt.Errorf("%s must be drop or queue, got %q", EnvScanDuplicatePolicy, s.DuplicatePolicy)
	}
	if s.BufferSize < 0 {
		return fmt.Errorf("%s must not be negative", EnvScanBufferSize)
	}
	return nil
}

type SessionsConfig struct {
	IdleTTL       time.Duration `envconfig:"BACKOFFICE_SESSION_IDLE_TTL" default:"30m"`
	SweepInterval time.Duration `envconfig:"BACKOFFICE_SESSION_SWEEP_INTERVAL" default:"1m"`
	InboxSize     int           `envconfig:"BACKOFFICE_SESSION_INBOX_SIZE" default:"50"`
}

type ProductCacheConfig struct {
	TTL time.Duration `envconfig:"BACKOFFICE_PRODUCT_CACHE_TTL" default:"5m"`
}

// RateLimitConfig bounds how fast a single session may push scans.
type RateLimitConfig struct {
	ScanWindow time.Duration `envconfig:"BACKOFFICE_RATE_LIMIT_SCAN_WINDOW" default:"1s"`
	ScanLimit  int           `envconfig:"BACKOFFICE_RATE_LIMIT_SCAN_LIMIT" default:"30"`
}

type ExpiryConfig struct {
	WarnDays       int           `envconfig:"BACKOFFICE_EXPIRY_WARN_DAYS" default:"30"`
	ReportInterval time.Duration `envconfig:"BACKOFFICE_EXPIRY_REPORT_INTERVAL" default:"1h"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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
