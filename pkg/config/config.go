package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App   AppConfig
	DB    DBConfig
	Redis RedisConfig
	Lots  LotConfig
	Flags FeatureFlagsConfig
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
	Env          string `envconfig:"LOTKEEPER_APP_ENV" required:"true"`
	Port         string `envconfig:"LOTKEEPER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LOTKEEPER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LOTKEEPER_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"LOTKEEPER_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LOTKEEPER_DB_DSN"`
	Driver string `envconfig:"LOTKEEPER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LOTKEEPER_DB_HOST"`
	LegacyPort     int    `envconfig:"LOTKEEPER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LOTKEEPER_DB_USER"`
	LegacyPassword string `envconfig:"LOTKEEPER_DB_PASSWORD"`
	LegacyName     string `envconfig:"LOTKEEPER_DB_NAME"`
	LegacySSLMode  string `envconfig:"LOTKEEPER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LOTKEEPER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LOTKEEPER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LOTKEEPER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LOTKEEPER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LOTKEEPER_REDIS_URL"`
	Address      string        `envconfig:"LOTKEEPER_REDIS_ADDR"`
	Password     string        `envconfig:"LOTKEEPER_REDIS_PASSWORD"`
	DB           int           `envconfig:"LOTKEEPER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LOTKEEPER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LOTKEEPER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LOTKEEPER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LOTKEEPER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LOTKEEPER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint is configured. Idempotency
// replay protection is skipped when it is not.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

// LotConfig tunes lot-number generation and listing defaults.
type LotConfig struct {
	NumberPrefix     string `envconfig:"LOTKEEPER_LOT_NUMBER_PREFIX" default:"LOT"`
	NumberMaxRetries int    `envconfig:"LOTKEEPER_LOT_NUMBER_MAX_RETRIES" default:"3"`
	DefaultPageSize  int    `envconfig:"LOTKEEPER_LOT_DEFAULT_PAGE_SIZE" default:"20"`

	ReconcileInterval time.Duration `envconfig:"LOTKEEPER_RECONCILE_INTERVAL" default:"24h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LOTKEEPER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LOTKEEPER_AUTO_MIGRATE" default:"false"`
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
