package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "LOTKEEPER"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "LOTKEEPER_APP_ENV"
	EnvPort   = "LOTKEEPER_APP_PORT"

	EnvDBDSN  = "LOTKEEPER_DB_DSN"
	EnvDBHost = "LOTKEEPER_DB_HOST"
	EnvDBUser = "LOTKEEPER_DB_USER"
	EnvDBName = "LOTKEEPER_DB_NAME"

	EnvRedisURL = "LOTKEEPER_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
