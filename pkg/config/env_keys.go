package config

// EnvPrefix is passed to envconfig; individual keys carry the full prefix
// already, so this stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "ATELIER_APP_ENV"
	EnvPort     = "ATELIER_APP_PORT"
	EnvDBDSN    = "ATELIER_DB_DSN"
	EnvDBHost   = "ATELIER_DB_HOST"
	EnvDBUser   = "ATELIER_DB_USER"
	EnvDBName   = "ATELIER_DB_NAME"
	EnvRedisURL = "ATELIER_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
