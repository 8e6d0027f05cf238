package config

// EnvPrefix is passed to envconfig; explicit tags on each field keep the
// variable names greppable.
const EnvPrefix = "LUMEA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "LUMEA_DB_DSN"
	EnvDBHost = "LUMEA_DB_HOST"
	EnvDBUser = "LUMEA_DB_USER"
	EnvDBName = "LUMEA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
