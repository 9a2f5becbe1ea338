package config

// EnvPrefix is the envconfig prefix shared by every StreamPass binary.
const EnvPrefix = "streampass"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "STREAMPASS_DB_DSN"
	EnvDBHost = "STREAMPASS_DB_HOST"
	EnvDBUser = "STREAMPASS_DB_USER"
	EnvDBName = "STREAMPASS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
