package config

const (
	// EnvPrefix is the envconfig prefix; all variables spell it out explicitly
	// so the prefix itself stays empty.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "BACKERSTORE_DB_DSN"
	EnvDBHost = "BACKERSTORE_DB_HOST"
	EnvDBUser = "BACKERSTORE_DB_USER"
	EnvDBName = "BACKERSTORE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
