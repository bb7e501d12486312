package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Stripe   StripeConfig
	Rules    RulesConfig
	Checkout CheckoutConfig
	Capture  CaptureConfig
	Operator OperatorConfig
	Features FeatureFlagsConfig
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
	Env          string `envconfig:"BACKERSTORE_APP_ENV" required:"true"`
	Port         string `envconfig:"BACKERSTORE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BACKERSTORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BACKERSTORE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BACKERSTORE_DB_DSN"`
	Driver string `envconfig:"BACKERSTORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BACKERSTORE_DB_HOST"`
	LegacyPort     int    `envconfig:"BACKERSTORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BACKERSTORE_DB_USER"`
	LegacyPassword string `envconfig:"BACKERSTORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"BACKERSTORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"BACKERSTORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BACKERSTORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BACKERSTORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BACKERSTORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BACKERSTORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BACKERSTORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BACKERSTORE_REDIS_ADDR"`
	Password     string        `envconfig:"BACKERSTORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BACKERSTORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BACKERSTORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BACKERSTORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BACKERSTORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BACKERSTORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BACKERSTORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey  string        `envconfig:"BACKERSTORE_STRIPE_API_KEY"`
	Secret  string        `envconfig:"BACKERSTORE_STRIPE_SECRET"`
	Env     string        `envconfig:"BACKERSTORE_STRIPE_ENV" default:"test"`
	Timeout time.Duration `envconfig:"BACKERSTORE_STRIPE_TIMEOUT" default:"30s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type RulesConfig struct {
	// CacheTTL bounds rule staleness; a resolved strategy may lag a rule
	// change by at most one cache window.
	CacheTTL time.Duration `envconfig:"BACKERSTORE_RULES_CACHE_TTL" default:"30s"`
}

type CheckoutConfig struct {
	RateLimitWindow     time.Duration `envconfig:"BACKERSTORE_CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitEmailLimit int           `envconfig:"BACKERSTORE_CHECKOUT_RATE_LIMIT_EMAIL_LIMIT" default:"5"`
	RateLimitIPLimit    int           `envconfig:"BACKERSTORE_CHECKOUT_RATE_LIMIT_IP_LIMIT" default:"20"`
}

type CaptureConfig struct {
	Interval    time.Duration `envconfig:"BACKERSTORE_CAPTURE_INTERVAL" default:"24h"`
	LockTTL     time.Duration `envconfig:"BACKERSTORE_CAPTURE_LOCK_TTL" default:"2h"`
	MetricsPort string        `envconfig:"BACKERSTORE_CAPTURE_METRICS_PORT" default:"9090"`
}

type OperatorConfig struct {
	JWTSecret string `envconfig:"BACKERSTORE_OPERATOR_JWT_SECRET"`
	JWTIssuer string `envconfig:"BACKERSTORE_OPERATOR_JWT_ISSUER" default:"backerstore"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BACKERSTORE_AUTO_MIGRATE" default:"false"`
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
