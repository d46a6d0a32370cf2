package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Payment  PaymentConfig
	ERP      ERPConfig
	Mailer   MailerConfig
	Shipping ShippingConfig
	Outbox   OutboxConfig
	Cron     CronConfig
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
	Env          string `envconfig:"ORDERCORE_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDERCORE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ORDERCORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ORDERCORE_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"ORDERCORE_APP_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ORDERCORE_DB_DSN"`
	Driver string `envconfig:"ORDERCORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ORDERCORE_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDERCORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDERCORE_DB_USER"`
	LegacyPassword string `envconfig:"ORDERCORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDERCORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDERCORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERCORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERCORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERCORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERCORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERCORE_REDIS_URL"`
	Address      string        `envconfig:"ORDERCORE_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERCORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERCORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERCORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERCORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERCORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERCORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERCORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PaymentConfig holds the gateway credentials used to verify callbacks.
type PaymentConfig struct {
	BaseURL       string        `envconfig:"ORDERCORE_PAYMENT_BASE_URL"`
	KeyID         string        `envconfig:"ORDERCORE_PAYMENT_KEY_ID"`
	KeySecret     string        `envconfig:"ORDERCORE_PAYMENT_KEY_SECRET"`
	CallbackToken string        `envconfig:"ORDERCORE_PAYMENT_CALLBACK_SECRET"`
	Timeout       time.Duration `envconfig:"ORDERCORE_PAYMENT_TIMEOUT" default:"15s"`
}

// ERPConfig points at the external ERP's JSON-RPC endpoint.
type ERPConfig struct {
	BaseURL  string        `envconfig:"ORDERCORE_ERP_BASE_URL"`
	Database string        `envconfig:"ORDERCORE_ERP_DATABASE"`
	Username string        `envconfig:"ORDERCORE_ERP_USERNAME"`
	APIKey   string        `envconfig:"ORDERCORE_ERP_API_KEY"`
	Timeout  time.Duration `envconfig:"ORDERCORE_ERP_TIMEOUT" default:"30s"`
}

// Enabled reports whether the ERP integration is configured at all.
func (e ERPConfig) Enabled() bool {
	return strings.TrimSpace(e.BaseURL) != "" && strings.TrimSpace(e.APIKey) != ""
}

type MailerConfig struct {
	APIKey      string        `envconfig:"ORDERCORE_MAILER_API_KEY"`
	BaseURL     string        `envconfig:"ORDERCORE_MAILER_BASE_URL" default:"https://api.sendgrid.com"`
	DefaultFrom string        `envconfig:"ORDERCORE_MAILER_FROM_EMAIL" default:"orders@ordercore.io"`
	Timeout     time.Duration `envconfig:"ORDERCORE_MAILER_TIMEOUT" default:"10s"`
}

// ShippingConfig carries per-carrier credentials. A carrier with no
// credentials runs in mock mode and returns deterministic results.
type ShippingConfig struct {
	DelhiveryAPIKey  string        `envconfig:"ORDERCORE_SHIPPING_DELHIVERY_API_KEY"`
	DelhiveryBaseURL string        `envconfig:"ORDERCORE_SHIPPING_DELHIVERY_BASE_URL" default:"https://track.delhivery.com"`
	BluedartLicense  string        `envconfig:"ORDERCORE_SHIPPING_BLUEDART_LICENSE_KEY"`
	BluedartLoginID  string        `envconfig:"ORDERCORE_SHIPPING_BLUEDART_LOGIN_ID"`
	BluedartBaseURL  string        `envconfig:"ORDERCORE_SHIPPING_BLUEDART_BASE_URL" default:"https://apigateway.bluedart.com"`
	DTDCAccessToken  string        `envconfig:"ORDERCORE_SHIPPING_DTDC_ACCESS_TOKEN"`
	DTDCBaseURL      string        `envconfig:"ORDERCORE_SHIPPING_DTDC_BASE_URL" default:"https://blktracksvc.dtdc.com"`
	Timeout          time.Duration `envconfig:"ORDERCORE_SHIPPING_TIMEOUT" default:"20s"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"ORDERCORE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollInterval   time.Duration `envconfig:"ORDERCORE_OUTBOX_PUBLISH_POLL_INTERVAL" default:"500ms"`
	MaxAttempts    int           `envconfig:"ORDERCORE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int           `envconfig:"ORDERCORE_OUTBOX_RETENTION_DAYS" default:"30"`
	MetricsAddress string        `envconfig:"ORDERCORE_OUTBOX_METRICS_ADDR" default:":9464"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"ORDERCORE_CRON_INTERVAL" default:"1h"`
	LockKey  string        `envconfig:"ORDERCORE_CRON_LOCK_KEY" default:"ordercore:cron:lock"`
	LockTTL  time.Duration `envconfig:"ORDERCORE_CRON_LOCK_TTL" default:"55m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		"ORDERCORE_DB_HOST": db.LegacyHost,
		"ORDERCORE_DB_USER": db.LegacyUser,
		"ORDERCORE_DB_NAME": db.LegacyName,
	}
	for _, envName := range []string{"ORDERCORE_DB_HOST", "ORDERCORE_DB_USER", "ORDERCORE_DB_NAME"} {
		if legacyValues[envName] == "" {
			missing = append(missing, envName)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either ORDERCORE_DB_DSN or %s are required", strings.Join(missing, ", "))
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
