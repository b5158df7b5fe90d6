package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store, notification and lock driver names.
const (
	StoreDynamo   = "dynamo"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	NotifySMTP = "smtp"
	NotifySNS  = "sns"

	LockLocal = "local"
	LockRedis = "redis"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort   string
	AppEnv    string
	LogLevel  string
	LogFormat string

	StoreDriver string
	DatabaseURL string // sqlite path or postgres DSN

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTSecret      string
	AccessTokenTTL time.Duration
	ResetTokenTTL  time.Duration
	OTPTTL         time.Duration

	PasswordScheme string
	PBKDF2Rounds   int

	NotifyDriver string
	SMTPHost     string
	SMTPPort     int
	SMTPFrom     string
	SMTPFromName string
	SMTPUsername string
	SMTPPassword string
	SMTPTLS      bool
	SNSRegion    string
	SNSTopicARN  string
	FrontendURL  string

	LockDriver    string
	RedisAddr     string
	RedisPassword string
	LockTTL       time.Duration

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Accounts      string
	AccountEmails string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:   getEnv("APP_PORT", "3000"),
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		StoreDriver: getEnv("STORE_DRIVER", StoreDynamo),
		DatabaseURL: getEnv("DATABASE_URL", "./data/accounts.db"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Accounts:      getEnv("DYNAMO_TABLE_ACCOUNTS", "accounts"),
			AccountEmails: getEnv("DYNAMO_TABLE_ACCOUNT_EMAILS", "account_emails"),
		},

		JWTSecret:      getEnv("JWT_SECRET", ""),
		AccessTokenTTL: getEnvDuration("ACCESS_TOKEN_TTL", time.Hour),
		ResetTokenTTL:  getEnvDuration("RESET_TOKEN_TTL", 24*time.Hour),
		OTPTTL:         getEnvDuration("OTP_TTL", 10*time.Minute),

		PasswordScheme: getEnv("PASSWORD_SCHEME", "pbkdf2-sha256"),
		PBKDF2Rounds:   getEnvInt("PBKDF2_ROUNDS", 29000),

		NotifyDriver: getEnv("NOTIFY_DRIVER", NotifySMTP),
		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", ""),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPTLS:      getEnvBool("SMTP_TLS", false),
		SNSRegion:    getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN:  getEnv("SNS_TOPIC_ARN", ""),
		FrontendURL:  strings.TrimSuffix(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),

		LockDriver:    getEnv("LOCK_DRIVER", LockLocal),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		LockTTL:       getEnvDuration("LOCK_TTL", 30*time.Second),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// IsDevelopment reports whether the process runs with APP_ENV=development.
func (c *Config) IsDevelopment() bool { return c.AppEnv == "development" }

// Validate rejects configurations the process cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("JWT_SECRET is required outside development"))
	}
	if !oneOf(c.StoreDriver, StoreDynamo, StoreSQLite, StorePostgres) {
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if !oneOf(c.NotifyDriver, NotifySMTP, NotifySNS) {
		errs = append(errs, fmt.Errorf("unknown NOTIFY_DRIVER %q", c.NotifyDriver))
	}
	if c.NotifyDriver == NotifySNS && c.SNSTopicARN == "" {
		errs = append(errs, errors.New("SNS_TOPIC_ARN is required when NOTIFY_DRIVER=sns"))
	}
	if !oneOf(c.LockDriver, LockLocal, LockRedis) {
		errs = append(errs, fmt.Errorf("unknown LOCK_DRIVER %q", c.LockDriver))
	}
	if c.OTPTTL <= 0 || c.ResetTokenTTL <= 0 || c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("token and OTP lifetimes must be positive"))
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
