package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	cfg := Load()
	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, StoreDynamo, cfg.StoreDriver)
	assert.Equal(t, 10*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 24*time.Hour, cfg.ResetTokenTTL)
	assert.Equal(t, "accounts", cfg.DynamoTables.Accounts)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OTP_TTL", "5m")
	t.Setenv("SMTP_PORT", "587")
	t.Setenv("SMTP_TLS", "true")
	t.Setenv("FRONTEND_URL", "https://app.example.com/")
	t.Setenv("PBKDF2_ROUNDS", "not-a-number")

	cfg := Load()
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.True(t, cfg.SMTPTLS)
	assert.Equal(t, "https://app.example.com", cfg.FrontendURL)
	assert.Equal(t, 29000, cfg.PBKDF2Rounds)
}

func TestValidate_RequiresSecretOutsideDevelopment(t *testing.T) {
	cfg := Load()
	cfg.AppEnv = "production"
	cfg.JWTSecret = ""
	require.Error(t, cfg.Validate())

	cfg.JWTSecret = "s3cret"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_UnknownDrivers(t *testing.T) {
	cfg := Load()
	cfg.StoreDriver = "mongo"
	cfg.NotifyDriver = "pigeon"
	cfg.LockDriver = "zookeeper"
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "STORE_DRIVER")
	assert.ErrorContains(t, err, "NOTIFY_DRIVER")
	assert.ErrorContains(t, err, "LOCK_DRIVER")
}

func TestValidate_SNSNeedsTopic(t *testing.T) {
	cfg := Load()
	cfg.NotifyDriver = NotifySNS
	cfg.SNSTopicARN = ""
	assert.ErrorContains(t, cfg.Validate(), "SNS_TOPIC_ARN")
}
