package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OTPKIT_ISSUER", "https://auth.example.com/")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "https://auth.example.com", cfg.Issuer)
	require.Equal(t, cfg.Issuer, cfg.BaseURL)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, []string{"otpkit"}, cfg.AudienceList())
	require.Equal(t, 10*time.Minute, cfg.CodeTTL)
	require.Equal(t, 60*time.Second, cfg.ResendCooldown)
	require.Equal(t, 5, cfg.MaxAttempts)
	require.Equal(t, 6, cfg.CodeLength)
	require.True(t, cfg.MigrateOnStart)
	require.False(t, cfg.KeepPhoneOnFile)
	require.Equal(t, []string{"user", "creator"}, cfg.Core(nil).AccountTypes)
	_, ok := cfg.SMS()
	require.False(t, ok)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("OTPKIT_ISSUER=https://file.example.com\nOTPKIT_MAX_ATTEMPTS=3\nOTPKIT_RESEND_COOLDOWN=30s\n"), 0o600))
	t.Setenv("OTPKIT_MAX_ATTEMPTS", "7")
	t.Setenv("OTPKIT_AUDIENCES", "web, mobile")
	t.Setenv("OTPKIT_ACCOUNT_TYPES", "User, Talent")
	t.Setenv("OTPKIT_KEEP_PHONE_ON_FILE", "true")

	cfg, err := Load(envFile)
	require.NoError(t, err)
	require.Equal(t, "https://file.example.com", cfg.Issuer)
	require.Equal(t, 7, cfg.MaxAttempts)
	require.Equal(t, 30*time.Second, cfg.ResendCooldown)
	require.Equal(t, []string{"web", "mobile"}, cfg.AudienceList())

	cc := cfg.Core(nil)
	require.Equal(t, 7, cc.MaxAttempts)
	require.Equal(t, []string{"web", "mobile"}, cc.IssuedAudiences)
	require.Equal(t, []string{"user", "talent"}, cc.AccountTypes)
	require.True(t, cc.KeepPhoneOnFile)
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	t.Setenv("OTPKIT_ISSUER", "https://auth.example.com")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}

func TestValidate(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"no issuer":       {},
		"bad schedule":    {"OTPKIT_ISSUER": "https://a", "OTPKIT_SWEEP_SCHEDULE": "every day"},
		"bad proxies":     {"OTPKIT_ISSUER": "https://a", "OTPKIT_TRUSTED_PROXIES": "10.0.0.0"},
		"zero attempts":   {"OTPKIT_ISSUER": "https://a", "OTPKIT_MAX_ATTEMPTS": "0"},
		"sms without key": {"OTPKIT_ISSUER": "https://a", "OTPKIT_SMS_API_URL": "https://sms"},
		"bad log level":   {"OTPKIT_ISSUER": "https://a", "OTPKIT_LOG_LEVEL": "loud"},
	} {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
		})
	}
}

func TestConfigureLogger(t *testing.T) {
	t.Setenv("OTPKIT_ISSUER", "https://a")
	t.Setenv("OTPKIT_LOG_LEVEL", "debug")
	t.Setenv("OTPKIT_LOG_FORMAT", "json")
	cfg, err := Load("")
	require.NoError(t, err)

	l := logrus.New()
	cfg.ConfigureLogger(l)
	require.Equal(t, logrus.DebugLevel, l.GetLevel())
	require.IsType(t, &logrus.JSONFormatter{}, l.Formatter)
}
