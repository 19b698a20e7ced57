// Package config loads the devserver settings from the environment and an optional
// .env file using Viper. Environment variables carry the OTPKIT_ prefix and override .env.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/open-rails/otpkit/core"
	jwtkit "github.com/open-rails/otpkit/jwt"
	"github.com/open-rails/otpkit/riverjobs"
	"github.com/open-rails/otpkit/sms"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const envPrefix = "OTPKIT"

// Config holds the devserver configuration. Keys are shown without the OTPKIT_ prefix.
type Config struct {
	// ListenAddr is the HTTP listen address (e.g. :8080).
	ListenAddr string `mapstructure:"LISTEN_ADDR"`
	// Issuer is the iss claim of access tokens; required.
	Issuer string `mapstructure:"ISSUER"`
	// Audiences is a comma-separated list stamped into every access token.
	Audiences string `mapstructure:"AUDIENCES"`
	// BaseURL prefixes magic links; defaults to Issuer.
	BaseURL       string `mapstructure:"BASE_URL"`
	MagicLinkPath string `mapstructure:"MAGIC_LINK_PATH"`

	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	MigrateOnStart bool   `mapstructure:"MIGRATE_ON_START"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is "json" or "text"; empty picks json in production and text elsewhere.
	LogFormat string `mapstructure:"LOG_FORMAT"`

	CodeTTL            time.Duration `mapstructure:"CODE_TTL"`
	ResendCooldown     time.Duration `mapstructure:"RESEND_COOLDOWN"`
	MaxAttempts        int           `mapstructure:"MAX_ATTEMPTS"`
	CodeLength         int           `mapstructure:"CODE_LENGTH"`
	MagicLinkTTL       time.Duration `mapstructure:"MAGIC_LINK_TTL"`
	AccessTokenTTL     time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL    time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	DefaultAccountType string        `mapstructure:"DEFAULT_ACCOUNT_TYPE"`
	// AccountTypes is a comma-separated list of types a verify request may choose.
	AccountTypes    string `mapstructure:"ACCOUNT_TYPES"`
	KeepPhoneOnFile bool   `mapstructure:"KEEP_PHONE_ON_FILE"`

	// SMS gateway; when SMSAPIURL is empty codes are logged instead of sent (dev only).
	SMSAPIURL     string        `mapstructure:"SMS_API_URL"`
	SMSAPIKey     string        `mapstructure:"SMS_API_KEY"`
	SMSTemplateID string        `mapstructure:"SMS_TEMPLATE_ID"`
	SMSTimeout    time.Duration `mapstructure:"SMS_TIMEOUT"`

	SweepSchedule  string `mapstructure:"SWEEP_SCHEDULE"`
	SweepBatchSize int    `mapstructure:"SWEEP_BATCH_SIZE"`

	// Router selects the HTTP adapter: "http" (net/http ServeMux) or "gin".
	Router string `mapstructure:"ROUTER"`

	// TrustedProxies is a comma-separated list of CIDRs whose forwarding headers are honored.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("ISSUER", "")
	v.SetDefault("AUDIENCES", "otpkit")
	v.SetDefault("BASE_URL", "")
	v.SetDefault("MAGIC_LINK_PATH", core.DefaultMagicLinkPath)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("MIGRATE_ON_START", true)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "")
	v.SetDefault("CODE_TTL", core.DefaultCodeTTL)
	v.SetDefault("RESEND_COOLDOWN", core.DefaultResendCooldown)
	v.SetDefault("MAX_ATTEMPTS", core.DefaultMaxAttempts)
	v.SetDefault("CODE_LENGTH", core.DefaultCodeLength)
	v.SetDefault("MAGIC_LINK_TTL", core.DefaultMagicLinkTTL)
	v.SetDefault("ACCESS_TOKEN_TTL", time.Hour)
	v.SetDefault("REFRESH_TOKEN_TTL", 30*24*time.Hour)
	v.SetDefault("DEFAULT_ACCOUNT_TYPE", core.DefaultAccountType)
	v.SetDefault("ACCOUNT_TYPES", core.DefaultAccountType+","+core.CreatorAccountType)
	v.SetDefault("KEEP_PHONE_ON_FILE", false)
	v.SetDefault("SMS_API_URL", "")
	v.SetDefault("SMS_API_KEY", "")
	v.SetDefault("SMS_TEMPLATE_ID", "")
	v.SetDefault("SMS_TIMEOUT", 10*time.Second)
	v.SetDefault("SWEEP_SCHEDULE", riverjobs.DefaultExpireStaleCodesSchedule)
	v.SetDefault("SWEEP_BATCH_SIZE", 1000)
	v.SetDefault("ROUTER", "http")
	v.SetDefault("TRUSTED_PROXIES", "")
}

// Load reads envFile (if present), then the environment, and validates the result.
// A missing file is ignored. Pass "" to skip the file.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if envFile != "" {
		fv := viper.New()
		fv.SetConfigFile(envFile)
		fv.SetConfigType("env")
		if err := fv.ReadInConfig(); err == nil {
			// .env keys are written with the prefix, like the environment.
			m := make(map[string]any)
			p := strings.ToLower(envPrefix) + "_"
			for _, k := range fv.AllKeys() {
				if strings.HasPrefix(k, p) {
					m[strings.TrimPrefix(k, p)] = fv.Get(k)
				}
			}
			if err := v.MergeConfigMap(m); err != nil {
				return nil, fmt.Errorf("config: merge %s: %w", envFile, err)
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Issuer = strings.TrimRight(strings.TrimSpace(cfg.Issuer), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = cfg.Issuer
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings the devserver cannot start with.
func (c *Config) Validate() error {
	if c.Issuer == "" {
		return errors.New("config: OTPKIT_ISSUER must be set (e.g. https://auth.example.com)")
	}
	if len(c.AudienceList()) == 0 {
		return errors.New("config: OTPKIT_AUDIENCES must name at least one audience")
	}
	if c.MaxAttempts < 1 {
		return errors.New("config: OTPKIT_MAX_ATTEMPTS must be at least 1")
	}
	if c.CodeLength < 4 || c.CodeLength > 10 {
		return errors.New("config: OTPKIT_CODE_LENGTH must be between 4 and 10")
	}
	if c.CodeTTL <= 0 || c.MagicLinkTTL <= 0 {
		return errors.New("config: OTPKIT_CODE_TTL and OTPKIT_MAGIC_LINK_TTL must be positive")
	}
	if c.SweepBatchSize < 1 {
		return errors.New("config: OTPKIT_SWEEP_BATCH_SIZE must be at least 1")
	}
	if c.ResendCooldown < 0 {
		return errors.New("config: OTPKIT_RESEND_COOLDOWN must not be negative")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: OTPKIT_LOG_LEVEL: %w", err)
	}
	switch c.LogFormat {
	case "", "json", "text":
	default:
		return fmt.Errorf("config: OTPKIT_LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if _, err := riverjobs.ParseSchedule(c.SweepSchedule); err != nil {
		return fmt.Errorf("config: OTPKIT_SWEEP_SCHEDULE: %w", err)
	}
	if c.Router != "http" && c.Router != "gin" {
		return fmt.Errorf("config: OTPKIT_ROUTER must be http or gin, got %q", c.Router)
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	if c.SMSAPIURL != "" && c.SMSAPIKey == "" {
		return errors.New("config: OTPKIT_SMS_API_KEY is required when OTPKIT_SMS_API_URL is set")
	}
	return nil
}

// AccountTypeList splits AccountTypes on commas, lowercased.
func (c *Config) AccountTypeList() []string {
	out := splitCSV(c.AccountTypes)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

// AudienceList splits Audiences on commas.
func (c *Config) AudienceList() []string {
	return splitCSV(c.Audiences)
}

// TrustedProxyPrefixes parses TrustedProxies.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, s := range splitCSV(c.TrustedProxies) {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("config: OTPKIT_TRUSTED_PROXIES: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// Core maps the settings onto the library configuration.
func (c *Config) Core(keys jwtkit.KeySource) core.Config {
	return core.Config{
		Issuer:               c.Issuer,
		IssuedAudiences:      c.AudienceList(),
		AccessTokenDuration:  c.AccessTokenTTL,
		RefreshTokenDuration: c.RefreshTokenTTL,
		BaseURL:              c.BaseURL,
		MagicLinkPath:        c.MagicLinkPath,
		MagicLinkTTL:         c.MagicLinkTTL,
		CodeTTL:              c.CodeTTL,
		ResendCooldown:       c.ResendCooldown,
		MaxAttempts:          c.MaxAttempts,
		CodeLength:           c.CodeLength,
		DefaultAccountType:   c.DefaultAccountType,
		AccountTypes:         c.AccountTypeList(),
		KeepPhoneOnFile:      c.KeepPhoneOnFile,
		Keys:                 keys,
	}
}

// SMS returns the gateway settings, or false when no gateway is configured.
func (c *Config) SMS() (sms.Config, bool) {
	if c.SMSAPIURL == "" {
		return sms.Config{}, false
	}
	return sms.Config{
		APIURL:     c.SMSAPIURL,
		APIKey:     c.SMSAPIKey,
		TemplateID: c.SMSTemplateID,
		Timeout:    c.SMSTimeout,
		Retry:      sms.DefaultRetryConfig(),
	}, true
}

// ConfigureLogger applies level and formatter to l.
func (c *Config) ConfigureLogger(l *logrus.Logger) {
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		l.SetLevel(lvl)
	}
	format := c.LogFormat
	if format == "" {
		format = "text"
		if !core.IsDevEnvironment() {
			format = "json"
		}
	}
	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
