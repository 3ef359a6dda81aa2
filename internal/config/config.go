package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppPort  string `mapstructure:"app_port"`
	LogLevel string `mapstructure:"log_level"`
	LogSQL   bool   `mapstructure:"log_sql"`

	MySQLHost string `mapstructure:"mysql_host"`
	MySQLPort string `mapstructure:"mysql_port"`
	MySQLDB   string `mapstructure:"mysql_db"`
	MySQLUser string `mapstructure:"mysql_user"`
	MySQLPass string `mapstructure:"mysql_pass"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	IdempTTLSecs int `mapstructure:"idempotency_ttl_seconds"`

	Mpesa MpesaConfig `mapstructure:",squash"`
}

type MpesaConfig struct {
	Environment    string        `mapstructure:"mpesa_environment"`
	BaseURL        string        `mapstructure:"mpesa_base_url"`
	ConsumerKey    string        `mapstructure:"mpesa_consumer_key"`
	ConsumerSecret string        `mapstructure:"mpesa_consumer_secret"`
	ShortCode      string        `mapstructure:"mpesa_short_code"`
	Passkey        string        `mapstructure:"mpesa_passkey"`
	CallbackURL    string        `mapstructure:"mpesa_callback_url"`
	HTTPTimeout    time.Duration `mapstructure:"mpesa_http_timeout"`
	TokenCacheTTL  time.Duration `mapstructure:"mpesa_token_cache_ttl"`
}

const (
	sandboxURL    = "https://sandbox.safaricom.co.ke"
	productionURL = "https://api.safaricom.co.ke"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_sql", false)

	v.SetDefault("mysql_host", "mysql")
	v.SetDefault("mysql_port", "3306")
	v.SetDefault("mysql_db", "chama")
	v.SetDefault("mysql_user", "chama")
	v.SetDefault("mysql_pass", "chama")

	v.SetDefault("redis_addr", "redis:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("idempotency_ttl_seconds", 300)

	v.SetDefault("mpesa_environment", "sandbox")
	v.SetDefault("mpesa_base_url", "")
	v.SetDefault("mpesa_consumer_key", "")
	v.SetDefault("mpesa_consumer_secret", "")
	v.SetDefault("mpesa_short_code", "")
	v.SetDefault("mpesa_passkey", "")
	v.SetDefault("mpesa_callback_url", "")
	v.SetDefault("mpesa_http_timeout", 15*time.Second)
	v.SetDefault("mpesa_token_cache_ttl", 50*time.Minute)
}

// Load reads defaults, then the optional file at path, then the environment
// (MYSQL_HOST, MPESA_PASSKEY, ...). Later sources win.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if c.Mpesa.BaseURL == "" {
		c.Mpesa.BaseURL = c.Mpesa.defaultBaseURL()
	}
	return c, nil
}

func (m MpesaConfig) defaultBaseURL() string {
	if strings.EqualFold(m.Environment, "production") {
		return productionURL
	}
	return sandboxURL
}

// Configured reports whether provider credentials were supplied at all.
func (m MpesaConfig) Configured() bool {
	return m.ConsumerKey != "" || m.ConsumerSecret != ""
}

func (c *Config) Validate() error {
	if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
		return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
	}
	// ensure port is valid
	if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
		return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.Mpesa.HTTPTimeout <= 0 {
		return errors.New("MPESA_HTTP_TIMEOUT must be positive")
	}
	if c.Mpesa.TokenCacheTTL < 0 {
		return errors.New("MPESA_TOKEN_CACHE_TTL must not be negative")
	}
	switch strings.ToLower(c.Mpesa.Environment) {
	case "sandbox", "production":
	default:
		return fmt.Errorf("invalid MPESA_ENVIRONMENT %q", c.Mpesa.Environment)
	}
	if c.Mpesa.Configured() {
		if c.Mpesa.ConsumerKey == "" || c.Mpesa.ConsumerSecret == "" {
			return errors.New("MPESA_CONSUMER_KEY and MPESA_CONSUMER_SECRET must be set together")
		}
		if c.Mpesa.ShortCode == "" || c.Mpesa.Passkey == "" || c.Mpesa.CallbackURL == "" {
			return errors.New("missing M-Pesa config (MPESA_SHORT_CODE/PASSKEY/CALLBACK_URL)")
		}
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME; loc=UTC keeps timestamps comparable across hosts
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
