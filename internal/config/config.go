package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port          string `mapstructure:"port"`
	PublicBaseURL string `mapstructure:"public_base_url"`

	YahooClientID     string `mapstructure:"yahoo_client_id"`
	YahooClientSecret string `mapstructure:"yahoo_client_secret"`
	YahooRedirectURI  string `mapstructure:"yahoo_redirect_uri"`
	YahooScopes       string `mapstructure:"yahoo_scopes"`

	StateSecret string        `mapstructure:"state_secret"`
	StateTTL    time.Duration `mapstructure:"state_ttl"`
	AppDeepLink string        `mapstructure:"app_deep_link"`

	DBDriver   string `mapstructure:"db_driver"`
	DBDSN      string `mapstructure:"db_dsn"`
	DBHost     string `mapstructure:"db_host"`
	DBPort     string `mapstructure:"db_port"`
	DBUser     string `mapstructure:"db_user"`
	DBPassword string `mapstructure:"db_password"`
	DBName     string `mapstructure:"db_name"`

	IMAPAddr string `mapstructure:"imap_addr"`
	SMTPAddr string `mapstructure:"smtp_addr"`

	OpenAIAPIKey     string  `mapstructure:"openai_api_key"`
	OpenAIModel      string  `mapstructure:"openai_model"`
	OpenAIBaseURL    string  `mapstructure:"openai_base_url"`
	VerdictThreshold float64 `mapstructure:"verdict_threshold"`

	MetricsAddr string `mapstructure:"metrics_addr"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
}

var defaults = map[string]any{
	"port":                "8080",
	"public_base_url":     "",
	"yahoo_client_id":     "",
	"yahoo_client_secret": "",
	"yahoo_redirect_uri":  "",
	"yahoo_scopes":        "openid mail-w",
	"state_secret":        "",
	"state_ttl":           10 * time.Minute,
	"app_deep_link":       "app://connected",
	"db_driver":           "mysql",
	"db_dsn":              "",
	"db_host":             "127.0.0.1",
	"db_port":             "3306",
	"db_user":             "",
	"db_password":         "",
	"db_name":             "",
	"imap_addr":           "imap.mail.yahoo.com:993",
	"smtp_addr":           "smtp.mail.yahoo.com:465",
	"openai_api_key":      "",
	"openai_model":        "gpt-4o-mini",
	"openai_base_url":     "",
	"verdict_threshold":   0.65,
	"metrics_addr":        "",
	"log_level":           "info",
	"log_format":          "text",
}

// Load reads .env (if present), an optional YAML file at path, and the
// environment. Environment variables win over the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		// AutomaticEnv only resolves keys viper already knows about.
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// DSN returns the database DSN, building a MySQL one from the DB_* parts when
// DB_DSN is unset.
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	if c.DBDriver != "mysql" || c.DBName == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// Scopes splits YahooScopes on whitespace or commas.
func (c *Config) Scopes() []string {
	return strings.FieldsFunc(c.YahooScopes, func(r rune) bool {
		return r == ' ' || r == ','
	})
}

// RedirectURI falls back to PublicBaseURL + /oauth2callback.
func (c *Config) RedirectURI() string {
	if c.YahooRedirectURI != "" {
		return c.YahooRedirectURI
	}
	if c.PublicBaseURL != "" {
		return strings.TrimRight(c.PublicBaseURL, "/") + "/oauth2callback"
	}
	return ""
}
