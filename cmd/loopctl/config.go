package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvConfig is read from the process environment.
type EnvConfig struct {
	ServerURL         string        `env:"LOOP_SERVER_URL"`
	DefaultLang       string        `env:"LOOP_DEFAULT_LANG" envDefault:"en-US"`
	I18nConfigURL     string        `env:"LOOP_I18N_CONFIG_URL"`
	DocumentsURL      string        `env:"LOOP_LEGAL_DOCUMENTS_URL"`
	DocumentsDir      string        `env:"LOOP_LEGAL_DOCUMENTS_DIR"`
	PushURL           string        `env:"LOOP_PUSH_URL"`
	RequestTimeout    time.Duration `env:"LOOP_REQUEST_TIMEOUT" envDefault:"10s"`
	DBDriver          string        `env:"LOOP_DB_DRIVER" envDefault:"sqlite3"`
	DBDSN             string        `env:"LOOP_DB_DSN" envDefault:"file:loop.db?_foreign_keys=on"`
	SecretKey         string        `env:"LOOP_SECRET_KEY"`
	PreviousSecretKey string        `env:"LOOP_PREVIOUS_SECRET_KEY"`
	SecretKeyID       string        `env:"LOOP_SECRET_KEY_ID" envDefault:"loop-app-key"`
	SecretKeyVersion  int           `env:"LOOP_SECRET_KEY_VERSION" envDefault:"1"`
	PrefCacheTTL      time.Duration `env:"LOOP_PREF_CACHE_TTL" envDefault:"0s"`
	Debug             bool          `env:"LOOP_DEBUG"`
}

func parseEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// rawConfig maps the environment onto the core config keys loaded by cfgx.
// Unset values are left out so defaults apply.
func (c EnvConfig) rawConfig() map[string]any {
	raw := map[string]any{}
	set := func(key string, value string) {
		if strings.TrimSpace(value) != "" {
			raw[key] = strings.TrimSpace(value)
		}
	}
	set("base_server_url", c.ServerURL)
	if c.RequestTimeout > 0 {
		raw["request_timeout"] = c.RequestTimeout
	}

	i18n := map[string]any{}
	for key, value := range map[string]string{
		"default_lang":  c.DefaultLang,
		"config_url":    c.I18nConfigURL,
		"documents_url": c.DocumentsURL,
	} {
		if strings.TrimSpace(value) != "" {
			i18n[key] = strings.TrimSpace(value)
		}
	}
	if len(i18n) > 0 {
		raw["i18n"] = i18n
	}
	if strings.TrimSpace(c.PushURL) != "" {
		raw["registration"] = map[string]any{"push_url": strings.TrimSpace(c.PushURL)}
	}
	return raw
}

type persistenceConfig struct {
	driver string
	dsn    string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool {
	return c.debug
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.dsn
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "loopctl"
}
