package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultServiceName = "loop"
	DefaultLang        = "en-US"
)

type I18nConfig struct {
	// ConfigURL serves the {"i18n": {...}} document. Empty means BaseServerURL.
	ConfigURL    string `koanf:"config_url" mapstructure:"config_url"`
	DocumentsURL string `koanf:"documents_url" mapstructure:"documents_url"`
	DefaultLang  string `koanf:"default_lang" mapstructure:"default_lang"`
}

type RegistrationConfig struct {
	PushURL string `koanf:"push_url" mapstructure:"push_url"`
}

type Config struct {
	ServiceName          string             `koanf:"service_name" mapstructure:"service_name"`
	BaseServerURL        string             `koanf:"base_server_url" mapstructure:"base_server_url"`
	RequestTimeout       time.Duration      `koanf:"request_timeout" mapstructure:"request_timeout"`
	MaxResponseBodyBytes int64              `koanf:"max_response_body_bytes" mapstructure:"max_response_body_bytes"`
	I18n                 I18nConfig         `koanf:"i18n" mapstructure:"i18n"`
	Registration         RegistrationConfig `koanf:"registration" mapstructure:"registration"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: DefaultServiceName,
		I18n: I18nConfig{
			DefaultLang: DefaultLang,
		},
	}
}

// Validate checks shape only. A missing BaseServerURL is reported by the
// consumers that need one, see RequireBaseServerURL.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return configurationError("core: service_name is required", "service_name")
	}
	if strings.TrimSpace(c.I18n.DefaultLang) == "" {
		return configurationError("core: i18n.default_lang is required", "i18n.default_lang")
	}
	if c.RequestTimeout < 0 {
		return configurationError("core: request_timeout must be >= 0", "request_timeout")
	}
	if c.MaxResponseBodyBytes < 0 {
		return configurationError("core: max_response_body_bytes must be >= 0", "max_response_body_bytes")
	}
	for field, raw := range map[string]string{
		"base_server_url":    c.BaseServerURL,
		"i18n.config_url":    c.I18n.ConfigURL,
		"i18n.documents_url": c.I18n.DocumentsURL,
	} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if err := validateAbsoluteURL(raw); err != nil {
			return configurationError(fmt.Sprintf("core: %s is invalid: %v", field, err), field)
		}
	}
	return nil
}

// RequireBaseServerURL fails with a configuration error when no base server
// url is configured.
func (c Config) RequireBaseServerURL() error {
	if strings.TrimSpace(c.BaseServerURL) == "" {
		return configurationError("core: base_server_url is required", "base_server_url")
	}
	return nil
}

// ServerURL returns the base url without trailing slashes.
func (c Config) ServerURL() string {
	return strings.TrimRight(strings.TrimSpace(c.BaseServerURL), "/")
}

func (c Config) I18nConfigURL() string {
	if configURL := strings.TrimSpace(c.I18n.ConfigURL); configURL != "" {
		return configURL
	}
	return c.ServerURL()
}

func (c Config) DefaultLanguage() string {
	if lang := strings.TrimSpace(c.I18n.DefaultLang); lang != "" {
		return lang
	}
	return DefaultLang
}

func validateAbsoluteURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("absolute url expected, got %q", raw)
	}
	return nil
}
