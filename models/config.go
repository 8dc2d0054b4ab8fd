package models

import (
	"fmt"
	"time"
)

const (
	DefaultBaseURL      = "https://api.pagerduty.com"
	DefaultLimit        = 100
	DefaultRetrySeconds = 120
	DefaultUserAgent    = "tap-pagerduty"
)

// Config is the tap's config.json
type Config struct {
	Token   string                            `json:"token"`
	Email   string                            `json:"email"`
	Limit   int                               `json:"limit,omitempty"`
	Since   string                            `json:"since,omitempty"`
	Until   string                            `json:"until,omitempty"`
	Streams map[string]map[string]interface{} `json:"streams,omitempty"`

	BaseURL         string  `json:"base_url,omitempty"`
	UserAgent       string  `json:"user_agent,omitempty"`
	RateLimit       float64 `json:"rate_limit,omitempty"`
	MaxRetrySeconds int     `json:"max_retry_seconds,omitempty"`
	StateDB         string  `json:"state_db,omitempty"`
	MetricsFile     string  `json:"metrics_file,omitempty"`
	HistoryFile     string  `json:"history_file,omitempty"`

	Records map[string]RecordConfig `json:"records,omitempty"`
}

// RecordConfig lists per-stream field paths to remove or hash before emission
type RecordConfig struct {
	DropFieldPaths      [][]string `json:"drop_field_paths,omitempty"`
	SensitiveFieldPaths [][]string `json:"sensitive_field_paths,omitempty"`
}

// Validate checks the fields needed before any request is made
func (c *Config) Validate() error {
	if c.Token == "" {
		return &ConfigError{Message: "missing required field: token"}
	}
	if c.Email == "" {
		return &ConfigError{Message: "missing required field: email"}
	}
	if c.Limit < 0 {
		return &ConfigError{Message: fmt.Sprintf("limit must be positive, got %d", c.Limit)}
	}
	if c.MaxRetrySeconds < 0 {
		return &ConfigError{Message: fmt.Sprintf("max_retry_seconds must be positive, got %d", c.MaxRetrySeconds)}
	}
	if c.Since != "" {
		if _, err := ParseTimestamp(c.Since); err != nil {
			return &ConfigError{Param: "since", Message: err.Error()}
		}
	}
	if c.Until != "" {
		if _, err := ParseTimestamp(c.Until); err != nil {
			return &ConfigError{Param: "until", Message: err.Error()}
		}
	}
	return nil
}

// LoadFromEnv overrides credentials and state settings with TAP_PAGERDUTY_*
// environment variables when they are set
func (c *Config) LoadFromEnv(getenv func(string) string) {
	overrides := map[string]*string{
		"TAP_PAGERDUTY_TOKEN":    &c.Token,
		"TAP_PAGERDUTY_EMAIL":    &c.Email,
		"TAP_PAGERDUTY_STATE_DB": &c.StateDB,
	}
	for name, field := range overrides {
		if value := getenv(name); value != "" {
			*field = value
		}
	}
}

// PageLimit returns the configured page size or the default
func (c *Config) PageLimit() int {
	if c.Limit > 0 {
		return c.Limit
	}
	return DefaultLimit
}

// RetryBudget returns the wall-clock ceiling for retrying a single request
func (c *Config) RetryBudget() time.Duration {
	if c.MaxRetrySeconds > 0 {
		return time.Duration(c.MaxRetrySeconds) * time.Second
	}
	return DefaultRetrySeconds * time.Second
}

func (c *Config) APIBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Config) Agent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return DefaultUserAgent
}
