package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/restpipe/packages/auth"
	"github.com/abdul-hamid-achik/restpipe/packages/http"
)

// EnvPrefix is stripped from environment variables that override the file.
const EnvPrefix = "RESTPIPE_"

// Config represents the restpipe configuration
type Config struct {
	BaseURL         string            `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	Timeout         int               `json:"timeout,omitempty" yaml:"timeout,omitempty"`       // milliseconds; 0 means no deadline
	Retries         int               `json:"retries,omitempty" yaml:"retries,omitempty"`       // max attempts for WithRetry
	RetryDelay      int               `json:"retryDelay,omitempty" yaml:"retryDelay,omitempty"` // milliseconds
	FollowRedirects *bool             `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects    int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	ValidateSSL     *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy           string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers for all requests
	Token           string            `json:"token,omitempty" yaml:"token,omitempty"`     // Bearer token
	LogLevel        string            `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	LogFormat       string            `json:"logFormat,omitempty" yaml:"logFormat,omitempty"`
	NoColor         *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	History         string            `json:"history,omitempty" yaml:"history,omitempty"` // SQLite file for request history
	OAuth2          *auth.Config      `json:"oauth2,omitempty" yaml:"oauth2,omitempty"`   // used when Token is empty
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

func (c *Config) RetryPolicy() http.RetryPolicy {
	return http.RetryPolicy{
		MaxAttempts:  c.Retries,
		InitialDelay: time.Duration(c.RetryDelay) * time.Millisecond,
	}
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".restpipe.json",
	"restpipe.config.json",
	".restpipe.yaml",
	".restpipe.yml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	if path := FindConfigFile(dir); path != "" {
		return loadConfigFromFile(path)
	}

	return DefaultConfig(), nil
}

// FindConfigFile returns the first config file present in dir, or "".
func FindConfigFile(dir string) string {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}
	return ""
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.Retries > 0 {
		result.Retries = other.Retries
	}
	if other.RetryDelay > 0 {
		result.RetryDelay = other.RetryDelay
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.Token != "" {
		result.Token = other.Token
	}
	if other.LogLevel != "" {
		result.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		result.LogFormat = other.LogFormat
	}
	if other.History != "" {
		result.History = other.History
	}
	if other.OAuth2 != nil {
		result.OAuth2 = c.OAuth2.Merge(other.OAuth2)
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(c.Headers) > 0 || len(other.Headers) > 0 {
		result.Headers = make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			result.Headers[k] = v
		}
		for k, v := range other.Headers {
			result.Headers[k] = v
		}
	}

	return &result
}

// FromEnv builds an override config from prefix-stripped variables such as
// BASE_URL, TOKEN, TIMEOUT, RETRIES, RETRY_DELAY, PROXY, LOG_LEVEL, HISTORY
// and the OAUTH2_* client settings.
func FromEnv(vars map[string]string) (*Config, error) {
	c := &Config{
		BaseURL:   vars["BASE_URL"],
		Token:     vars["TOKEN"],
		Proxy:     vars["PROXY"],
		LogLevel:  vars["LOG_LEVEL"],
		LogFormat: vars["LOG_FORMAT"],
		History:   vars["HISTORY"],
	}

	oauth := auth.Config{
		GrantType:    auth.GrantType(vars["OAUTH2_GRANT_TYPE"]),
		TokenURL:     vars["OAUTH2_TOKEN_URL"],
		ClientID:     vars["OAUTH2_CLIENT_ID"],
		ClientSecret: vars["OAUTH2_CLIENT_SECRET"],
		Username:     vars["OAUTH2_USERNAME"],
		Password:     vars["OAUTH2_PASSWORD"],
	}
	if raw := vars["OAUTH2_SCOPES"]; raw != "" {
		oauth.Scopes = strings.Fields(strings.ReplaceAll(raw, ",", " "))
	}
	if oauth.TokenURL != "" || oauth.ClientID != "" || oauth.ClientSecret != "" || oauth.Username != "" {
		c.OAuth2 = &oauth
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"TIMEOUT", &c.Timeout},
		{"RETRIES", &c.Retries},
		{"RETRY_DELAY", &c.RetryDelay},
	}
	for _, i := range ints {
		raw, ok := vars[i.key]
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, i.key, raw, err)
		}
		*i.dst = n
	}

	if raw, ok := vars["VALIDATE_SSL"]; ok && raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %sVALIDATE_SSL %q: %w", EnvPrefix, raw, err)
		}
		c.ValidateSSL = BoolPtr(b)
	}

	return c, nil
}

// Validate reports settings the pipeline cannot work with.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if c.Retries < 1 {
		return fmt.Errorf("retries must be at least 1")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retryDelay cannot be negative")
	}
	if c.BaseURL != "" {
		if err := http.ValidateURL(c.BaseURL); err != nil {
			return fmt.Errorf("baseURL: %w", err)
		}
	}
	if c.Token == "" && c.OAuth2 != nil {
		if err := c.OAuth2.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// UsesOAuth2 reports whether tokens come from an OAuth2 endpoint rather
// than a static Token.
func (c *Config) UsesOAuth2() bool {
	return c.Token == "" && c.OAuth2 != nil
}

// ClientOptions converts the config into pipeline client options.
func (c *Config) ClientOptions(logger http.Logger) []http.ClientOption {
	opts := []http.ClientOption{
		http.WithTimeout(c.TimeoutDuration()),
		http.WithFollowRedirects(c.GetFollowRedirects()),
		http.WithMaxRedirects(c.MaxRedirects),
		http.WithValidateSSL(c.GetValidateSSL()),
		http.WithRetryPolicy(c.RetryPolicy()),
	}
	if c.Proxy != "" {
		opts = append(opts, http.WithProxy(c.Proxy))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, http.WithDefaultHeaders(c.Headers))
	}
	if c.Token != "" {
		opts = append(opts, http.WithAuthToken(c.Token))
	}
	if logger != nil {
		opts = append(opts, http.WithLogger(logger))
	}
	return opts
}

// NewClient builds a pipeline client from the config.
func (c *Config) NewClient(logger http.Logger) *http.Client {
	return http.NewClient(c.BaseURL, c.ClientOptions(logger)...)
}

// ApplyRuntime pushes the settings that can change on a live client: the
// base URL and the bearer token. OAuth2-managed tokens are left alone.
func (c *Config) ApplyRuntime(client *http.Client) {
	if c.BaseURL != "" && c.BaseURL != client.BaseURL() {
		client.SetBaseURL(c.BaseURL)
	}
	switch {
	case c.Token != "":
		client.SetAuthToken(c.Token)
	case c.OAuth2 == nil:
		client.RemoveAuthToken()
	}
}

// SaveConfig saves the configuration to a file, as YAML when the extension
// says so and JSON otherwise.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
