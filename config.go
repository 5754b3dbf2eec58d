package httpkit

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	defaultTimeout = 30 * time.Second
)

// Config configures the HTTP client.
type Config struct {
	// BaseURL is the base URL prepended to all relative request paths.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// Timeout is the default request timeout. Defaults to 30s. Individual
	// requests can override it.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Headers are default headers applied to all requests. Request headers
	// with the same name take precedence.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// UserAgent is sent when no User-Agent header is set elsewhere.
	// Defaults to "httpkit/<version>".
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`

	// Auth configures default authentication applied to all requests.
	// Individual requests can override this.
	Auth *AuthConfig `yaml:"-" mapstructure:"-"`

	// TLS configures TLS settings for the HTTP transport.
	TLS *TLSConfig `yaml:"tls" mapstructure:"tls"`

	// H2C enables cleartext HTTP/2 for the default transport.
	H2C bool `yaml:"h2c" mapstructure:"h2c"`

	// FollowRedirects controls redirect following. nil means true.
	FollowRedirects *bool `yaml:"follow_redirects" mapstructure:"follow_redirects"`

	// BufferResponse controls whether response bodies are fully read and
	// buffered before the response is returned. nil means true. Individual
	// requests can override it.
	BufferResponse *bool `yaml:"buffer_response" mapstructure:"buffer_response"`

	// EnableCookies attaches a public-suffix-aware cookie jar to the
	// transport.
	EnableCookies bool `yaml:"enable_cookies" mapstructure:"enable_cookies"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = "httpkit/" + Version
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpkit: timeout must be positive")
	}
	if err := getValidator().Struct(c); err != nil {
		return fmt.Errorf("httpkit: invalid config: %w", err)
	}
	if c.TLS != nil {
		if err := c.TLS.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) followRedirects() bool {
	return c.FollowRedirects == nil || *c.FollowRedirects
}

func (c *Config) bufferResponse() bool {
	return c.BufferResponse == nil || *c.BufferResponse
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the singleton validator instance.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Bool returns a pointer to b, for the *bool override fields.
func Bool(b bool) *bool {
	return &b
}
