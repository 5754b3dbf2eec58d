package config

import (
	"fmt"
	"strings"

	"github.com/kbukum/httpkit"
	"github.com/kbukum/httpkit/logger"
)

// Auth is the file form of an authentication block. Type selects the
// scheme: "none", "bearer", "basic" or "api_key". JWT and custom auth
// carry code values (signers, functions) and are wired in code instead.
type Auth struct {
	Type     string `yaml:"type" mapstructure:"type"`
	Token    string `yaml:"token" mapstructure:"token"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Key      string `yaml:"key" mapstructure:"key"`
	In       string `yaml:"in" mapstructure:"in"`
	Name     string `yaml:"name" mapstructure:"name"`
}

func (a *Auth) toAuthConfig() (*httpkit.AuthConfig, error) {
	switch strings.ToLower(a.Type) {
	case "", "none":
		return nil, nil
	case "bearer":
		if a.Token == "" {
			return nil, fmt.Errorf("config: bearer auth requires token")
		}
		return httpkit.BearerAuth(a.Token), nil
	case "basic":
		if a.Username == "" {
			return nil, fmt.Errorf("config: basic auth requires username")
		}
		return httpkit.BasicAuth(a.Username, a.Password), nil
	case "api_key":
		if a.Key == "" {
			return nil, fmt.Errorf("config: api_key auth requires key")
		}
		if a.In == "query" {
			name := a.Name
			if name == "" {
				name = "api_key"
			}
			return httpkit.APIKeyAuthQuery(a.Key, name), nil
		}
		if a.Name != "" {
			return httpkit.APIKeyAuthHeader(a.Key, a.Name), nil
		}
		return httpkit.APIKeyAuth(a.Key), nil
	default:
		return nil, fmt.Errorf("config: unknown auth type %q", a.Type)
	}
}

// Upstream is one named client profile. The Auth field shadows the
// embedded Config's code-only auth so it can come from the file.
type Upstream struct {
	httpkit.Config `yaml:",inline" mapstructure:",squash"`

	Auth *Auth `yaml:"auth" mapstructure:"auth"`
}

// File is the schema of a client configuration file: logging settings,
// shared defaults and named upstream profiles.
type File struct {
	Logging   logger.Config       `yaml:"logging" mapstructure:"logging"`
	Defaults  Upstream            `yaml:"defaults" mapstructure:"defaults"`
	Upstreams map[string]Upstream `yaml:"upstreams" mapstructure:"upstreams"`
}

// Default returns the defaults block as a standalone configuration.
func (f *File) Default() (httpkit.Config, error) {
	cfg := f.Defaults.Config
	if f.Defaults.Auth != nil {
		ac, err := f.Defaults.Auth.toAuthConfig()
		if err != nil {
			return httpkit.Config{}, err
		}
		cfg.Auth = ac
	}
	return cfg, nil
}

// Client returns the effective configuration for the named upstream: the
// defaults overlaid with the upstream's profile. The profile's auth block
// replaces the default one entirely when present.
func (f *File) Client(name string) (httpkit.Config, error) {
	up, ok := f.Upstreams[name]
	if !ok {
		return httpkit.Config{}, fmt.Errorf("config: unknown upstream %q", name)
	}

	cfg := overlay(f.Defaults.Config, up.Config)

	auth := up.Auth
	if auth == nil {
		auth = f.Defaults.Auth
	}
	if auth != nil {
		ac, err := auth.toAuthConfig()
		if err != nil {
			return httpkit.Config{}, fmt.Errorf("config: upstream %q: %w", name, err)
		}
		cfg.Auth = ac
	}
	return cfg, nil
}

// overlay applies the non-zero fields of over on top of base. Headers
// merge key by key; everything else replaces wholesale.
func overlay(base, over httpkit.Config) httpkit.Config {
	cfg := base
	if over.BaseURL != "" {
		cfg.BaseURL = over.BaseURL
	}
	if over.Timeout != 0 {
		cfg.Timeout = over.Timeout
	}
	if len(over.Headers) > 0 {
		merged := make(map[string]string, len(base.Headers)+len(over.Headers))
		for k, v := range base.Headers {
			merged[k] = v
		}
		for k, v := range over.Headers {
			merged[k] = v
		}
		cfg.Headers = merged
	}
	if over.UserAgent != "" {
		cfg.UserAgent = over.UserAgent
	}
	if over.TLS != nil {
		cfg.TLS = over.TLS
	}
	if over.H2C {
		cfg.H2C = true
	}
	if over.FollowRedirects != nil {
		cfg.FollowRedirects = over.FollowRedirects
	}
	if over.BufferResponse != nil {
		cfg.BufferResponse = over.BufferResponse
	}
	if over.EnableCookies {
		cfg.EnableCookies = true
	}
	return cfg
}
