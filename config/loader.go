package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultEnvPrefix = "HTTPKIT"

type options struct {
	envFile   string
	envPrefix string
}

// Option adjusts how Load reads configuration.
type Option func(*options)

// WithEnvFile loads the given dotenv file before reading the environment.
// Without this option Load picks up ./.env when it exists.
func WithEnvFile(path string) Option {
	return func(o *options) { o.envFile = path }
}

// WithEnvPrefix changes the environment variable prefix from HTTPKIT.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) { o.envPrefix = prefix }
}

// Load reads the configuration file at path (YAML, JSON or TOML by
// extension), overlays prefixed environment variables, and returns the
// parsed schema. Environment variables win over file values:
//
//	HTTPKIT_DEFAULTS_BASE_URL=https://api.example.com
//	HTTPKIT_UPSTREAMS_BILLING_TIMEOUT=5s
//
// An empty path skips the file and loads from the environment alone.
func Load(path string, opts ...Option) (*File, error) {
	o := options{envPrefix: defaultEnvPrefix}
	for _, opt := range opts {
		opt(&o)
	}

	// The dotenv file loads first so the environment pass below sees its
	// values. Existing process variables are not overwritten.
	envFile := o.envFile
	if envFile == "" {
		if _, err := os.Stat(".env"); err == nil {
			envFile = ".env"
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("config: load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	bindEnviron(v, o.envPrefix)

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	f.Logging.ApplyDefaults()
	if err := f.Logging.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &f, nil
}

// bindEnviron force-sets prefixed environment variables on v. Viper's
// AutomaticEnv only consults the environment for keys it already knows
// about, so variables targeting keys absent from the file would be lost
// without this.
func bindEnviron(v *viper.Viper, prefix string) {
	p := strings.ToUpper(prefix) + "_"
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, p) {
			continue
		}
		v.Set(envToKey(strings.TrimPrefix(key, p)), value)
	}
}

// multiWordKeys are the schema keys that contain an underscore. They must
// be recognized when translating variable names, where underscores also
// separate nesting levels.
var multiWordKeys = []string{
	"base_url",
	"user_agent",
	"follow_redirects",
	"buffer_response",
	"enable_cookies",
	"no_color",
	"skip_verify",
	"ca_file",
	"cert_file",
	"key_file",
	"server_name",
	"min_version",
}

// envToKey translates an underscore-separated variable name into the
// nested key it addresses.
//
//	DEFAULTS_BASE_URL -> defaults.base_url
//	UPSTREAMS_BILLING_AUTH_TOKEN -> upstreams.billing.auth.token
func envToKey(name string) string {
	lower := strings.ToLower(name)
	for _, k := range multiWordKeys {
		if lower == k {
			return k
		}
		if head, ok := strings.CutSuffix(lower, "_"+k); ok {
			return strings.ReplaceAll(head, "_", ".") + "." + k
		}
	}
	return strings.ReplaceAll(lower, "_", ".")
}
