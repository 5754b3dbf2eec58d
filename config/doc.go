// Package config loads client configuration from files and the
// environment.
//
// A configuration file declares shared defaults and named upstream
// profiles:
//
//	logging:
//	  level: info
//	  format: json
//	defaults:
//	  timeout: 10s
//	  headers:
//	    X-Env: production
//	upstreams:
//	  billing:
//	    base_url: https://billing.internal
//	    timeout: 5s
//	    auth:
//	      type: bearer
//
// Load reads the file, loads a dotenv file when present, and overlays
// HTTPKIT_-prefixed environment variables, so secrets like the bearer
// token above arrive via HTTPKIT_UPSTREAMS_BILLING_AUTH_TOKEN rather
// than the file. Client resolves a profile against the defaults:
//
//	file, err := config.Load("config.yml")
//	cfg, err := file.Client("billing")
//	client, err := httpkit.New(cfg)
package config
