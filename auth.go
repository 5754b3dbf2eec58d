package httpkit

import (
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// AuthType identifies the authentication method.
type AuthType int

const (
	// AuthNone disables authentication.
	AuthNone AuthType = iota
	// AuthBearer uses Bearer token authentication.
	AuthBearer
	// AuthBasic uses HTTP Basic authentication.
	AuthBasic
	// AuthAPIKey uses API key authentication (header or query parameter).
	AuthAPIKey
	// AuthJWT mints short-lived signed bearer tokens per request.
	AuthJWT
	// AuthCustom uses a custom authentication function.
	AuthCustom
)

// AuthConfig configures request authentication.
type AuthConfig struct {
	// Type is the authentication method.
	Type AuthType
	// Token is the bearer token (AuthBearer).
	Token string
	// Username is the basic auth username (AuthBasic).
	Username string
	// Password is the basic auth password (AuthBasic).
	Password string
	// Key is the API key value (AuthAPIKey).
	Key string
	// In specifies where to place the API key: "header" (default) or "query" (AuthAPIKey).
	In string
	// Name is the header or query parameter name (AuthAPIKey). Defaults to "X-API-Key".
	Name string
	// JWT is the token signer (AuthJWT).
	JWT *JWTSigner
	// Apply is a custom function to modify the request (AuthCustom).
	Apply func(*Request)
}

// BearerAuth creates a bearer token auth config.
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{Type: AuthBearer, Token: token}
}

// BasicAuth creates a basic auth config.
func BasicAuth(username, password string) *AuthConfig {
	return &AuthConfig{Type: AuthBasic, Username: username, Password: password}
}

// APIKeyAuth creates an API key auth config sent via header.
func APIKeyAuth(key string) *AuthConfig {
	return &AuthConfig{Type: AuthAPIKey, Key: key, In: "header", Name: "X-API-Key"}
}

// APIKeyAuthHeader creates an API key auth config with a custom header name.
func APIKeyAuthHeader(key, headerName string) *AuthConfig {
	return &AuthConfig{Type: AuthAPIKey, Key: key, In: "header", Name: headerName}
}

// APIKeyAuthQuery creates an API key auth config sent via query parameter.
func APIKeyAuthQuery(key, paramName string) *AuthConfig {
	return &AuthConfig{Type: AuthAPIKey, Key: key, In: "query", Name: paramName}
}

// JWTBearerAuth creates an auth config that mints bearer tokens from signer.
func JWTBearerAuth(signer *JWTSigner) *AuthConfig {
	return &AuthConfig{Type: AuthJWT, JWT: signer}
}

// CustomAuth creates a custom auth config with a request modifier function.
func CustomAuth(fn func(*Request)) *AuthConfig {
	return &AuthConfig{Type: AuthCustom, Apply: fn}
}

// apply applies authentication to a prepared request.
func (a *AuthConfig) apply(req *Request) error {
	if a == nil {
		return nil
	}
	switch a.Type {
	case AuthBearer:
		req.Headers.Set("Authorization", "Bearer "+a.Token)
	case AuthBasic:
		req.Headers.Set("Authorization", basicAuthHeader(a.Username, a.Password))
	case AuthAPIKey:
		name := a.Name
		if name == "" {
			name = "X-API-Key"
		}
		if a.In == "query" {
			if req.Query == nil {
				req.Query = make(map[string][]string)
			}
			req.Query.Set(name, a.Key)
		} else {
			req.Headers.Set(name, a.Key)
		}
	case AuthJWT:
		if a.JWT == nil {
			return fmt.Errorf("httpkit: jwt auth configured without a signer")
		}
		token, err := a.JWT.Token()
		if err != nil {
			return err
		}
		req.Headers.Set("Authorization", "Bearer "+token)
	case AuthCustom:
		if a.Apply != nil {
			a.Apply(req)
		}
	}
	return nil
}

func basicAuthHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// JWTSigner mints HS256-signed bearer tokens for outbound requests. Tokens
// are cached and re-minted shortly before expiry, so a signer is safe to
// share across a client's concurrent exchanges.
type JWTSigner struct {
	// Secret is the HMAC signing key.
	Secret []byte
	// Issuer is the iss claim, omitted when empty.
	Issuer string
	// Subject is the sub claim, omitted when empty.
	Subject string
	// Audience is the aud claim, omitted when empty.
	Audience []string
	// TTL is the token lifetime. Defaults to 5 minutes.
	TTL time.Duration
	// ExtraClaims are merged into the claims map.
	ExtraClaims map[string]any

	mu     sync.Mutex
	cached string
	expiry time.Time
}

const jwtRefreshMargin = 30 * time.Second

// Token returns a signed token, minting a fresh one when the cached token is
// within the refresh margin of expiry.
func (s *JWTSigner) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.cached != "" && now.Add(jwtRefreshMargin).Before(s.expiry) {
		return s.cached, nil
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	expiry := now.Add(ttl)

	claims := gojwt.MapClaims{
		"iat": now.Unix(),
		"exp": expiry.Unix(),
	}
	if s.Issuer != "" {
		claims["iss"] = s.Issuer
	}
	if s.Subject != "" {
		claims["sub"] = s.Subject
	}
	if len(s.Audience) > 0 {
		claims["aud"] = s.Audience
	}
	for k, v := range s.ExtraClaims {
		claims[k] = v
	}

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("httpkit: sign token: %w", err)
	}

	s.cached = signed
	s.expiry = expiry
	return signed, nil
}
