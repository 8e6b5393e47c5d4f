package auth

import "time"

// Config holds the process wide settings shared by the token issuer and
// the ledgers. It is built once at startup, validated, and never mutated
// afterwards, so request handlers can read it without locking.
type Config struct {
	signingKey      []byte
	issuer          string
	audience        []string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	resetCodeTTL    time.Duration
	tokenRetention  time.Duration
	defaultRole     string
}

// ConfigOption mutates the config during construction only.
type ConfigOption func(*Config)

// NewConfig validates and freezes process configuration. A missing signing
// key is fatal: the process must not serve traffic without one.
func NewConfig(signingKey string, opts ...ConfigOption) (*Config, error) {
	if signingKey == "" {
		return nil, ErrMissingSigningKey
	}

	cfg := &Config{
		signingKey:      []byte(signingKey),
		issuer:          "go-auth-sessions",
		accessTokenTTL:  60 * time.Minute,
		refreshTokenTTL: 7 * 24 * time.Hour,
		resetCodeTTL:    15 * time.Minute,
		tokenRetention:  30 * 24 * time.Hour,
		defaultRole:     DefaultRoleName,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	return cfg, nil
}

// WithIssuer sets the iss claim stamped on access tokens.
func WithIssuer(issuer string) ConfigOption {
	return func(c *Config) {
		if issuer != "" {
			c.issuer = issuer
		}
	}
}

// WithAudience sets the aud claim stamped on access tokens.
func WithAudience(audience ...string) ConfigOption {
	return func(c *Config) {
		if len(audience) > 0 {
			c.audience = append([]string(nil), audience...)
		}
	}
}

// WithAccessTokenTTL overrides the access token lifetime.
func WithAccessTokenTTL(ttl time.Duration) ConfigOption {
	return func(c *Config) {
		if ttl > 0 {
			c.accessTokenTTL = ttl
		}
	}
}

// WithRefreshTokenTTL overrides the refresh token lifetime.
func WithRefreshTokenTTL(ttl time.Duration) ConfigOption {
	return func(c *Config) {
		if ttl > 0 {
			c.refreshTokenTTL = ttl
		}
	}
}

// WithResetCodeTTL overrides the reset code lifetime.
func WithResetCodeTTL(ttl time.Duration) ConfigOption {
	return func(c *Config) {
		if ttl > 0 {
			c.resetCodeTTL = ttl
		}
	}
}

// WithTokenRetention overrides how long revoked or expired refresh tokens
// are kept for audit before PurgeExpired may remove them.
func WithTokenRetention(retention time.Duration) ConfigOption {
	return func(c *Config) {
		if retention > 0 {
			c.tokenRetention = retention
		}
	}
}

// WithDefaultRole overrides the role granted on registration.
func WithDefaultRole(role string) ConfigOption {
	return func(c *Config) {
		if role != "" {
			c.defaultRole = role
		}
	}
}

// GetSigningKey returns the shared signing key.
func (c *Config) GetSigningKey() []byte { return c.signingKey }

// GetIssuer returns the iss claim value.
func (c *Config) GetIssuer() string { return c.issuer }

// GetAudience returns the aud claim values.
func (c *Config) GetAudience() []string { return c.audience }

// GetAccessTokenTTL returns the access token lifetime.
func (c *Config) GetAccessTokenTTL() time.Duration { return c.accessTokenTTL }

// GetRefreshTokenTTL returns the refresh token lifetime.
func (c *Config) GetRefreshTokenTTL() time.Duration { return c.refreshTokenTTL }

// GetResetCodeTTL returns the reset code lifetime.
func (c *Config) GetResetCodeTTL() time.Duration { return c.resetCodeTTL }

// GetTokenRetention returns the audit retention window for dead tokens.
func (c *Config) GetTokenRetention() time.Duration { return c.tokenRetention }

// GetDefaultRole returns the role granted on registration.
func (c *Config) GetDefaultRole() string { return c.defaultRole }
