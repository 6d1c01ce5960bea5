package app

import (
	"time"

	"github.com/charlesng35/kiddies/internal/auth"
)

const (
	defaultRateLimitRequests = 20
	defaultRateLimitWindow   = time.Minute
)

// JWTServiceConfig maps auth.jwt onto auth.JWTConfig. The service applies its
// own defaults for zero values.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		Audience:       c.JWT.Audience,
		AccessTokenTTL: c.JWT.TTL,
		Leeway:         c.JWT.Leeway,
	}
}

// RateLimitPolicy returns the request budget of the credential endpoints.
func (c AuthConfig) RateLimitPolicy() (requests int, window time.Duration) {
	requests, window = c.RateLimit.Requests, c.RateLimit.Window
	if requests <= 0 {
		requests = defaultRateLimitRequests
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return requests, window
}
