package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var corsExposedHeaders = []string{
	"Content-Length",
	RequestIDHeader,
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"X-RateLimit-Reset",
	"Retry-After",
}

// CORS allows the configured frontend origins with credentials. Entries may use
// a single wildcard such as "https://*.church.org". With no origins every
// origin is allowed and credentials are not.
func CORS(origins ...string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", "Accept", "Origin", RequestIDHeader},
		ExposeHeaders: corsExposedHeaders,
		MaxAge:        12 * time.Hour,
		AllowWildcard: true,
	}

	if allowed := normaliseOrigins(origins); len(allowed) > 0 {
		cfg.AllowOrigins = allowed
		cfg.AllowCredentials = true
	} else {
		cfg.AllowAllOrigins = true
	}
	return cors.New(cfg)
}

func normaliseOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" {
			out = append(out, strings.ToLower(origin))
		}
	}
	return out
}
