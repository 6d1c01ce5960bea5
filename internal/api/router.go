package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/kiddies/internal/app"
	iauth "github.com/charlesng35/kiddies/internal/auth"
	"github.com/charlesng35/kiddies/internal/handlers"
	"github.com/charlesng35/kiddies/internal/middleware"
	"github.com/charlesng35/kiddies/internal/monitoring"
	"github.com/charlesng35/kiddies/internal/monitoring/checks"
	"github.com/charlesng35/kiddies/internal/services"
)

const (
	globalRateLimit  = 100
	globalRateWindow = time.Minute
)

// Services bundles the domain services the HTTP handlers dispatch to.
type Services struct {
	Identity *services.IdentityService
	Invites  *services.InviteService
	Users    *services.UserService
	Census   *services.CensusService
	Settings *services.SettingsService
}

func (s Services) validate() error {
	switch {
	case s.Identity == nil:
		return fmt.Errorf("identity service must be provided")
	case s.Invites == nil:
		return fmt.Errorf("invite service must be provided")
	case s.Users == nil:
		return fmt.Errorf("user service must be provided")
	case s.Census == nil:
		return fmt.Errorf("census service must be provided")
	case s.Settings == nil:
		return fmt.Errorf("settings service must be provided")
	}
	return nil
}

// RouterOption customises NewRouter.
type RouterOption func(*routerOptions)

type routerOptions struct {
	readinessChecks []monitoring.Check
}

// WithReadinessChecks adds probes to /health/ready next to the database check.
func WithReadinessChecks(extra ...monitoring.Check) RouterOption {
	return func(o *routerOptions) {
		o.readinessChecks = append(o.readinessChecks, extra...)
	}
}

// NewRouter builds the Gin engine, wires middleware and registers the API routes.
// rateStore backs the credential endpoint limiter; nil keeps counters in memory.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, svc Services, rateStore middleware.RateStore, opts ...RouterOption) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if err := svc.validate(); err != nil {
		return nil, err
	}

	var options routerOptions
	for _, opt := range opts {
		opt(&options)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins...))
	// Basic rate limiting: 100 requests/minute per IP+path
	r.Use(middleware.RateLimit(middleware.NewMemoryRateStore(), globalRateLimit, globalRateWindow))

	readiness := monitoring.NewReadiness(0, checks.Database(db))
	for _, check := range options.readinessChecks {
		readiness.Register(check)
	}

	registerPublicRoutes(r, publicRouteDeps{
		DB:        db,
		Readiness: readiness,
		Setup:     handlers.NewSetupHandler(svc.Users),
	})

	requireAuth := middleware.Auth(jwt, svc.Users)
	requests, window := cfg.Auth.RateLimitPolicy()

	api := r.Group("/api")

	registerAuthRoutes(api, authRouteDeps{
		Handler:     handlers.NewAuthHandler(svc.Identity, svc.Invites, svc.Users),
		RequireAuth: requireAuth,
		Throttle:    middleware.RateLimit(rateStore, requests, window),
	})
	registerCensusRoutes(api, handlers.NewCensusHandler(svc.Census), requireAuth)
	registerSettingsRoutes(api, handlers.NewSettingsHandler(svc.Settings), requireAuth)

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
