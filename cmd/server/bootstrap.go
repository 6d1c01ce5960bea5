package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/kiddies/internal/api"
	"github.com/charlesng35/kiddies/internal/app"
	"github.com/charlesng35/kiddies/internal/app/maintenance"
	iauth "github.com/charlesng35/kiddies/internal/auth"
	"github.com/charlesng35/kiddies/internal/auth/providers"
	"github.com/charlesng35/kiddies/internal/cache"
	"github.com/charlesng35/kiddies/internal/database"
	"github.com/charlesng35/kiddies/internal/middleware"
	"github.com/charlesng35/kiddies/internal/monitoring/checks"
	"github.com/charlesng35/kiddies/internal/security"
	"github.com/charlesng35/kiddies/internal/services"
	"github.com/charlesng35/kiddies/pkg/logger"
	"github.com/charlesng35/kiddies/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     *cache.RedisStore
	JWT       *iauth.JWTService
	Services  api.Services
	Jobs      *maintenance.Scheduler
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, caches, services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			if shutdownErr := stack.Shutdown(context.Background()); shutdownErr != nil {
				log.Warn("partial startup cleanup", zap.Error(shutdownErr))
			}
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbCache := cache.NewDatabaseStore(stack.DB)
	var store cache.Store = dbCache
	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed counters", zap.Error(err))
		} else {
			store = stack.Redis
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}
	stack.RateStore = middleware.NewCacheRateStore(store)

	stack.JWT, err = iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Services, err = buildServices(stack.DB, stack.JWT, store, cfg)
	if err != nil {
		return nil, err
	}

	stack.Jobs, err = maintenance.NewScheduler([]maintenance.Job{
		maintenance.CachePurgeJob(dbCache, cfg.Maintenance.CachePurge),
	})
	if err != nil {
		return nil, err
	}
	if err := stack.Jobs.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	var redisPinger checks.Pinger
	if stack.Redis != nil {
		redisPinger = stack.Redis
	}
	stack.Router, err = api.NewRouter(stack.DB, stack.JWT, cfg, stack.Services, stack.RateStore,
		api.WithReadinessChecks(checks.Redis(redisPinger, cfg.Cache.Redis.Enabled)),
	)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func buildServices(db *gorm.DB, jwtSvc *iauth.JWTService, store cache.Store, cfg *app.Config) (api.Services, error) {
	var svc api.Services

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return svc, fmt.Errorf("initialise mailer: %w", err)
	}

	censusOpts, err := cfg.Census.CensusOptions(store)
	if err != nil {
		return svc, err
	}

	credentials, err := providers.NewLocalProvider(db)
	if err != nil {
		return svc, fmt.Errorf("initialise credential provider: %w", err)
	}

	if svc.Invites, err = services.NewInviteService(db, mailer, cfg.Invites.InviteOptions(cfg.Server.FrontendURL)...); err != nil {
		return svc, fmt.Errorf("initialise invite service: %w", err)
	}
	if svc.Identity, err = services.NewIdentityService(credentials, jwtSvc, svc.Invites); err != nil {
		return svc, fmt.Errorf("initialise identity service: %w", err)
	}
	if svc.Users, err = services.NewUserService(db); err != nil {
		return svc, fmt.Errorf("initialise user service: %w", err)
	}
	if svc.Settings, err = services.NewSettingsService(db); err != nil {
		return svc, fmt.Errorf("initialise settings service: %w", err)
	}
	svc.Census, err = services.NewCensusService(db, append(censusOpts, services.WithCensusSettings(svc.Settings))...)
	if err != nil {
		return svc, fmt.Errorf("initialise census service: %w", err)
	}

	return svc, nil
}

// issueBootstrapInvite invites the configured administrator while the installation has no users.
// A failed delivery still leaves a usable link, which is logged so an operator can forward it.
func issueBootstrapInvite(ctx context.Context, invites *services.InviteService, email string, log *zap.Logger) error {
	if email == "" || invites == nil {
		return nil
	}

	issued, err := invites.EnsureBootstrapInvite(ctx, email)
	switch {
	case err != nil && issued == nil:
		return fmt.Errorf("bootstrap invite: %w", err)
	case issued == nil:
		return nil
	}

	fields := []zap.Field{
		zap.String("email", issued.Invite.Email),
		zap.String("link", issued.Link),
		zap.Time("expires_at", issued.Invite.ExpiresAt),
	}
	if err != nil {
		log.Warn("bootstrap invite created but not emailed", append(fields, zap.Error(err))...)
		return nil
	}
	log.Info("bootstrap invite issued", fields...)
	return nil
}

// logSecurityAudit reports every configuration check that did not pass.
func logSecurityAudit(ctx context.Context, stack *runtimeStack, cfg *app.Config, log *zap.Logger) security.Result {
	result := security.NewAuditService(stack.DB, stack.JWT, cfg).Run(ctx)
	for _, check := range result.Checks {
		fields := []zap.Field{zap.String("check", check.ID), zap.String("remediation", check.Remediation)}
		switch check.Status {
		case security.StatusFail:
			log.Error(check.Message, fields...)
		case security.StatusWarn:
			log.Warn(check.Message, fields...)
		}
	}
	return result
}

// Shutdown stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}

	var errs error
	if s.Jobs != nil {
		<-s.Jobs.Stop().Done()
		errs = multierr.Append(errs, s.Jobs.RunOnce(ctx))
	}
	if s.Redis != nil {
		errs = multierr.Append(errs, s.Redis.Close())
	}
	if s.DB != nil {
		errs = multierr.Append(errs, database.Close(s.DB))
	}
	return errs
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}
