package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/arjunms/account-service/internal/app"
	"github.com/arjunms/account-service/internal/config"
	"github.com/arjunms/account-service/internal/database"
	"github.com/arjunms/account-service/internal/email"
	"github.com/arjunms/account-service/internal/health"
	"github.com/arjunms/account-service/internal/http/handler"
	"github.com/arjunms/account-service/internal/http/router"
	"github.com/arjunms/account-service/internal/observability"
	"github.com/arjunms/account-service/internal/repository"
	"github.com/arjunms/account-service/internal/security"
	"github.com/arjunms/account-service/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewUserRepository,
	repository.NewLocalCredentialRepository,
	repository.NewSessionRepository,
	repository.NewExternalIdentityRepository,
	repository.NewVerificationTokenRepository,
)

var SecuritySet = wire.NewSet(
	provideJWTManager,
	provideCookieManager,
	providePasswordHasher,
	wire.Bind(new(service.PasswordHasher), new(*security.Argon2Hasher)),
)

var ServiceSet = wire.NewSet(
	provideTokenService,
	service.NewStoreTokenProvider,
	wire.Bind(new(service.TokenProvider), new(*service.StoreTokenProvider)),
	provideCooldownGuard,
	provideAccountNotifier,
	service.NewGoogleOAuthProvider,
	wire.Bind(new(service.OAuthProvider), new(*service.GoogleOAuthProvider)),
	service.NewAuthService,
	service.NewRecoveryService,
	service.NewConfirmationService,
	service.NewExternalService,
	service.NewUserService,
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	wire.Bind(new(service.RecoveryServiceInterface), new(*service.RecoveryService)),
	wire.Bind(new(service.ConfirmationServiceInterface), new(*service.ConfirmationService)),
	wire.Bind(new(service.ExternalServiceInterface), new(*service.ExternalService)),
	wire.Bind(new(service.UserServiceInterface), new(*service.UserService)),
	wire.Bind(new(service.SessionIssuer), new(*service.TokenService)),
)

var HTTPSet = wire.NewSet(
	handler.NewAuthHandler,
	provideExternalHandler,
	handler.NewUserHandler,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideApp)

// MigrationRunner applies the schema without starting the server.
type MigrationRunner struct {
	db *gorm.DB
}

func NewMigrationRunner(db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{db: db}
}

func (m *MigrationRunner) Run() error {
	if err := database.Migrate(m.db); err != nil {
		return err
	}
	fmt.Println("migration complete")
	return nil
}

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg.DatabaseURL)
}

func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config) redis.UniversalClient {
	if !cfg.AuthAbuseRedisEnabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret, cfg.JWTRefreshSecret)
}

func provideCookieManager(cfg *config.Config) *security.CookieManager {
	return security.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure, cfg.CookieSameSite)
}

func providePasswordHasher() *security.Argon2Hasher {
	return security.NewArgon2Hasher(security.DefaultArgon2Params())
}

func provideTokenService(cfg *config.Config, jwt *security.JWTManager, sessionRepo repository.SessionRepository) *service.TokenService {
	return service.NewTokenService(jwt, sessionRepo, cfg.RefreshTokenPepper, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, cfg.RememberMeTTL)
}

func provideCooldownGuard(cfg *config.Config, redisClient redis.UniversalClient) service.CooldownGuard {
	if !cfg.AuthAbuseProtectionEnabled {
		return service.NewNoopCooldownGuard()
	}
	policy := service.CooldownPolicy{
		FreeAttempts: cfg.AuthAbuseFreeAttempts,
		BaseDelay:    cfg.AuthAbuseBaseDelay,
		Multiplier:   cfg.AuthAbuseMultiplier,
		MaxDelay:     cfg.AuthAbuseMaxDelay,
		ResetWindow:  cfg.AuthAbuseResetWindow,
	}
	if cfg.AuthAbuseRedisEnabled && redisClient != nil {
		return service.NewRedisCooldownGuard(redisClient, cfg.RedisKeyPrefix+":auth_cooldown", policy)
	}
	return service.NewInMemoryCooldownGuard(policy)
}

func provideAccountNotifier(cfg *config.Config, logger *slog.Logger) (service.AccountNotifier, error) {
	sender, err := email.NewSender(&email.Config{
		Provider:     cfg.EmailProvider,
		SMTPHost:     cfg.SMTPHost,
		SMTPPort:     cfg.SMTPPort,
		SMTPUsername: cfg.SMTPUsername,
		SMTPPassword: cfg.SMTPPassword,
		ResendAPIKey: cfg.ResendAPIKey,
		FromAddress:  cfg.EmailFrom,
		FromName:     cfg.EmailFromName,
	}, logger)
	if err != nil {
		return nil, err
	}
	return service.NewEmailAccountNotifier(sender, "", cfg.NotifierTimeout), nil
}

func provideExternalHandler(
	cfg *config.Config,
	externalSvc service.ExternalServiceInterface,
	sessions service.SessionIssuer,
	cookieMgr *security.CookieManager,
) *handler.ExternalHandler {
	if !cfg.AuthGoogleEnabled {
		return nil
	}
	return handler.NewExternalHandler(externalSvc, sessions, cookieMgr, cfg.StateSigningSecret)
}

func provideRouterDependencies(
	authHandler *handler.AuthHandler,
	externalHandler *handler.ExternalHandler,
	userHandler *handler.UserHandler,
	jwt *security.JWTManager,
	readiness *health.ProbeRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:        authHandler,
		ExternalHandler:    externalHandler,
		UserHandler:        userHandler,
		JWTManager:         jwt,
		CORSOrigins:        cfg.CORSAllowedOrigins,
		APIRateLimitRPM:    cfg.APIRateLimitPerMin,
		AuthRateLimitRPM:   cfg.AuthRateLimitPerMin,
		ForgotRateLimitRPM: cfg.AuthPasswordForgotRateLimitPerMin,
		Readiness:          readiness,
		EnableOTelHTTP:     cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient) *health.ProbeRunner {
	checkers := make([]health.Checker, 0, 2)
	if c := health.NewDBChecker(db); c != nil {
		checkers = append(checkers, c)
	}
	if cfg.AuthAbuseRedisEnabled {
		if c := health.NewRedisChecker(redisClient); c != nil {
			checkers = append(checkers, c)
		}
	}
	return health.NewProbeRunner(5*time.Second, 10*time.Second, checkers...)
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	readiness *health.ProbeRunner,
) *app.App {
	return app.New(cfg, logger, server, runtime, db, redisClient, readiness)
}
