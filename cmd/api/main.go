package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	accounthttp "github.com/ysamarin/postline/backend/internal/account/http"
	accountservice "github.com/ysamarin/postline/backend/internal/account/service"
	authcleanup "github.com/ysamarin/postline/backend/internal/auth/cleanup"
	authhttp "github.com/ysamarin/postline/backend/internal/auth/http"
	authrepo "github.com/ysamarin/postline/backend/internal/auth/repository"
	authservice "github.com/ysamarin/postline/backend/internal/auth/service"
	"github.com/ysamarin/postline/backend/internal/common/clock"
	"github.com/ysamarin/postline/backend/internal/common/config"
	commoncrypto "github.com/ysamarin/postline/backend/internal/common/crypto"
	"github.com/ysamarin/postline/backend/internal/common/db"
	commonhttp "github.com/ysamarin/postline/backend/internal/common/http"
	"github.com/ysamarin/postline/backend/internal/common/jwtverify"
	"github.com/ysamarin/postline/backend/internal/common/logger"
	srv "github.com/ysamarin/postline/backend/internal/common/server"
	posthttp "github.com/ysamarin/postline/backend/internal/post/http"
	postrepo "github.com/ysamarin/postline/backend/internal/post/repository"
	postservice "github.com/ysamarin/postline/backend/internal/post/service"
	userrepo "github.com/ysamarin/postline/backend/internal/user/repository"
)

func main() {
	log, err := logger.New(os.Getenv("LOG_DIR"), "api", os.Getenv("LOG_LEVEL"))
	if err != nil {
		os.Stderr.WriteString(fmt.Sprintf("failed to initialize logger: %v\n", err))
		os.Exit(1)
	}

	cfg, err := config.LoadAPIConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	pool := db.NewPool(log, cfg.DatabaseURL)
	defer pool.Close()

	realClock := clock.NewRealClock()
	hasher := &commoncrypto.BcryptHasher{}
	idGenerator := &commoncrypto.UUIDGenerator{}

	userRepo := userrepo.NewPgRepository(pool)
	refreshTokenRepo := authrepo.NewPgRefreshTokenRepository(pool)
	revokedTokenRepo := authrepo.NewPgRevokedTokenRepository(pool)
	postRepo := postrepo.NewPgRepository(pool)

	tokenIssuer := authservice.NewTokenIssuer(cfg.JWTSecret, idGenerator, cfg.AccessTokenTTL, realClock)
	authService := authservice.NewAuthService(
		userRepo,
		refreshTokenRepo,
		revokedTokenRepo,
		hasher,
		idGenerator,
		tokenIssuer,
		realClock,
		cfg.RefreshTokenTTL,
		cfg.MaxRefreshTokensPerUser,
		log,
	)

	registerValidator := accountservice.NewRegisterValidator(userRepo, cfg.PasswordMinLength)
	accountService := accountservice.NewAccountService(
		userRepo,
		registerValidator,
		hasher,
		idGenerator,
		realClock,
		log,
	)

	postService := postservice.NewPostService(postRepo, idGenerator, realClock, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go authcleanup.StartRefreshTokenCleanup(ctx, refreshTokenRepo, log)
	go authcleanup.StartRevokedTokenCleanup(ctx, revokedTokenRepo, log)

	authMW := jwtverify.Middleware(cfg.JWTSecret, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", commonhttp.HealthHandler(log))
	mux.Handle("/metrics", promhttp.Handler())
	authhttp.NewHandler(mux, authService, log, authMW)
	accounthttp.NewHandler(mux, accountService, log, authMW)
	posthttp.NewHandler(mux, postService, log, cfg.PageSize, cfg.RequestTimeout, authMW)

	rateLimiter := commonhttp.NewStrictRateLimiter()
	baseHandler := commonhttp.BuildBaseHandler(log, mux)

	rateLimitMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if path == "/health" || path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			rateLimiter.MiddlewareForPath(path)(next).ServeHTTP(w, r)
		})
	}

	finalHandler := rateLimitMiddleware(baseHandler)

	serverConfig := srv.DefaultServerConfig(cfg.HTTPPort)
	server := srv.NewServer(serverConfig, finalHandler)

	shutdownHooks := []srv.ShutdownHook{
		func(ctx context.Context) error {
			log.Infof("api service: stopping cleanup goroutines")
			cancel()
			return nil
		},
	}

	srv.StartWithGracefulShutdownAndHooks(server, log, "api", shutdownHooks)
}
