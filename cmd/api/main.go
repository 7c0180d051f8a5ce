package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dsatschool/delta-api/internal/config"
	"github.com/dsatschool/delta-api/internal/domain/auth"
	"github.com/dsatschool/delta-api/internal/domain/delta"
	"github.com/dsatschool/delta-api/internal/domain/practice"
	"github.com/dsatschool/delta-api/internal/domain/realtime"
	"github.com/dsatschool/delta-api/internal/domain/user"
	"github.com/dsatschool/delta-api/internal/middleware"
	"github.com/dsatschool/delta-api/internal/pkg/database"
	"github.com/dsatschool/delta-api/internal/pkg/jwt"
	"github.com/dsatschool/delta-api/internal/pkg/logger"
	"github.com/dsatschool/delta-api/internal/pkg/metrics"
	pkgresponse "github.com/dsatschool/delta-api/internal/pkg/response"
	"github.com/dsatschool/delta-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Delta API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	var statements storage.ObjectStore
	if cfg.StatementExportEnabled() {
		s3, err := storage.NewS3Storage(context.Background(), storage.Config{
			Endpoint:  cfg.StatementS3Endpoint,
			Region:    cfg.StatementS3Region,
			Bucket:    cfg.StatementS3Bucket,
			AccessKey: cfg.StatementS3AccessKey,
			SecretKey: cfg.StatementS3SecretKey,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create statement storage")
		}
		statements = s3
	} else {
		log.Warn().Msg("Statement bucket not configured: statement export disabled")
	}

	// ---------- WebSocket hub ----------
	hub := realtime.NewHub(redisClient)
	go hub.Run()
	defer hub.Shutdown()

	r := newRouter(cfg, db, redisClient, hub, statements)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

// newRouter wires repositories, services and handlers. redisClient and
// statements may be nil.
func newRouter(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, hub *realtime.Hub, statements storage.ObjectStore) http.Handler {
	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	deltaRepo := delta.NewRepository(db)
	practiceRepo := practice.NewRepository(db)

	// ---------- Services ----------
	deltaService := delta.NewService(deltaRepo, userRepo).
		WithPublisher(hub).
		WithLeaderboardCache(redisClient, cfg.LeaderboardCacheTTL)
	if statements != nil {
		deltaService.WithStatements(statements, cfg.StatementLinkTTL)
	}
	authService := auth.NewService(userRepo, jwtService, auth.NewRedisTokenStore(redisClient), deltaService)
	practiceService := practice.NewService(practiceRepo, deltaService)

	// ---------- Handlers ----------
	authHandler := auth.NewHandler(authService)
	deltaHandler := delta.NewHandler(deltaService)
	deltaAdminHandler := delta.NewAdminHandler(deltaService)
	practiceHandler := practice.NewHandler(practiceService)
	walletSocketHandler := realtime.NewHandler(hub, cfg.AllowedOrigins)

	authMiddleware := middleware.Auth(jwtService)

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	if cfg.MetricsEnabled {
		r.Use(middleware.Metrics)
		r.Handle("/metrics", metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			pkgresponse.ServiceUnavailable(w, "database unavailable")
			return
		}
		pkgresponse.OK(w, map[string]string{"status": "ok"})
	})

	// websocket upgrades must not pass through compression
	r.Mount("/ws", walletSocketHandler.Routes(authMiddleware))

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Compress(5))

		r.Mount("/auth", authHandler.Routes(authMiddleware))
		r.Mount("/delta", deltaHandler.Routes(authMiddleware))
		r.Mount("/admin/delta", deltaAdminHandler.Routes(authMiddleware))
		r.Mount("/practice", practiceHandler.Routes(authMiddleware))
	})

	return r
}
