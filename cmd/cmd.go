package cmd

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"video-match-backend/internal/config"
	"video-match-backend/internal/handlers"
	"video-match-backend/internal/middleware"
	"video-match-backend/internal/repository"
	"video-match-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	// Connect to database
	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	if err := repository.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	log.Info().Msg("Database connection established")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)

	// Initialize services
	sessions := services.NewJWTSessionAuthority(userRepo, cfg.JWT.Secret, cfg.JWT.Issuer)
	matchmaker := services.NewMatchmaker(services.MatchmakerOptions{
		StrictSignaling: cfg.Realtime.StrictSignaling,
	})

	reportStores := []services.ReportStore{reportRepo}
	if cfg.Moderation.S3Bucket != "" {
		archive, err := services.NewS3ReportArchive(ctx, services.S3ArchiveConfig{
			Bucket:    cfg.Moderation.S3Bucket,
			Region:    cfg.Moderation.Region,
			AccessKey: cfg.Moderation.AccessKey,
			SecretKey: cfg.Moderation.SecretKey,
			Endpoint:  cfg.Moderation.Endpoint,
			Prefix:    cfg.Moderation.Prefix,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create report archive")
		}
		reportStores = append(reportStores, archive)
		log.Info().Str("bucket", cfg.Moderation.S3Bucket).Msg("Report archive enabled")
	}
	moderation := services.NewModerationService(matchmaker, reportStores...)

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(matchmaker)
	wsHandler := handlers.NewWebSocketHandler(
		matchmaker,
		sessions,
		moderation,
		services.ClientOptions{
			SendBuffer:      cfg.Realtime.SendBuffer,
			PingInterval:    cfg.Realtime.PingInterval,
			PongWait:        cfg.Realtime.PongWait,
			WriteWait:       cfg.Realtime.WriteWait,
			MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
		},
		cfg.Server.AllowedOrigins,
	)

	r := NewRouter(cfg.Server.AllowedOrigins, sessions, sessionHandler, wsHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by srv.Shutdown
	matchmaker.Shutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// NewRouter builds the HTTP routes
func NewRouter(
	allowedOrigins []string,
	sessions services.SessionAuthority,
	sessionHandler *handlers.SessionHandler,
	wsHandler *handlers.WebSocketHandler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", sessionHandler.Health)

	// WebSocket route; chi's Logger would wrap the hijacked response writer
	r.Get("/ws", wsHandler.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chiMiddleware.Logger)
		r.Use(corsMiddleware(allowedOrigins))
		r.Use(middleware.AuthMiddleware(sessions))
		r.Get("/session", sessionHandler.GetSession)
		r.Get("/stats", sessionHandler.GetStats)
	})

	return r
}

// setupLogger configures zerolog logger
func setupLogger(level, format string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS for the configured origins
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := len(allowedOrigins) == 0
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && containsOrigin(allowedOrigins, origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func containsOrigin(origins []string, origin string) bool {
	for _, o := range origins {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
