package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"match-relay-backend/internal/config"
	"match-relay-backend/internal/handlers"
	"match-relay-backend/internal/middleware"
	"match-relay-backend/internal/repository"
	"match-relay-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	if cfg.Database.EnsureSchema {
		if err := repository.EnsureSchema(context.Background(), db); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	// Initialize services
	userService := services.NewUserService(userRepo, cfg.JWT.Secret)
	presence := services.NewPresenceRegistry()
	relay := services.NewRelay(presence, messageRepo, matchRepo, userService, cfg.Relay.MaxContentLength)

	if cfg.APNs.Enabled {
		notifier, err := services.NewAPNsNotifier(cfg.APNs, userRepo)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create push notifier")
		}
		relay.WithOfflineNotifier(notifier)
		log.Info().Bool("production", cfg.APNs.Production).Msg("Offline push notifications enabled")
	}

	var photos services.PhotoURLResolver
	if cfg.AWS.S3Bucket != "" {
		resolver, err := services.NewS3PhotoResolver(context.Background(), cfg.AWS)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create photo resolver")
		}
		photos = resolver
	}
	conversationService := services.NewConversationService(messageRepo, profileRepo, photos)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	messageHandler := handlers.NewMessageHandler(relay)
	conversationHandler := handlers.NewConversationHandler(conversationService)
	healthHandler := handlers.NewHealthHandler(db, presence)
	wsHandler := handlers.NewWebSocketHandler(relay, cfg.Relay)

	// Setup router
	r := NewRouter(userService, userHandler, messageHandler, conversationHandler, wsHandler)
	r.Get("/healthz", healthHandler.Health)

	// Create HTTP server. Write timeout is left to the WebSocket writer,
	// which sets its own deadline per frame.
	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
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

	log.Info().Int("sessions", presence.Count()).Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown; they end
	// when the process exits and clients reconnect elsewhere.
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// NewRouter builds the HTTP routes
func NewRouter(
	auth middleware.Authenticator,
	userHandler *handlers.UserHandler,
	messageHandler *handlers.MessageHandler,
	conversationHandler *handlers.ConversationHandler,
	wsHandler *handlers.WebSocketHandler,
) chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(auth))
			r.Get("/conversations/{profileId}", conversationHandler.GetConversations)
			r.Get("/messages/{profileId}/{otherProfileId}", messageHandler.GetMessages)
			r.Post("/messages", messageHandler.SendMessage)
			r.Put("/messages/read/{profileId}/{otherProfileId}", messageHandler.MarkRead)
			r.Put("/push-token", userHandler.UpdatePushToken)
		})
	})

	// WebSocket route; identity is checked by the join intent
	r.Get("/ws", wsHandler.HandleWebSocket)

	return r
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

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

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
