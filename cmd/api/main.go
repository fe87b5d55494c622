// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/imranmaj/language-chat/internal/config"
	"github.com/imranmaj/language-chat/internal/handler"
	"github.com/imranmaj/language-chat/internal/middleware"
	"github.com/imranmaj/language-chat/internal/realtime"
	"github.com/imranmaj/language-chat/internal/service"
	"github.com/imranmaj/language-chat/internal/store"
	"github.com/imranmaj/language-chat/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Open the durable store
	var st *store.Store
	if cfg.InMemory {
		st, err = store.OpenInMemory(log)
	} else {
		st, err = store.Open(cfg.DataDir, log)
	}
	if err != nil {
		log.Error("failed to open store")
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()

	// Initialize services. The registry doubles as the matchmaker's
	// waiter notifier.
	registry := realtime.NewRegistry(log)
	conversationSvc := service.NewConversationService(st, log)
	if err := conversationSvc.Rebuild(ctx); err != nil {
		log.Error("failed to rebuild conversation index")
		os.Exit(1)
	}
	matchmaker := service.NewMatchmaker(st, conversationSvc, registry, log)
	if err := matchmaker.Rebuild(ctx); err != nil {
		log.Error("failed to rebuild waiting pool")
		os.Exit(1)
	}
	relay := service.NewRelay(st, conversationSvc, registry, log, cfg.HistoryWindow, cfg.MaxMessageLength)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(st)
	authHandler := handler.NewAuthHandler(st, log, cfg.JWTSecret, cfg.JWTExpiration)
	conversationHandler := handler.NewConversationHandler(matchmaker, conversationSvc, relay, log)
	wsHandler := handler.NewWSHandler(relay, conversationSvc, registry, log, cfg.SendBufferSize)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
			r.Post("/auth/signup", authHandler.Signup)
			r.Post("/auth/login", authHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Put("/account", authHandler.UpdateAccount)

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", conversationHandler.Request)
				r.Get("/", conversationHandler.List)
				r.Get("/current", conversationHandler.Current)
				r.Post("/current/end", conversationHandler.End)
				r.Get("/{id}", conversationHandler.Get)
			})
		})
	})

	// Live channel; authenticated via bearer token (header or query param)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Get("/ws", wsHandler.Serve)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error")
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown")
	}

	log.Info("server stopped")
}
