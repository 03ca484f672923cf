package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/mstgnz/sanalpos"
	"github.com/mstgnz/sanalpos/handler"
	"github.com/mstgnz/sanalpos/infra/config"
	"github.com/mstgnz/sanalpos/infra/logger"
	"github.com/mstgnz/sanalpos/infra/middle"
	"github.com/mstgnz/sanalpos/infra/opensearch"
	"github.com/mstgnz/sanalpos/infra/response"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	port := config.GetEnv("APP_PORT", "9999")
	cfg := config.Load()

	// SQLite account storage is optional; stored accounts are merged
	// over the env configuration before the server starts.
	var accountStorage *config.AccountStorage
	if dbPath := config.GetEnv("VIRTUALPOS_DB_PATH", ""); dbPath != "" {
		storage, err := config.NewAccountStorage(dbPath)
		if err != nil {
			log.Fatalf("Failed to open account storage: %v", err)
		}
		defer storage.Close()
		accountStorage = storage

		stored, err := storage.LoadAllAccounts()
		if err != nil {
			log.Fatalf("Failed to load stored accounts: %v", err)
		}
		if err := cfg.ApplyStoredAccounts(stored); err != nil {
			log.Fatalf("Failed to apply stored accounts: %v", err)
		}
		log.Printf("Loaded %d stored provider accounts from %s", len(stored), dbPath)
	}

	// OpenSearch payment audit logging is optional
	var payLogger *opensearch.Logger
	osCfg := opensearch.ConfigFromEnv()
	if osCfg.Enabled {
		osClient, err := opensearch.NewClient(osCfg)
		if err != nil {
			log.Printf("Failed to initialize OpenSearch client: %v", err)
			log.Println("Continuing without OpenSearch logging...")
		} else {
			payLogger = opensearch.NewLogger(osClient)
			log.Println("OpenSearch logging initialized successfully")
		}
	} else {
		log.Println("OpenSearch logging is disabled")
	}

	logger.InitGlobalLogger(payLogger)

	paymentHandler := handler.NewPaymentHandler(cfg, validator.New(), payLogger)
	accountHandler := handler.NewAccountHandler(accountStorage)
	logsHandler := handler.NewLogsHandler(payLogger)

	r := chi.NewRouter()

	// Basic Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(60 * time.Second))

	// Security Middleware
	rateLimiter := middle.NewRateLimiter()
	r.Use(middle.PanicRecoveryMiddleware())
	r.Use(middle.SecurityHeadersMiddleware())
	r.Use(middle.RateLimitMiddleware(rateLimiter))
	r.Use(middle.RequestValidationMiddleware())

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "Content-Length", "Access-Control-Allow-Origin"},
		AllowCredentials: true,
		MaxAge:           300, // Preflight cache time (second)
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]any{
			"status":             "ok",
			"timestamp":          time.Now().UTC(),
			"version":            "1.0.0",
			"provider":           cfg.Provider,
			"providers":          sanalpos.Providers(),
			"opensearch_enabled": payLogger != nil,
		}
		response.WriteJSON(w, http.StatusOK, response.Response{
			Code:    http.StatusOK,
			Success: true,
			Message: "Service is healthy",
			Data:    health,
		})
	})

	r.Route("/v1", func(r chi.Router) {
		paymentHandler.Routes(r)
		accountHandler.Routes(r)
		logsHandler.Routes(r)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.WriteJSON(w, http.StatusNotFound, response.Response{Code: http.StatusNotFound, Success: false, Message: "Not Found"})
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           r,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatal(err.Error())
		}
	}()

	log.Println("API is running on", port)

	<-ctx.Done()

	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
