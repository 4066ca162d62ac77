package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"avatarchat-backend/internal/agent"
	"avatarchat-backend/internal/api"
	"avatarchat-backend/internal/config"
	"avatarchat-backend/internal/handlers"
	"avatarchat-backend/internal/rag"
	"avatarchat-backend/internal/services"
	"avatarchat-backend/internal/store/postgres"
)

func main() {
	log.Println("Starting avatar chat backend...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Initialize Database Connection Pool
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Unable to create database connection pool: %v\n", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(dbCtx); err != nil {
		log.Fatalf("FATAL: Unable to ping database: %v\n", err)
	}
	log.Println("Database connection pool established and pinged successfully.")

	// 3. Initialize Dependencies (Store, Retrieval, Agent, Services, Handlers)
	convStore := postgres.NewPostgresStore(dbCtx, dbpool)
	log.Println("Postgres store initialized.")

	retriever := rag.NewRetriever(cfg)
	log.Printf("Retriever initialized (provider=%s).", cfg.RAGProvider)

	agentClient, err := agent.NewClient(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize data agent client: %v", err)
	}
	log.Println("Data agent client initialized.")

	chatService := services.NewChatService(cfg, convStore, retriever, agentClient)
	log.Println("ChatService initialized.")
	tokenService := services.NewTokenService(cfg)
	log.Println("TokenService initialized.")
	relayService := services.NewRelayService(cfg)
	log.Println("RelayService initialized.")

	chatHandler := handlers.NewChatHandlers(chatService, cfg.AppEnv)
	tokenHandler := handlers.NewTokenHandlers(tokenService)
	relayHandler := handlers.NewRelayHandlers(relayService)

	// 4. Setup Router & Inject Dependencies
	router := api.NewRouter(api.RouterDependencies{
		ChatHandler:  chatHandler,
		TokenHandler: tokenHandler,
		RelayHandler: relayHandler,
		TokenService: tokenService,
		Config:       cfg,
	})
	log.Println("HTTP router configured.")

	// 5. Configure and Start HTTP Server
	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
		// Production hardening: Set timeouts to avoid Slowloris attacks
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting and listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Could not listen on %s: %v\n", cfg.HTTPPort, err)
		}
		log.Println("Server listener routine stopped.")
	}()

	<-stopChan
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: Server graceful shutdown failed: %v", err)
	}

	log.Println("Server shutdown complete.")
}
