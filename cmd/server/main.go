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

	"salescoach-backend/internal/config"
	"salescoach-backend/internal/database"
	"salescoach-backend/internal/handlers"
	"salescoach-backend/internal/middleware"
	"salescoach-backend/internal/repository"
	"salescoach-backend/internal/router"
	"salescoach-backend/internal/services"
	"salescoach-backend/internal/websocket"
	"salescoach-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting SalesCoach Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Step 5: Load Scenario Catalog ────
	catalog, err := services.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("✗ Scenario catalog failed to load: %v", err)
	}
	log.Printf("✓ Scenario catalog loaded (version %d, %d categories)", catalog.Version, len(catalog.Categories))

	// ──── Initialize Repositories ────
	sessionRepo := repository.NewSessionRepo(pool)
	questionRepo := repository.NewQuestionRepo(pool)
	evaluationRepo := repository.NewEvaluationRepo(pool)
	reportRepo := repository.NewReportRepo(pool)
	contentRepo := repository.NewContentRepo(pool)

	// ──── Step 6: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(
		cfg.GeminiAPIKey,
		cfg.GeminiModel,
		cfg.GeminiEmbeddingModel,
		cfg.GeminiConcurrentReqs,
		cfg.GenerationTimeout,
		cfg.EvaluationTimeout,
	)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer geminiService.Close()
	log.Println("✓ Gemini client initialized")

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	retrievalService := services.NewRetrievalService(contentRepo, geminiService, cfg.RetrievalTimeout)
	bankBuilder := services.NewBankBuilder(catalog, retrievalService, geminiService, cfg.QuestionsPerMinute, cfg.MinQuestions, cfg.MaxQuestions)
	selector := services.NewSelector(cfg.RaiseThreshold, cfg.LowerThreshold)
	evaluator := services.NewEvaluator(geminiService, retrievalService, catalog)
	reportBuilder := services.NewReportBuilder(cfg.MasteryThreshold)
	autosaveStore := services.NewAutosaveStore(redisClients.Queue, cfg.SnapshotTTL)
	answerGuard := services.NewAnswerGuard(redisClients.Queue, cfg.DuplicateWindow)
	eventPublisher := services.NewEventPublisher(redisClients.Queue)

	sessionService := services.NewSessionService(
		sessionRepo,
		questionRepo,
		evaluationRepo,
		reportRepo,
		bankBuilder,
		selector,
		evaluator,
		reportBuilder,
		autosaveStore,
		answerGuard,
		eventPublisher,
	)

	// ──── Initialize Handlers ────
	trainingHandler := handlers.NewTrainingHandler(sessionService)
	catalogHandler := handlers.NewCatalogHandler(contentRepo, catalog)

	// ──── Step 7: Start Autosave Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, autosaveStore, 3)
	workerPool.Start()

	expiryScheduler := services.NewExpiryScheduler(sessionService)
	expiryScheduler.Start()

	// ──── Step 8: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret)
	log.Println("✓ WebSocket hub started")

	// ──── Step 9: Start HTTP Server ────
	r := router.New(jwtAuth, trainingHandler, catalogHandler, wsHub, cfg.FrontendURL)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()
		expiryScheduler.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ SalesCoach Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
