// Doculord server: the document-processing HTTP API and the pipeline
// worker pool in a single process.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/doculord/doculord/pkg/api"
	"github.com/doculord/doculord/pkg/database"
	"github.com/doculord/doculord/pkg/docling"
	"github.com/doculord/doculord/pkg/embedding"
	"github.com/doculord/doculord/pkg/llm"
	"github.com/doculord/doculord/pkg/pipeline"
	"github.com/doculord/doculord/pkg/queue"
	"github.com/doculord/doculord/pkg/services"
	"github.com/doculord/doculord/pkg/storage"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// stageModels resolves the LLM model used by each pipeline stage.
type stageModels struct {
	validation     string
	parsing        string
	extraction     string
	classification string
}

func loadStageModels() stageModels {
	return stageModels{
		validation:     getEnv("VALIDATION_LLM_MODEL", "gpt-4o-mini"),
		parsing:        getEnv("PARSING_LLM_MODEL", "gpt-4o-mini"),
		extraction:     getEnv("EXTRACTION_LLM_MODEL", "gpt-4o-mini"),
		classification: getEnv("CLASSIFICATION_LLM_MODEL", "gpt-4o-mini"),
	}
}

func main() {
	envFile := flag.String("env-file", getEnv("ENV_FILE", ".env"), "Path to .env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", *envFile, "error", err)
	} else {
		slog.Info("Loaded environment", "path", *envFile)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	slog.Info("Starting doculord", "http_port", httpPort)

	ctx := context.Background()

	// Database
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	// Domain services
	jobService := services.NewJobService(dbClient)
	documentService := services.NewDocumentService(dbClient)
	questionService := services.NewQuestionService(dbClient)
	credentialService := services.NewCredentialService(dbClient)

	// Object store
	storageConfig, err := storage.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load storage config", "error", err)
		os.Exit(1)
	}
	storageClient, err := storage.NewClient(ctx, storageConfig)
	if err != nil {
		slog.Error("Failed to initialize object store", "error", err)
		os.Exit(1)
	}
	slog.Info("Object store initialized", "bucket", storageConfig.Bucket)

	// Converter
	doclingConfig, err := docling.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load converter config", "error", err)
		os.Exit(1)
	}
	converter := docling.NewClient(doclingConfig)

	// Embedding provider
	embeddingConfig, err := embedding.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load embedding config", "error", err)
		os.Exit(1)
	}
	embedder, err := embedding.NewProvider(embeddingConfig)
	if err != nil {
		slog.Error("Failed to initialize embedding provider", "error", err)
		os.Exit(1)
	}
	searchService := services.NewSearchService(dbClient, embedder)

	// Stage LLM gateways
	models := loadStageModels()
	validationLLM, err := llm.NewClient(ctx, models.validation)
	if err != nil {
		slog.Error("Failed to initialize validation LLM", "model", models.validation, "error", err)
		os.Exit(1)
	}
	parsingLLM, err := llm.NewClient(ctx, models.parsing)
	if err != nil {
		slog.Error("Failed to initialize parsing LLM", "model", models.parsing, "error", err)
		os.Exit(1)
	}
	extractionLLM, err := llm.NewClient(ctx, models.extraction)
	if err != nil {
		slog.Error("Failed to initialize extraction LLM", "model", models.extraction, "error", err)
		os.Exit(1)
	}
	classificationLLM, err := llm.NewClient(ctx, models.classification)
	if err != nil {
		slog.Error("Failed to initialize classification LLM", "model", models.classification, "error", err)
		os.Exit(1)
	}

	// Pipeline
	validationStage := pipeline.NewValidationStage(validationLLM, converter)
	if v := os.Getenv("MAX_VALIDATION_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			slog.Error("Invalid MAX_VALIDATION_ATTEMPTS", "value", v)
			os.Exit(1)
		}
		validationStage.SetMaxAttempts(n)
	}
	orchestrator := pipeline.NewOrchestrator(
		jobService,
		pipeline.NewIngestionStage(converter),
		pipeline.NewParsingStage(parsingLLM),
		validationStage,
		pipeline.NewPersistenceStage(storageClient, extractionLLM, documentService),
		pipeline.NewClassificationStage(classificationLLM, questionService),
		pipeline.NewVectorizationStage(embedder, questionService),
	)

	// Worker pool (started before the HTTP server so queued jobs resume
	// immediately after a restart)
	queueConfig, err := queue.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load queue config", "error", err)
		os.Exit(1)
	}
	workerPool := queue.NewWorkerPool(dbClient, queueConfig, orchestrator)
	if err := workerPool.Start(ctx); err != nil {
		slog.Error("Failed to start worker pool", "error", err)
		os.Exit(1)
	}

	// HTTP server
	server := api.NewServer(
		dbClient,
		jobService,
		documentService,
		questionService,
		searchService,
		credentialService,
		storageClient,
		embedder,
		workerPool,
	)
	httpServer := &http.Server{
		Addr:    ":" + httpPort,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Doculord started successfully", "workers", queueConfig.WorkerCount)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// Stop accepting HTTP work first, then wait for in-flight jobs.
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	done := make(chan struct{})
	go func() {
		workerPool.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Worker pool stopped gracefully")
	case <-time.After(queueConfig.JobTimeout):
		slog.Warn("Shutdown timeout exceeded; incomplete jobs will be recovered by the stalled-job scan")
	}

	slog.Info("Shutdown complete")
}
