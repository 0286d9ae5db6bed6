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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"ragchat/api"
	"ragchat/config"
	"ragchat/llm"
	"ragchat/memory"
	"ragchat/policy"
	"ragchat/rag"
	"ragchat/session"
	"ragchat/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting ragchat...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Documents: %s", cfg.DocumentsPath)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize retriever
	loadRetriever := func() (rag.Retriever, error) {
		chunks, err := rag.LoadDocuments(cfg.DocumentsPath)
		if err != nil {
			return nil, err
		}
		log.Printf("Loaded %d document chunks from %s", len(chunks), cfg.DocumentsPath)
		return rag.NewStaticRetriever(chunks), nil
	}
	initial, err := loadRetriever()
	if err != nil {
		log.Fatalf("Failed to load documents: %v", err)
	}
	retriever := rag.NewHandle(initial)

	// Initialize completion client
	var completionClient llm.CompletionClient
	if cfg.LLMAPIKey == "" {
		log.Printf("WARN: LLM_API_KEY not set, using mock completion client")
		completionClient = llm.NewMockClient()
	} else {
		completionClient = llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)
	}

	// Initialize policy engine
	ctx := context.Background()
	policyContent := policy.DefaultPolicy
	if cfg.AdminPolicyFile != "" {
		data, err := os.ReadFile(cfg.AdminPolicyFile)
		if err != nil {
			log.Fatalf("Failed to read admin policy file: %v", err)
		}
		policyContent = string(data)
	}
	policyEngine, err := policy.NewEngine(ctx, policyContent)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize services
	sessions := session.NewManager(db, cfg.SessionTTL)
	mem := memory.NewCache(cfg.MaxContextTurns)
	orch := rag.NewOrchestrator(retriever, completionClient, cfg.SystemPrompt, cfg.RetrievalTopK)

	// Initialize handler
	h := api.NewHandler(db, sessions, mem, orch, retriever, loadRetriever, policyEngine, cfg)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Register routes
	h.RegisterRoutes(e)

	// Periodic expiry sweep
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if _, err := sessions.CleanupExpiredSessions(sweepCtx); err != nil {
					log.Printf("WARN: expiry sweep failed: %v", err)
				}
			}
		}
	}()

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down ragchat...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("ragchat stopped")
}
