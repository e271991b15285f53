package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"inkwell/internal/auth"
	"inkwell/internal/capabilities"
	"inkwell/internal/config"
	"inkwell/internal/engine/suggest"
	"inkwell/internal/engine/turn"
	"inkwell/internal/handler"
	"inkwell/internal/middleware"
	"inkwell/internal/provider"
	"inkwell/internal/repository/postgres"
	sessionSvc "inkwell/internal/service/session"
	storySvc "inkwell/internal/service/story"
	"inkwell/internal/stream"
	"inkwell/internal/toolexec"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var logWriter io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.NewLogWriter(cfg.LogDir)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logWriter = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// Token verifier
	var verifier auth.TokenVerifier
	if cfg.JWKSURL != "" {
		v, err := auth.NewJWKSVerifier(cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create token verifier: %v", err)
		}
		verifier = v
	} else {
		if cfg.Environment == "prod" {
			log.Fatal("JWKS_URL is required in prod")
		}
		logger.Warn("JWKS_URL not set, every request resolves to the dev user",
			"user_id", cfg.DevUserID,
		)
		verifier = auth.StaticVerifier{UserID: cfg.DevUserID}
	}
	defer verifier.Close()

	// Create pgx connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected")

	// Create repositories
	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	storyRepo := postgres.NewStoryRepository(repoConfig)
	bookRepo := postgres.NewBookRepository(repoConfig)
	chapterRepo := postgres.NewChapterRepository(repoConfig)
	sourcebookRepo := postgres.NewSourcebookRepository(repoConfig)
	sessionRepo := postgres.NewSessionRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	// Model capability registry and provider role bindings
	capsRegistry, err := capabilities.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load capability registry: %v", err)
	}

	providers, err := config.LoadProviders(cfg.ProvidersFile)
	if err != nil {
		log.Fatalf("Failed to load providers file: %v", err)
	}

	gateways, err := provider.NewRegistry(providers, capsRegistry, logger)
	if err != nil {
		log.Fatalf("Failed to bind providers: %v", err)
	}

	// Services
	stories := storySvc.NewService(storyRepo, bookRepo, chapterRepo, sourcebookRepo, txManager, logger)
	titler := sessionSvc.NewTitler(gateways.ForRole(config.RoleEditing), logger)
	sessions := sessionSvc.NewService(sessionRepo, sessionSvc.NewMemoryStore(), storyRepo, titler, logger)

	// Engines
	hub := stream.NewHub(logger)
	autosaver := turn.NewAutosaver(turn.DefaultAutosaveDelay, sessions.SaveMessages, logger)
	tools := toolexec.NewClient(cfg.ToolExecutorURL, logger)
	turnEngine := turn.NewEngine(gateways.ForRole(config.RoleChat), tools, sessions, stories, hub, autosaver, logger)
	suggestEngine := suggest.NewEngine(gateways.ForRole(config.RoleWriting), stories, logger)

	logger.Info("services initialized")

	// Handlers
	storyHandler := handler.NewStoryHandler(stories, logger)
	bookHandler := handler.NewBookHandler(stories, logger)
	chapterHandler := handler.NewChapterHandler(stories, logger)
	sourcebookHandler := handler.NewSourcebookHandler(stories, logger)
	sessionHandler := handler.NewSessionHandler(sessions, logger)
	chatHandler := handler.NewChatHandler(turnEngine, logger)
	streamHandler := handler.NewStreamHandler(hub, sessions, cfg.Debug, logger)
	suggestionHandler := handler.NewSuggestionHandler(suggestEngine, logger)
	modelsHandler := handler.NewModelsHandler(providers, capsRegistry, logger)

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", handler.HealthCheck)

	// Story routes
	mux.HandleFunc("POST /api/stories", storyHandler.CreateStory)
	mux.HandleFunc("GET /api/stories", storyHandler.ListStories)
	mux.HandleFunc("GET /api/stories/{id}", storyHandler.GetStory)
	mux.HandleFunc("GET /api/stories/{id}/state", storyHandler.GetState)
	mux.HandleFunc("PATCH /api/stories/{id}", storyHandler.UpdateStory)
	mux.HandleFunc("DELETE /api/stories/{id}", storyHandler.DeleteStory)

	// Book routes
	mux.HandleFunc("POST /api/books", bookHandler.CreateBook)
	mux.HandleFunc("GET /api/books", bookHandler.ListBooks)
	mux.HandleFunc("GET /api/books/{id}", bookHandler.GetBook)
	mux.HandleFunc("PATCH /api/books/{id}", bookHandler.UpdateBook)
	mux.HandleFunc("DELETE /api/books/{id}", bookHandler.DeleteBook)

	// Chapter routes
	mux.HandleFunc("POST /api/chapters", chapterHandler.CreateChapter)
	mux.HandleFunc("GET /api/chapters", chapterHandler.ListChapters)
	mux.HandleFunc("GET /api/chapters/{id}", chapterHandler.GetChapter)
	mux.HandleFunc("PATCH /api/chapters/{id}", chapterHandler.UpdateChapter)
	mux.HandleFunc("DELETE /api/chapters/{id}", chapterHandler.DeleteChapter)

	// Sourcebook routes
	mux.HandleFunc("POST /api/sourcebook", sourcebookHandler.CreateEntry)
	mux.HandleFunc("GET /api/sourcebook", sourcebookHandler.ListEntries)
	mux.HandleFunc("GET /api/sourcebook/{id}", sourcebookHandler.GetEntry)
	mux.HandleFunc("PATCH /api/sourcebook/{id}", sourcebookHandler.UpdateEntry)
	mux.HandleFunc("DELETE /api/sourcebook/{id}", sourcebookHandler.DeleteEntry)

	// Session routes
	mux.HandleFunc("POST /api/sessions", sessionHandler.CreateSession)
	mux.HandleFunc("GET /api/sessions", sessionHandler.ListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", sessionHandler.GetSession)
	mux.HandleFunc("PATCH /api/sessions/{id}", sessionHandler.UpdateSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", sessionHandler.DeleteSession)

	// Chat turn routes
	mux.HandleFunc("POST /api/sessions/{id}/messages", chatHandler.SendMessage)
	mux.HandleFunc("POST /api/sessions/{id}/stop", chatHandler.Stop)
	mux.HandleFunc("POST /api/sessions/{id}/regenerate", chatHandler.Regenerate)
	mux.HandleFunc("POST /api/sessions/{id}/throttle", chatHandler.Throttle)
	mux.HandleFunc("PATCH /api/sessions/{id}/messages/{mid}", chatHandler.EditMessage)
	mux.HandleFunc("DELETE /api/sessions/{id}/messages/{mid}", chatHandler.DeleteMessage)

	// Streaming route
	mux.HandleFunc("GET /api/sessions/{id}/stream", streamHandler.Stream)

	// Suggestion routes
	mux.HandleFunc("POST /api/chapters/{id}/suggestions", suggestionHandler.Trigger)
	mux.HandleFunc("GET /api/chapters/{id}/suggestions", suggestionHandler.GetState)
	mux.HandleFunc("POST /api/chapters/{id}/suggestions/accept", suggestionHandler.Accept)
	mux.HandleFunc("POST /api/chapters/{id}/suggestions/keyboard", suggestionHandler.Keyboard)

	// Model capabilities route
	mux.HandleFunc("GET /api/models/capabilities", modelsHandler.GetCapabilities)

	// Build middleware chain (applied in reverse order, they wrap each other)
	var h http.Handler = mux
	h = middleware.AuthMiddleware(verifier, logger)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	logger.Info("server listening", "port", cfg.Port)

	// Block until a shutdown signal, then drain: stop accepting
	// requests, flush pending session autosaves, release the pool.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	autosaver.FlushAll(shutdownCtx)

	logger.Info("server stopped")
}
