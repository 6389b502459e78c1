package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/themobileprof/kernelchat/internal/api"
	"github.com/themobileprof/kernelchat/internal/api/middleware"
	"github.com/themobileprof/kernelchat/internal/chat"
	"github.com/themobileprof/kernelchat/internal/circuitbreaker"
	"github.com/themobileprof/kernelchat/internal/classifier"
	"github.com/themobileprof/kernelchat/internal/config"
	"github.com/themobileprof/kernelchat/internal/kernel"
	"github.com/themobileprof/kernelchat/internal/memory"
	"github.com/themobileprof/kernelchat/internal/metrics"
	"github.com/themobileprof/kernelchat/internal/plugins"
	"github.com/themobileprof/kernelchat/internal/prompt"
	"github.com/themobileprof/kernelchat/internal/store"
	"github.com/themobileprof/kernelchat/internal/ws"
	"github.com/themobileprof/kernelchat/pkg/openaicompat"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize plugin data
	seed, err := store.LoadSeed(cfg.SeedFile, time.Now())
	if err != nil {
		log.Fatalf("Failed to load seed data: %v", err)
	}
	dataStore, err := openStore(cfg, seed)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer dataStore.Close()

	// Initialize kernel and plugins
	k := kernel.New()
	k.OnInvoke(metrics.ObservePlugin)
	news := plugins.NewNewsReader(cfg.NewsFeedURL, &http.Client{Timeout: 15 * time.Second})
	if err := plugins.Register(k, dataStore, news); err != nil {
		log.Fatalf("Failed to register plugins: %v", err)
	}
	log.Printf("✅ Registered %d plugins", len(k.Plugins()))

	// Initialize model client
	provider := openaicompat.NewService(openaicompat.NewHTTPClient(openaicompat.Config{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	}))
	breaker := circuitbreaker.New(circuitbreaker.Config{
		MaxFailures:   5,
		ResetTimeout:  30 * time.Second,
		OnStateChange: logBreaker,
	})
	log.Printf("✅ Model server: %s (model %s)", cfg.LLMBaseURL, cfg.LLMModel)

	// Initialize chat engine (shared between HTTP and WebSocket)
	chatEngine := chat.NewEngine(
		provider,
		k,
		prompt.NewBuilder(20), // Keep last 20 turns
		classifier.NewClassifier(),
		chat.Config{
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
			Breaker: breaker,
		},
	)

	// Initialize handlers
	demoHandler := api.NewDemoHandler(chatEngine)
	pluginHandler := api.NewPluginHandler(k)
	sessions := memory.NewManager(20) // Keep last 20 turns per session
	chatHandler := ws.NewChatHandler(chatEngine, sessions, 30)

	// Setup Gin router
	router := gin.Default()
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS(cfg.CORSOrigins...))
	router.Use(middleware.SecurityHeaders())
	limiter := middleware.NewRateLimiter(middleware.LimiterConfig{PerMinute: cfg.RateLimitPerMinute})
	router.Use(limiter.Middleware())

	api.RegisterHealth(router, breaker, cfg.LLMModel)

	apiGroup := router.Group("/api")
	demoHandler.RegisterRoutes(apiGroup)
	pluginHandler.RegisterRoutes(apiGroup)

	// WebSocket chat route
	router.GET("/ws/chat", chatHandler.HandleChat)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%s", cfg.Port)
		log.Printf("📝 API endpoints:")
		log.Printf("   GET    /health")
		log.Printf("   GET    /metrics")
		log.Printf("   GET    /api/demos")
		log.Printf("   POST   /api/demos/:demo")
		log.Printf("   POST   /api/complete")
		log.Printf("   GET    /api/plugins")
		log.Printf("   POST   /api/plugins/:plugin/:function")
		log.Printf("   WS     /ws/chat?demo=")
		log.Printf("")
		log.Printf("Press Ctrl+C to stop")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	limiter.Stop()

	log.Println("Server exited")
}

// openStore selects Postgres when DATABASE_URL is set, memory otherwise
func openStore(cfg *config.Config, seed *store.Seed) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Println("✅ Using in-memory store")
		return store.NewMemoryStore(seed), nil
	}

	db, err := store.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	pg := store.NewPostgresStore(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := pg.Migrate(ctx, seed); err != nil {
		pg.Close()
		return nil, err
	}
	log.Println("✅ Database connected")
	return pg, nil
}

func logBreaker(from, to circuitbreaker.State) {
	metrics.ObserveBreaker(from, to)
	log.Printf("⚠️  Circuit breaker: %s -> %s", from, to)
}
