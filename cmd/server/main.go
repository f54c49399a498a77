package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"golang.org/x/sync/errgroup"

	authpkg "adventure-server/internal/auth"
	"adventure-server/internal/config"
	"adventure-server/internal/content"
	ws "adventure-server/internal/delivery/websocket"
	"adventure-server/internal/generator"
	"adventure-server/internal/repository"
	"adventure-server/internal/session"
	"adventure-server/internal/telemetry"
)

func main() {
	// Загрузка переменных окружения
	if err := godotenv.Load(); err != nil {
		// Логируем как предупреждение, т.к. в production .env может не использоваться
		fmt.Printf("Warning: could not load .env file: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	initLogger(cfg)

	// Контентный пак: темы, повествовательные элементы, вопросы
	contentRepo, err := content.Load(cfg.Content.PackPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Content.PackPath).Msg("failed to load content pack")
	}
	log.Info().Int("questions", contentRepo.AvailableQuestions()).Msg("content pack loaded")

	// Redis-хранилище состояний
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect to redis")
	}
	cancelPing()
	defer redisClient.Close()
	log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connection established")

	store := repository.NewRedisStateRepository(redisClient, cfg.Redis.StateTTL, log.Logger)

	// AI клиент: потоковый текст и изображения
	aiClient, err := generator.NewClient(generator.Config{
		APIKey:     cfg.AI.APIKey,
		BaseURL:    cfg.AI.BaseURL,
		Model:      cfg.AI.Model,
		ImageModel: cfg.AI.ImageModel,
		Timeout:    cfg.AI.Timeout,
		MaxRetries: cfg.AI.MaxAttempts,
	}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create AI client")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sink := telemetry.NewSink(log.Logger, registry)

	var identity authpkg.IdentityResolver = authpkg.Anonymous{}
	if cfg.JWT.Secret != "" {
		identity = authpkg.NewJWTResolver(cfg.JWT.Secret, log.Logger)
		log.Info().Msg("JWT identity resolution enabled")
	}

	orchestrator := session.NewOrchestrator(session.Options{
		DefaultStoryLength: cfg.Session.DefaultStoryLength,
		MaxStoryLength:     cfg.Session.MaxStoryLength,
		ImageTimeout:       cfg.AI.ImageTimeout,
		ImagesEnabled:      cfg.AI.ImagesOn,
	}, contentRepo, aiClient, aiClient, aiClient, store, sink, log.Logger)

	wsHandler := ws.NewHandler(orchestrator, identity, log.Logger)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/healthz", healthHandler)
	router.HEAD("/healthz", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/ws", wsHandler.Handle)

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Int("port", cfg.Server.Port).Msg("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("server stopped")
}

// initLogger настраивает глобальный логгер
func initLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.With().Caller().Logger()

	// В режиме разработки используем более читаемый вывод
	if cfg.Environment != "production" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Caller().Logger()
	}

	logLevel := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logLevel = lvl
	}
	zerolog.SetGlobalLevel(logLevel)
}
