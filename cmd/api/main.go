package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zhouzirui/loan-coach/backend/internal/config"
	"github.com/zhouzirui/loan-coach/backend/internal/handler"
	"github.com/zhouzirui/loan-coach/backend/internal/logger"
	"github.com/zhouzirui/loan-coach/backend/internal/middleware"
	"github.com/zhouzirui/loan-coach/backend/internal/model/conversation"
	"github.com/zhouzirui/loan-coach/backend/internal/model/scenario"
	"github.com/zhouzirui/loan-coach/backend/internal/service/ai"
	"github.com/zhouzirui/loan-coach/backend/internal/service/chat"
	"github.com/zhouzirui/loan-coach/backend/internal/service/feedback"
	"github.com/zhouzirui/loan-coach/backend/internal/storage/mongostore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("failed to initialize logger")
	}
	if envErr != nil {
		log.Warn().Err(envErr).Msg("failed to load .env file, continuing with system environment variables only")
	}

	// Initialize conversation store
	store, closeStore, err := openStore(ctx, cfg.Mongo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize conversation store")
	}
	defer closeStore()

	// Initialize LLM backend; missing credentials degrade to stock replies
	var gen ai.Generator
	if cfg.LLM.Enabled() {
		gen, err = ai.NewGenerator(ctx, cfg.LLM)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize LLM backend, continuing with fallback replies")
			gen = nil
		} else {
			log.Info().Str("provider", cfg.LLM.Provider).Str("model", cfg.LLM.Model).Msg("LLM backend initialized")
		}
	} else {
		log.Warn().Str("provider", cfg.LLM.Provider).Msg("LLM credentials not configured, every turn will use fallback replies")
	}

	scenarios := scenario.NewMemoryStore(scenario.Seed())
	prompts := ai.NewPromptBuilder(ai.PromptTemplates{Easy: cfg.Prompts.Easy, Hard: cfg.Prompts.Hard}, log)

	chatSvc, err := chat.NewService(ctx, store, scenarios, prompts, gen, chat.Config{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize chat service")
	}
	feedbackSvc, err := feedback.NewService(ctx, store, gen, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize feedback service")
	}

	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TrustGatewayHeaders, log)
	if cfg.Auth.JWTSecret == "" && !cfg.Auth.TrustGatewayHeaders {
		log.Warn().Msg("no authentication source configured, all conversation requests will be rejected")
	}

	router := handler.NewRouter(handler.Deps{
		Scenarios:     scenarios,
		Chat:          chatSvc,
		Feedback:      feedbackSvc,
		Auth:          auth,
		AllowedOrigin: cfg.Server.CORSAllowedOrigin,
		ExposeErrors:  !cfg.Production(),
		Log:           log,
	})

	startServer(ctx, cfg.Server, router, log)
}

// openStore 连接 MongoDB；未配置 MONGO_URI 时退回内存存储。
func openStore(ctx context.Context, cfg config.MongoConfig, log zerolog.Logger) (conversation.Store, func(), error) {
	if !cfg.Enabled() {
		log.Warn().Msg("MONGO_URI not set, conversations are kept in memory")
		return conversation.NewMemoryStore(), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, err
	}
	disconnect := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to disconnect from MongoDB")
		}
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		disconnect()
		return nil, nil, err
	}

	store := mongostore.New(client.Database(cfg.Database).Collection(cfg.Collection))
	if err := store.EnsureIndexes(connectCtx); err != nil {
		disconnect()
		return nil, nil, err
	}

	log.Info().Str("database", cfg.Database).Str("collection", cfg.Collection).Msg("connected to MongoDB")
	return store, disconnect, nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log zerolog.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("loan coach backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Error().Err(err).Msg("server error")
		return
	}
	log.Info().Msg("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
