package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"quizforge-backend/internal/config"
	"quizforge-backend/internal/database"
	"quizforge-backend/internal/handlers"
	"quizforge-backend/internal/middleware"
	"quizforge-backend/internal/repository"
	"quizforge-backend/internal/router"
	"quizforge-backend/internal/services"
	"quizforge-backend/internal/websocket"
	"quizforge-backend/internal/worker"
)

// llmClients lazily builds the provider clients shared by both validator slots.
type llmClients struct {
	cfg     *config.Config
	bedrock *bedrockruntime.Client
	gemini  *services.GeminiClient
}

func (c *llmClients) backend(ctx context.Context, slot config.LLMSlot) (services.LLMBackend, error) {
	params := services.LLMParams{MaxTokens: c.cfg.LLMMaxTokens, Temperature: c.cfg.LLMTemperature}

	switch slot.Provider {
	case config.ProviderGemini:
		if c.gemini == nil {
			client, err := services.NewGeminiClient(ctx, c.cfg.GeminiAPIKey)
			if err != nil {
				return nil, err
			}
			c.gemini = client
		}
		return services.NewGeminiBackend(c.gemini, slot.Name, slot.Model, params), nil
	default:
		if c.bedrock == nil {
			client, err := services.NewBedrockClient(ctx, c.cfg.AWSRegion)
			if err != nil {
				return nil, err
			}
			c.bedrock = client
		}
		return services.NewBedrockBackend(c.bedrock, slot.Name, slot.Model, params), nil
	}
}

func (c *llmClients) Close() {
	if c.gemini != nil {
		c.gemini.Close()
	}
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	setupLogger(cfg)
	log.Info().Str("env", cfg.Env).Msg("starting quizforge backend")

	ctx := context.Background()

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("PostgreSQL connection failed")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL, cfg.RevalidationWorkers)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClients.Close()
	log.Info().Msg("Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, database.Migrations, "migrations"); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	// ──── Step 5: Initialize LLM Validators ────
	clients := &llmClients{cfg: cfg}
	defer clients.Close()

	primary, err := clients.backend(ctx, cfg.PrimaryLLM)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.PrimaryLLM.Provider).Msg("primary validator initialization failed")
	}
	secondary, err := clients.backend(ctx, cfg.SecondaryLLM)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.SecondaryLLM.Provider).Msg("secondary validator initialization failed")
	}
	validator := services.NewValidator(primary, secondary, cfg.LLMTimeout)
	log.Info().
		Str("primary", primary.Name()+"/"+primary.Model()).
		Str("secondary", secondary.Name()+"/"+secondary.Model()).
		Msg("LLM validators initialized")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	questionRepo := repository.NewQuestionRepo(pool)
	quizRepo := repository.NewQuizRepo(pool)
	attemptRepo := repository.NewAttemptRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	authService, err := services.NewAuthService(userRepo, jwtAuth, services.AdminCredentials{
		Username:     cfg.AdminUsername,
		Password:     cfg.AdminPassword,
		PasswordHash: cfg.AdminPasswordHash,
	}, cfg.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("auth service initialization failed")
	}

	events := services.NewRedisEventPublisher(redisClients.Cache)
	sessions := services.NewRedisSessionStore(redisClients.Cache, cfg.SessionTTL)

	questionService := services.NewQuestionService(questionRepo, quizRepo, validator, events)
	quizService := services.NewQuizService(quizRepo)
	attemptService := services.NewAttemptService(attemptRepo, quizRepo, questionRepo, sessions, cfg.RecentAttemptsToAvoid)
	analyticsService := services.NewAnalyticsService(attemptRepo)

	// ──── Step 6: Start Background Workers ────
	revalidationPool := worker.NewPool(redisClients.Cache, questionService, cfg.RevalidationWorkers, 2*cfg.LLMTimeout)
	revalidationPool.Start()

	sweeper := worker.NewAttemptSweeper(attemptRepo, sessions, cfg.SessionTTL, 5*time.Minute)
	sweeper.Start()

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	questionHandler := handlers.NewQuestionHandler(questionService, revalidationPool)
	quizHandler := handlers.NewQuizHandler(quizService)
	attemptHandler := handlers.NewAttemptHandler(attemptService)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, services.AdminEventsChannel, jwtAuth, cfg.FrontendURL)

	// ──── Step 8: Start HTTP Server ────
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	defer authLimiter.Stop()

	r := router.New(
		jwtAuth,
		authLimiter,
		authHandler,
		questionHandler,
		quizHandler,
		attemptHandler,
		analyticsHandler,
		wsHub,
		cfg.FrontendURL,
	)

	// Question writes wait on the validators.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.LLMTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down")
		sweeper.Stop()
		revalidationPool.Stop()
		wsHub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().
		Str("api", fmt.Sprintf("http://localhost:%s/api/v1", cfg.Port)).
		Str("ws", fmt.Sprintf("ws://localhost:%s/api/v1/admin/ws", cfg.Port)).
		Msg("quizforge backend ready")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
	<-done
}
