package container

import (
	"context"
	"fmt"

	"portfolio-api/internal/config"
	"portfolio-api/internal/repository"
	"portfolio-api/internal/service"
	"portfolio-api/internal/service/knowledge"
	"portfolio-api/internal/service/llm"
	"portfolio-api/pkg/database"
	"portfolio-api/pkg/logger"
	"portfolio-api/pkg/redis"
)

// Container holds all application dependencies. Everything is constructed
// once at startup; nothing initializes lazily on the request path.
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	RedisClient *redis.Client
	Database    *database.PostgresDB              // nil when DATABASE_URL is unset
	Archive     repository.ConversationRepository // nil when DATABASE_URL is unset

	Failover *llm.Failover

	ChatService         service.ChatService
	SessionService      service.SessionService
	RateLimitService    service.RateLimitService
	SessionLimitService service.SessionLimitService
	QuotaService        service.QuotaService
}

// New creates a new dependency injection container. Redis and both LLM
// providers are required; the archive database, knowledge base, semantic
// cache and mail delivery are optional and degrade to disabled.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}
	log.Info("Redis client initialized")

	var db *database.PostgresDB
	if cfg.DatabaseURL != "" {
		db, err = database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		log.Info("Database connection established")
	} else {
		log.Info("DATABASE_URL not configured, conversation archiving disabled")
	}

	opts := llm.Options{Temperature: cfg.LLMTemperature, MaxTokens: cfg.LLMMaxTokens}

	primary, err := llm.NewGeminiProvider(cfg.GeminiAPIKey, cfg.GeminiModel, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize primary provider: %w", err)
	}
	backup, err := llm.NewGroqProvider(cfg.GroqAPIKey, cfg.GroqModel, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize backup provider: %w", err)
	}
	failover := llm.NewFailover(primary, backup, log)

	var embedder llm.Embedder
	if cfg.OpenAIAPIKey != "" {
		embedder, err = llm.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
	} else {
		log.Info("OPENAI_API_KEY not configured, knowledge search and semantic cache disabled")
	}

	var searcher knowledge.Searcher
	if cfg.PineconeAPIKey != "" && embedder != nil {
		pineconeSearcher, err := knowledge.NewPineconeSearcher(cfg.PineconeAPIKey, cfg.PineconeIndex, embedder, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize knowledge search: %w", err)
		}
		searcher = pineconeSearcher
	}

	var cacheEmbedder llm.Embedder
	if cfg.SemanticCacheEnabled {
		cacheEmbedder = embedder
	}

	validator := service.NewValidatorService(cfg.MaxMessageLength, log)
	rateLimiter := service.NewRateLimitService(redisClient, log, cfg.RateLimitPerMinute, cfg.RateLimitPerHour, cfg.RateLimitPerDay)
	sessionLimit := service.NewSessionLimitService(redisClient, log, cfg.SessionMessageLimit)
	quota := service.NewQuotaService(redisClient, log, cfg.DailyQuotaLimit)
	sessions := service.NewSessionService(redisClient, log, cfg.SessionRetentionHours)
	cache := service.NewCacheService(redisClient, log, cacheEmbedder, cfg.CacheSimilarityThreshold, cfg.CacheTTLHours)
	notifier := service.NewNotificationService(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.NotifyEmail, cfg.FromEmail, backup, log)

	var archive repository.ConversationRepository
	if db != nil {
		archive = repository.NewConversationRepository(db)
	}

	chatService := service.NewChatService(
		validator,
		rateLimiter,
		sessionLimit,
		quota,
		sessions,
		cache,
		notifier,
		failover,
		searcher,
		archive,
		log,
		cfg.KnowledgeTopK,
	)

	return &Container{
		Config:              cfg,
		Logger:              log,
		RedisClient:         redisClient,
		Database:            db,
		Archive:             archive,
		Failover:            failover,
		ChatService:         chatService,
		SessionService:      sessions,
		RateLimitService:    rateLimiter,
		SessionLimitService: sessionLimit,
		QuotaService:        quota,
	}, nil
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// GetRedisClient returns the Redis client
func (c *Container) GetRedisClient() *redis.Client {
	return c.RedisClient
}

// GetChatService returns the chat pipeline
func (c *Container) GetChatService() service.ChatService {
	return c.ChatService
}
