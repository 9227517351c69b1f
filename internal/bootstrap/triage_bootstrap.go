// Package bootstrap wires adapters and services into a running server.
package bootstrap

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"triage_server/adapter/in/http"
	"triage_server/adapter/out/mongodb"
	"triage_server/adapter/out/provider/gmail"
	"triage_server/adapter/out/realtime"
	"triage_server/config"
	"triage_server/core/agent/llm"
	"triage_server/core/agent/rag"
	"triage_server/core/port/out"
	"triage_server/core/service/approval"
	"triage_server/core/service/ingest"
	"triage_server/core/service/search"
)

// Dependencies holds the wired adapter and service graph.
type Dependencies struct {
	Mongo *mongo.Client

	EmailRepo    *mongodb.EmailAdapter
	ResponseRepo *mongodb.ResponseAdapter
	ProgressRepo *mongodb.ProgressAdapter

	LLM      *llm.Client
	Embedder *rag.Embedder
	SSE      *realtime.SSEAdapter
	Provider out.MailboxProvider

	Processor       *ingest.Processor
	SearchService   *search.Service
	ApprovalService *approval.Service
}

// NewDependencies builds the full dependency graph. The returned cleanup
// closes external connections.
func NewDependencies(cfg *config.Config, log zerolog.Logger) (*Dependencies, func(), error) {
	mongoClient, err := mongodb.NewClient(cfg.MongoDBURL)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			log.Error().Err(err).Msg("failed to disconnect mongodb")
		}
	}

	db := mongoClient.Database(cfg.MongoDBName)
	emailRepo := mongodb.NewEmailAdapter(db)
	responseRepo := mongodb.NewResponseAdapter(db)
	progressRepo := mongodb.NewProgressAdapter(db)

	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := emailRepo.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to ensure email indexes")
		}
		if err := responseRepo.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to ensure response indexes")
		}
		if err := progressRepo.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to ensure progress indexes")
		}
	}

	llmClient := llm.NewClient(llm.ClientConfig{
		APIKey:         cfg.LLMAPIKey,
		BaseURL:        cfg.LLMBaseURL,
		Models:         cfg.LLMModels,
		EmbeddingModel: cfg.EmbedModel,
		MaxTokens:      cfg.LLMMaxTokens,
		Temperature:    cfg.LLMTemperature,
		CallTimeout:    time.Duration(cfg.LLMTimeoutSec) * time.Second,
	}, log)

	embedder := rag.NewEmbedder(llmClient, log)
	sse := realtime.NewSSEAdapter(log)

	var provider out.MailboxProvider
	if cfg.GmailConfigured() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		gmailProvider, err := gmail.NewProvider(ctx, gmail.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RefreshToken: cfg.GmailRefreshToken,
		})
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("gmail provider unavailable, sync disabled")
		} else {
			provider = gmailProvider
			log.Info().Str("mailbox", gmailProvider.Email()).Msg("gmail provider connected")
		}
	}

	processor := ingest.NewProcessor(emailRepo, progressRepo, llmClient, embedder, sse, log)
	searchService := search.NewService(emailRepo, llmClient, embedder, log)
	approvalService := approval.NewService(responseRepo, emailRepo, llmClient, log)

	return &Dependencies{
		Mongo:           mongoClient,
		EmailRepo:       emailRepo,
		ResponseRepo:    responseRepo,
		ProgressRepo:    progressRepo,
		LLM:             llmClient,
		Embedder:        embedder,
		SSE:             sse,
		Provider:        provider,
		Processor:       processor,
		SearchService:   searchService,
		ApprovalService: approvalService,
	}, cleanup, nil
}

// NewAPI builds the fiber application with all routes registered.
func NewAPI(cfg *config.Config, log zerolog.Logger) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: cfg.IsProduction(),
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,

		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 64 * 1024 * 1024,

		StreamRequestBody: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(requestLogger(log))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Request-ID",
		MaxAge:       86400,
	}))

	healthHandler := http.NewHealthHandler(deps.Mongo, deps.LLM.Available)
	healthHandler.Register(app)

	api := app.Group("/api/v1")

	syncMax := cfg.SyncMaxMessages
	http.NewUploadHandler(deps.Processor, deps.ProgressRepo, deps.SSE, deps.Provider, syncMax, log).Register(api)
	http.NewEmailHandler(deps.EmailRepo, log).Register(api)
	http.NewSearchHandler(deps.SearchService, log).Register(api)
	http.NewApprovalHandler(deps.ApprovalService, log).Register(api)

	return app, cleanup, nil
}

// requestLogger logs one line per request with latency and status.
func requestLogger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		event := log.Info()
		if status >= 500 {
			event = log.Error()
		} else if status >= 400 {
			event = log.Warn()
		}
		event.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
			Msg("request")

		return err
	}
}
