// Package app wires the application together: configuration, storage,
// Genkit, the knowledge store, tools, and the chat agent.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rowanjacobson/rag-chatbot-enhanced/db"
	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/chat"
	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/config"
	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/course"
	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/ingest"
	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/knowledge"
	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/session"
	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/tools"
)

// App is the core application container. All fields are ready to use after
// Setup returns; call Close to release resources.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Knowledge *knowledge.Store
	Sessions  *session.Store
	Agent     *chat.Agent
	Ingester  *ingest.Ingester
}

// Setup creates and initializes the application. On failure everything
// already initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := providePool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, fmt.Errorf("initializing genkit with googleai plugin")
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	a.Knowledge = knowledge.New(knowledge.NewPostgresQuerier(pool), embedder, cfg.MaxResults, logger)
	a.Sessions = session.NewStore(cfg.MaxHistory)

	search, err := tools.NewSearch(a.Knowledge, logger)
	if err != nil {
		return nil, fmt.Errorf("creating search tools: %w", err)
	}
	registered, err := tools.Register(g, search)
	if err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	a.Agent, err = chat.New(chat.Config{
		Genkit:          g,
		Sessions:        a.Sessions,
		Logger:          logger,
		Tools:           registered,
		ModelName:       cfg.FullModelName(),
		MaxToolRounds:   cfg.MaxToolRounds,
		Temperature:     float64(cfg.Temperature),
		MaxOutputTokens: cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat agent: %w", err)
	}

	parser := &course.Parser{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap}
	a.Ingester, err = ingest.New(parser, a.Knowledge, logger)
	if err != nil {
		return nil, fmt.Errorf("creating ingester: %w", err)
	}

	logger.Info("application initialized",
		"model", cfg.FullModelName(),
		"embedder", cfg.EmbedderModel)

	return a, nil
}

// providePool runs migrations and creates the PostgreSQL connection pool.
func providePool(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.DBPool != nil {
		a.DBPool.Close()
	}

	return nil
}
