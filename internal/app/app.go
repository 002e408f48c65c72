// Package app wires configuration, storage, model providers and
// services into a running application. Setup is the single composition
// point; everything else receives its dependencies explicitly.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfolio/guidelines/db"
	"github.com/quantfolio/guidelines/internal/agent"
	"github.com/quantfolio/guidelines/internal/answer"
	"github.com/quantfolio/guidelines/internal/backfill"
	"github.com/quantfolio/guidelines/internal/config"
	"github.com/quantfolio/guidelines/internal/extract"
	"github.com/quantfolio/guidelines/internal/ingest"
	"github.com/quantfolio/guidelines/internal/llm"
	"github.com/quantfolio/guidelines/internal/retrieval"
	"github.com/quantfolio/guidelines/internal/session"
	"github.com/quantfolio/guidelines/internal/store"
)

// App holds the wired application.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Pool     *pgxpool.Pool
	Store    *store.Store
	Provider llm.Provider
	Embedder ai.Embedder
	Sessions *session.Memory

	Ingest    *ingest.Coordinator
	Backfill  *backfill.Service
	Retrieval *retrieval.Engine
	Agent     *agent.Agent

	cancel context.CancelFunc
}

// Setup runs migrations, connects the store, selects the model provider
// and builds every service. Call Close to release resources.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := store.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a.Pool = pool
	a.Store = store.New(pool, logger)

	provider, err := llm.Select(ctx, cfg.Providers, cfg.ModelName, logger)
	if err != nil {
		return nil, fmt.Errorf("selecting model provider: %w", err)
	}
	a.Provider = provider
	a.Embedder = provideEmbedder(ctx, cfg, provider, logger)

	a.Sessions = session.NewMemory(logger,
		session.WithWindow(cfg.SessionWindow),
		session.WithIdleTimeout(cfg.SessionTimeout),
		session.WithMaxSessions(cfg.MaxSessions),
	)
	sweepCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.Sessions.StartSweeper(sweepCtx, cfg.SessionTimeout/2)

	extractor := extract.NewModelExtractor(provider, logger)
	a.Ingest = ingest.New(extractor, a.Store, logger,
		ingest.WithExtractTimeout(cfg.CollaboratorTimeout))
	a.Backfill = backfill.New(a.Store, a.Embedder, logger)
	a.Retrieval = retrieval.New(a.Store, a.Embedder, logger,
		retrieval.WithDefaultThreshold(cfg.SimilarityThreshold))
	a.Agent = agent.New(a.Retrieval, answer.NewModelSummarizer(provider, logger), a.Sessions, logger,
		agent.WithPlanner(agent.NewModelPlanner(provider, logger)))

	logger.Info("application ready",
		"provider", provider.Name(),
		"model", cfg.ModelName,
		"embedder", cfg.EmbedderModel)
	return a, nil
}

// provideEmbedder returns the embedder matching the selected provider:
// the Gemini embedding model when the gemini provider won, otherwise an
// offline deterministic embedder.
func provideEmbedder(ctx context.Context, cfg *config.Config, provider llm.Provider, logger *slog.Logger) ai.Embedder {
	if provider.Name() == llm.NameGemini {
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g != nil {
			if embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel); embedder != nil {
				return embedder
			}
		}
		logger.Warn("gemini embedder unavailable, using offline embedder",
			"embedder_model", cfg.EmbedderModel)
	}
	return &llm.MockEmbedder{Dimension: cfg.VectorDimension}
}

// Close releases the connection pool and stops background goroutines.
// Safe to call on a partially initialized App.
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
