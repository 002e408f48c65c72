package api

import (
	"context"

	"github.com/quantfolio/guidelines/internal/agent"
	"github.com/quantfolio/guidelines/internal/backfill"
	"github.com/quantfolio/guidelines/internal/extract"
	"github.com/quantfolio/guidelines/internal/ingest"
	"github.com/quantfolio/guidelines/internal/retrieval"
	"github.com/quantfolio/guidelines/internal/session"
	"github.com/quantfolio/guidelines/internal/store"
)

// Pinger reports backend connectivity for readiness probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ingestor runs the document ingestion pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, documentBytes []byte, hints extract.Hints) (*ingest.Result, error)
}

// Backfiller embeds rules that are missing vectors.
type Backfiller interface {
	Run(ctx context.Context, docID string) (*backfill.Report, error)
}

// Searcher runs retrieval queries.
type Searcher interface {
	Search(ctx context.Context, req retrieval.Request) ([]retrieval.Hit, error)
}

// Asker answers conversational questions.
type Asker interface {
	Ask(ctx context.Context, req agent.AskRequest) (*agent.AskResponse, error)
}

// SessionStore is the session backend the API exposes.
type SessionStore = session.Backend

// Catalog is the slice of the record store the catalog endpoints need.
type Catalog interface {
	ListCollections(ctx context.Context) ([]store.Collection, error)
	DeleteCollection(ctx context.Context, collectionID string) error
	Stats(ctx context.Context) (*store.Stats, error)
}
