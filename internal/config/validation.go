package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Provider priority list
	if len(c.Providers) == 0 {
		return fmt.Errorf("%w: providers list cannot be empty", ErrInvalidProvider)
	}
	for _, p := range c.Providers {
		if p != ProviderGemini && p != ProviderMock {
			return fmt.Errorf("%w: %q, must be one of: gemini, mock", ErrInvalidProvider, p)
		}
	}

	// GEMINI_API_KEY is required only when the gemini provider is listed.
	if slices.Contains(c.Providers, ProviderGemini) && os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required when the gemini provider is enabled",
			ErrMissingAPIKey)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// The rule.embedding column is vector(768); any other dimension would
	// require a schema migration and a full re-backfill.
	if c.VectorDimension != DefaultVectorDimension {
		return fmt.Errorf("%w: schema is fixed at %d dimensions, got %d",
			ErrInvalidVectorDimension, DefaultVectorDimension, c.VectorDimension)
	}

	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: must be between 0.0 and 1.0, got %.2f",
			ErrInvalidThreshold, c.SimilarityThreshold)
	}

	if c.SessionWindow < 1 || c.SessionWindow > 1000 {
		return fmt.Errorf("%w: must be between 1 and 1000, got %d",
			ErrInvalidSessionWindow, c.SessionWindow)
	}
	if c.SessionTimeout < time.Minute || c.SessionTimeout > 24*time.Hour {
		return fmt.Errorf("%w: must be between 1m and 24h, got %s",
			ErrInvalidSessionTimeout, c.SessionTimeout)
	}

	// PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgresPassword)
	}
	if c.PostgresPassword == "guidelines_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"warning", "change postgres_password for production deployments")
	}

	return nil
}
