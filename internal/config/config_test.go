package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// validConfig returns a config that passes Validate() using the mock
// provider so no API key is required.
func validConfig() *Config {
	return &Config{
		Providers:           []string{ProviderMock},
		ModelName:           DefaultGenerativeModel,
		EmbedderModel:       DefaultEmbedderModel,
		VectorDimension:     DefaultVectorDimension,
		SimilarityThreshold: DefaultSimilarityThreshold,
		SessionWindow:       DefaultSessionWindow,
		SessionTimeout:      DefaultSessionTimeout,
		MaxSessions:         DefaultMaxSessions,
		CollaboratorTimeout: DefaultCollaboratorTimeout,
		PostgresHost:        "localhost",
		PostgresPort:        5432,
		PostgresUser:        "guidelines",
		PostgresPassword:    "secret-password",
		PostgresDBName:      "guidelines",
		PostgresSSLMode:     "disable",
	}
}

func TestValidateOK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateNilConfig(t *testing.T) {
	var c *Config
	if err := c.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() = %v, want ErrConfigNil", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"empty providers", func(c *Config) { c.Providers = nil }, ErrInvalidProvider},
		{"unknown provider", func(c *Config) { c.Providers = []string{"claude"} }, ErrInvalidProvider},
		{"empty model", func(c *Config) { c.ModelName = "" }, ErrInvalidModelName},
		{"empty embedder", func(c *Config) { c.EmbedderModel = "" }, ErrInvalidEmbedderModel},
		{"wrong dimension", func(c *Config) { c.VectorDimension = 1536 }, ErrInvalidVectorDimension},
		{"threshold too high", func(c *Config) { c.SimilarityThreshold = 1.5 }, ErrInvalidThreshold},
		{"threshold negative", func(c *Config) { c.SimilarityThreshold = -0.1 }, ErrInvalidThreshold},
		{"zero window", func(c *Config) { c.SessionWindow = 0 }, ErrInvalidSessionWindow},
		{"timeout too short", func(c *Config) { c.SessionTimeout = time.Second }, ErrInvalidSessionTimeout},
		{"empty host", func(c *Config) { c.PostgresHost = "" }, ErrInvalidPostgresHost},
		{"bad port", func(c *Config) { c.PostgresPort = 70000 }, ErrInvalidPostgresPort},
		{"empty db name", func(c *Config) { c.PostgresDBName = "" }, ErrInvalidPostgresDBName},
		{"empty password", func(c *Config) { c.PostgresPassword = "" }, ErrInvalidPostgresPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			if err := c.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPostgresConnectionString(t *testing.T) {
	c := validConfig()
	dsn := c.PostgresConnectionString()

	for _, part := range []string{"host=localhost", "port=5432", "user=guidelines", "dbname=guidelines", "sslmode=disable"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("DSN missing %q: %s", part, dsn)
		}
	}
}

func TestPostgresConnectionStringQuotesPassword(t *testing.T) {
	c := validConfig()
	c.PostgresPassword = "pa ss'word"
	dsn := c.PostgresConnectionString()
	if !strings.Contains(dsn, `password='pa ss\'word'`) {
		t.Errorf("password not quoted correctly: %s", dsn)
	}
}

func TestPostgresURLEncodesCredentials(t *testing.T) {
	c := validConfig()
	c.PostgresPassword = "p@ss/word"
	u := c.PostgresURL()
	if !strings.HasPrefix(u, "postgres://") {
		t.Errorf("unexpected scheme: %s", u)
	}
	if strings.Contains(u, "p@ss/word") {
		t.Errorf("special characters not encoded: %s", u)
	}
}

func TestMarshalJSONMasksPassword(t *testing.T) {
	c := validConfig()
	c.PostgresPassword = "super-secret-value"

	data, err := c.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error: %v", err)
	}
	if strings.Contains(string(data), "super-secret-value") {
		t.Error("password leaked in JSON output")
	}
}

func TestMaskSecret(t *testing.T) {
	if got := maskSecret(""); got != "" {
		t.Errorf("maskSecret(\"\") = %q, want empty", got)
	}
	if got := maskSecret("short"); got != maskedValue {
		t.Errorf("short secret not fully masked: %q", got)
	}
	got := maskSecret("abcdefghijkl")
	if !strings.HasPrefix(got, "ab") || !strings.HasSuffix(got, "kl") {
		t.Errorf("long secret should keep edges: %q", got)
	}
	if strings.Contains(got, "cdefghij") {
		t.Errorf("middle of secret leaked: %q", got)
	}
}
