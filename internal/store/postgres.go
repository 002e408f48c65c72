// Package store implements the vector-indexed record store: durable,
// transactional persistence of collections, documents and rules with a
// similarity query primitive over the rule embedding column.
//
// All multi-row writes are transactional; callers never observe a
// half-replaced rule set. Read operations never fail on "not found" —
// they return empty results.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// foreign_key_violation, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const pgErrForeignKeyViolation = "23503"

// Store manages collections, documents and rules in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines; all mutation
// goes through its transactional operations.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPool creates a pgx connection pool with pgvector type support
// registered on every connection.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// New creates a new Store. logger may be nil, in which case the default
// slog logger is used.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// UpsertCollection inserts a collection or updates its display name.
// Idempotent: repeat calls with the same key succeed.
func (s *Store) UpsertCollection(ctx context.Context, id, name string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO collection (collection_id, name)
		VALUES ($1, $2)
		ON CONFLICT (collection_id) DO UPDATE SET name = EXCLUDED.name`,
		id, name)
	if err != nil {
		return fmt.Errorf("failed to upsert collection %q: %w", id, err)
	}
	s.logger.Debug("upserted collection", "collection_id", id)
	return nil
}

// UpsertDocument inserts or replaces document metadata. Returns
// ErrReferentialIntegrity if the referenced collection does not exist.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO document (doc_id, collection_id, name, effective_date, digest, ingested_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (doc_id) DO UPDATE SET
			collection_id  = EXCLUDED.collection_id,
			name           = EXCLUDED.name,
			effective_date = EXCLUDED.effective_date,
			digest         = EXCLUDED.digest,
			ingested_at    = now()`,
		doc.ID, doc.CollectionID, doc.Name, doc.EffectiveDate, nullable(doc.Digest))
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: document %q references unknown collection %q",
				ErrReferentialIntegrity, doc.ID, doc.CollectionID)
		}
		return fmt.Errorf("failed to upsert document %q: %w", doc.ID, err)
	}
	s.logger.Debug("upserted document", "doc_id", doc.ID, "collection_id", doc.CollectionID)
	return nil
}

// ReplaceRulesForDocument atomically deletes every rule belonging to the
// document and inserts the supplied rule set, each with a NULL embedding.
// Delete and insert run in one transaction: concurrent readers observe
// either the old complete set or the new complete set, never a partial
// state.
func (s *Store) ReplaceRulesForDocument(ctx context.Context, docID, collectionID string, rules []Rule) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op after commit.
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", err)
		}
	}()

	tag, err := tx.Exec(ctx, `DELETE FROM rule WHERE doc_id = $1`, docID)
	if err != nil {
		return fmt.Errorf("failed to delete rules for document %q: %w", docID, err)
	}
	deleted := tag.RowsAffected()

	for i, r := range rules {
		_, err := tx.Exec(ctx, `
			INSERT INTO rule (collection_id, rule_id, doc_id, part, section, subsection,
			                  body, page, provenance, structured_data, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULL)`,
			collectionID, r.RuleID, docID,
			nullable(r.Part), nullable(r.Section), nullable(r.Subsection),
			r.Body, nullableInt(r.Page), nullable(r.Provenance), r.StructuredData)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: rule %q references unknown collection or document",
					ErrReferentialIntegrity, r.RuleID)
			}
			return fmt.Errorf("failed to insert rule %d (%q): %w", i, r.RuleID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit rule replacement: %w", err)
	}

	s.logger.Debug("replaced rules for document",
		"doc_id", docID, "deleted", deleted, "inserted", len(rules))
	return nil
}

// FindRulesMissingEmbedding returns up to limit rules whose embedding is
// NULL, optionally scoped to one document, ordered by (collection_id,
// rule_id). The after pair is a keyset cursor: only rules strictly past
// it are returned, so callers can page through the NULL set without
// refetching rules they already attempted. Empty cursor starts at the
// beginning.
func (s *Store) FindRulesMissingEmbedding(ctx context.Context, limit int, docID, afterCollection, afterRule string) ([]Rule, error) {
	query := `
		SELECT r.collection_id, r.rule_id, r.doc_id, r.part, r.section, r.subsection,
		       r.body, r.page, r.provenance, r.structured_data, c.name
		FROM rule r
		JOIN collection c ON c.collection_id = r.collection_id
		WHERE r.embedding IS NULL
		  AND (r.collection_id, r.rule_id) > ($2, $3)`
	args := []any{limit, afterCollection, afterRule}
	if docID != "" {
		query += ` AND r.doc_id = $4`
		args = append(args, docID)
	}
	query += ` ORDER BY r.collection_id, r.rule_id LIMIT $1`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find rules missing embedding: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	return rules, nil
}

// CountRulesMissingEmbedding reports how many rules still have a NULL
// embedding, optionally scoped to one document.
func (s *Store) CountRulesMissingEmbedding(ctx context.Context, docID string) (int, error) {
	query := `SELECT count(*) FROM rule WHERE embedding IS NULL`
	var args []any
	if docID != "" {
		query += ` AND doc_id = $1`
		args = append(args, docID)
	}

	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rules missing embedding: %w", err)
	}
	return n, nil
}

// SetEmbedding writes the embedding vector for a single rule. Rejects
// vectors whose length differs from VectorDimension. A rule deleted
// concurrently (e.g. by a reingestion) makes this a silent no-op.
func (s *Store) SetEmbedding(ctx context.Context, collectionID, ruleID string, vector []float32) error {
	if len(vector) != VectorDimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), VectorDimension)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE rule SET embedding = $1
		WHERE collection_id = $2 AND rule_id = $3`,
		pgvector.NewVector(vector), collectionID, ruleID)
	if err != nil {
		return fmt.Errorf("failed to set embedding for %s/%s: %w", collectionID, ruleID, err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Debug("embedding target gone, skipping", "collection_id", collectionID, "rule_id", ruleID)
	}
	return nil
}

// SimilaritySearch returns the topK rules ordered by ascending cosine
// distance to the query vector, restricted to rows with a non-null
// embedding, optionally filtered to one collection. Ties are broken by
// rule key for determinism.
func (s *Store) SimilaritySearch(ctx context.Context, queryVector []float32, topK int, collectionID string) ([]SearchHit, error) {
	if len(queryVector) != VectorDimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(queryVector), VectorDimension)
	}

	query := `
		SELECT r.collection_id, r.rule_id, r.doc_id, r.part, r.section, r.subsection,
		       r.body, r.page, r.provenance, r.structured_data, c.name,
		       1 - (r.embedding <=> $1) AS similarity
		FROM rule r
		JOIN collection c ON c.collection_id = r.collection_id
		WHERE r.embedding IS NOT NULL`
	args := []any{pgvector.NewVector(queryVector), topK}
	if collectionID != "" {
		query += ` AND r.collection_id = $3`
		args = append(args, collectionID)
	}
	query += ` ORDER BY r.embedding <=> $1, r.collection_id, r.rule_id LIMIT $2`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var hit SearchHit
		var err error
		hit.Rule, err = scanRuleFn(rows, &hit.Similarity)
		if err != nil {
			return nil, err
		}
		hit.Rule.HasEmbedding = true
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}
	return hits, nil
}

// TextSearch performs a deterministic case-insensitive substring match
// over rule bodies, optionally filtered to one collection. Results are
// ordered by rule key; Similarity is zero for every hit.
func (s *Store) TextSearch(ctx context.Context, queryText, collectionID string, limit int) ([]SearchHit, error) {
	query := `
		SELECT r.collection_id, r.rule_id, r.doc_id, r.part, r.section, r.subsection,
		       r.body, r.page, r.provenance, r.structured_data, c.name,
		       r.embedding IS NOT NULL
		FROM rule r
		JOIN collection c ON c.collection_id = r.collection_id
		WHERE r.body ILIKE '%' || $1 || '%'`
	args := []any{queryText, limit}
	if collectionID != "" {
		query += ` AND r.collection_id = $3`
		args = append(args, collectionID)
	}
	query += ` ORDER BY r.collection_id, r.rule_id LIMIT $2`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("text search failed: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var hit SearchHit
		var hasEmbedding bool
		rule, err := scanRuleExtra(rows, &hasEmbedding)
		if err != nil {
			return nil, err
		}
		rule.HasEmbedding = hasEmbedding
		hit.Rule = rule
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}
	return hits, nil
}

// GetDocument returns a document by ID, or nil when absent.
func (s *Store) GetDocument(ctx context.Context, docID string) (*Document, error) {
	var doc Document
	var digest *string
	err := s.pool.QueryRow(ctx, `
		SELECT doc_id, collection_id, name, effective_date, digest, ingested_at
		FROM document WHERE doc_id = $1`, docID).
		Scan(&doc.ID, &doc.CollectionID, &doc.Name, &doc.EffectiveDate, &digest, &doc.IngestedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %q: %w", docID, err)
	}
	if digest != nil {
		doc.Digest = *digest
	}
	return &doc, nil
}

// ListCollections returns all collections ordered by ID.
func (s *Store) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT collection_id, name, created_at
		FROM collection ORDER BY collection_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var collections []Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read collections: %w", err)
	}
	return collections, nil
}

// DeleteCollection removes a collection and, via ON DELETE CASCADE, all
// of its documents and rules. Idempotent.
func (s *Store) DeleteCollection(ctx context.Context, collectionID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM collection WHERE collection_id = $1`, collectionID)
	if err != nil {
		return fmt.Errorf("failed to delete collection %q: %w", collectionID, err)
	}
	s.logger.Debug("deleted collection", "collection_id", collectionID, "existed", tag.RowsAffected() > 0)
	return nil
}

// Stats returns store-level counts for operational visibility.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM collection),
			(SELECT count(*) FROM document),
			(SELECT count(*) FROM rule),
			(SELECT count(*) FROM rule WHERE embedding IS NULL)`).
		Scan(&st.Collections, &st.Documents, &st.Rules, &st.RulesMissingEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	return &st, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// scanRule scans the 11-column rule projection (without similarity).
func scanRule(rows pgx.Rows) (Rule, error) {
	return scanRuleInto(rows, nil, nil)
}

// scanRuleFn scans the rule projection followed by a similarity column.
func scanRuleFn(rows pgx.Rows, similarity *float64) (Rule, error) {
	return scanRuleInto(rows, similarity, nil)
}

// scanRuleExtra scans the rule projection followed by a boolean column.
func scanRuleExtra(rows pgx.Rows, extra *bool) (Rule, error) {
	return scanRuleInto(rows, nil, extra)
}

func scanRuleInto(rows pgx.Rows, similarity *float64, extra *bool) (Rule, error) {
	var r Rule
	var part, section, subsection, provenance *string
	var page *int

	dest := []any{
		&r.CollectionID, &r.RuleID, &r.DocID, &part, &section, &subsection,
		&r.Body, &page, &provenance, &r.StructuredData, &r.CollectionName,
	}
	if similarity != nil {
		dest = append(dest, similarity)
	}
	if extra != nil {
		dest = append(dest, extra)
	}

	if err := rows.Scan(dest...); err != nil {
		return Rule{}, fmt.Errorf("failed to scan rule: %w", err)
	}

	if part != nil {
		r.Part = *part
	}
	if section != nil {
		r.Section = *section
	}
	if subsection != nil {
		r.Subsection = *subsection
	}
	if provenance != nil {
		r.Provenance = *provenance
	}
	if page != nil {
		r.Page = *page
	}
	return r, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullableInt maps zero to SQL NULL; page numbers start at 1.
func nullableInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

// isForeignKeyViolation reports whether err is a PostgreSQL foreign key
// violation.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrForeignKeyViolation
}
