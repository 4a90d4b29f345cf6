package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ragcore/ragcore/internal/core/domain"
	"github.com/ragcore/ragcore/internal/core/ports"
)

// Store is the PostgreSQL backend for documents, chunks and embeddings.
// Vectors are stored as little-endian float32 BYTEA, the same wire shape
// the SQLite backend uses, so the two backends are interchangeable.
type Store struct {
	db *sql.DB
}

var _ ports.VectorStore = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026090101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	file_path TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	indexed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	position INTEGER NOT NULL,
	heading TEXT NOT NULL DEFAULT '',
	start_offset INTEGER NOT NULL,
	end_offset INTEGER NOT NULL,
	token_count INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_document_position ON chunks(document_id, position);

CREATE TABLE IF NOT EXISTS embeddings (
	chunk_id TEXT PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
	vector BYTEA NOT NULL,
	model TEXT NOT NULL,
	dimension INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE file_path = $1 AND id != $2`,
		doc.FilePath, doc.ID,
	); err != nil {
		return fmt.Errorf("replace previous document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO documents (id, file_path, title, metadata, created_at, indexed_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	file_path = EXCLUDED.file_path,
	title = EXCLUDED.title,
	metadata = EXCLUDED.metadata,
	indexed_at = EXCLUDED.indexed_at
`,
		doc.ID, doc.FilePath, doc.Title, metadata, doc.CreatedAt, nullableTime(doc.IndexedAt),
	); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, chunk := range chunks {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO chunks (id, document_id, content, position, heading, start_offset, end_offset, token_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`,
			chunk.ID, chunk.DocumentID, chunk.Content, chunk.Position,
			chunk.Heading, chunk.StartOffset, chunk.EndOffset, chunk.TokenCount,
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunks: %w", err)
	}
	return nil
}

func (s *Store) SaveEmbedding(ctx context.Context, emb domain.Embedding) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO embeddings (chunk_id, vector, model, dimension)
VALUES ($1, $2, $3, $4)
ON CONFLICT (chunk_id) DO UPDATE SET
	vector = EXCLUDED.vector,
	model = EXCLUDED.model,
	dimension = EXCLUDED.dimension
`,
		emb.ChunkID, float32SliceToBytes(emb.Vector), emb.Model, emb.Dimension,
	)
	if err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}
	return nil
}

func (s *Store) MarkIndexed(ctx context.Context, documentID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET indexed_at = $2 WHERE id = $1`, documentID, at)
	if err != nil {
		return fmt.Errorf("mark indexed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark indexed rows: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "mark indexed", fmt.Errorf("document %s", documentID))
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, file_path, title, metadata, created_at, indexed_at
FROM documents
WHERE id = $1
`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("document %s", id))
		}
		return nil, err
	}
	return doc, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, file_path, title, metadata, created_at, indexed_at
FROM documents
ORDER BY created_at, id
`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (s *Store) GetChunksForDocument(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT c.id, c.document_id, c.content, c.position, c.heading, c.start_offset, c.end_offset, c.token_count, d.title
FROM chunks c
JOIN documents d ON d.id = c.document_id
WHERE c.document_id = $1
ORDER BY c.position
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var chunk domain.Chunk
		if err := rows.Scan(
			&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.Position,
			&chunk.Heading, &chunk.StartOffset, &chunk.EndOffset, &chunk.TokenCount,
			&chunk.DocumentTitle,
		); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document rows: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "delete document", fmt.Errorf("document %s", id))
	}
	return nil
}

func (s *Store) AllEmbeddings(ctx context.Context) ([]domain.EmbeddedChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT e.chunk_id, e.vector, e.model, e.dimension,
	c.document_id, c.content, c.position, c.heading, c.start_offset, c.end_offset, c.token_count,
	d.title, d.file_path
FROM embeddings e
JOIN chunks c ON c.id = e.chunk_id
JOIN documents d ON d.id = c.document_id
ORDER BY d.file_path, c.position
`)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	defer rows.Close()

	var out []domain.EmbeddedChunk
	for rows.Next() {
		var ec domain.EmbeddedChunk
		var blob []byte
		if err := rows.Scan(
			&ec.Chunk.ID, &blob, &ec.Model, &ec.Dimension,
			&ec.Chunk.DocumentID, &ec.Chunk.Content, &ec.Chunk.Position,
			&ec.Chunk.Heading, &ec.Chunk.StartOffset, &ec.Chunk.EndOffset, &ec.Chunk.TokenCount,
			&ec.Chunk.DocumentTitle, &ec.DocumentPath,
		); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		ec.Vector = bytesToFloat32Slice(blob)
		// Stored dimension must match the decoded vector length.
		if len(ec.Vector) != ec.Dimension {
			slog.Warn("skipping_embedding_with_bad_dimension",
				"chunk_id", ec.Chunk.ID,
				"dimension", ec.Dimension,
				"vector_length", len(ec.Vector),
			)
			continue
		}
		out = append(out, ec)
	}
	return out, rows.Err()
}

func (s *Store) Stats(ctx context.Context) (*domain.StoreStats, error) {
	stats := &domain.StoreStats{}
	row := s.db.QueryRowContext(ctx, `
SELECT
	(SELECT COUNT(*) FROM documents),
	(SELECT COUNT(*) FROM chunks),
	(SELECT COUNT(*) FROM embeddings),
	COALESCE(pg_total_relation_size('documents'), 0)
	+ COALESCE(pg_total_relation_size('chunks'), 0)
	+ COALESCE(pg_total_relation_size('embeddings'), 0)
`)
	if err := row.Scan(&stats.Documents, &stats.Chunks, &stats.Embeddings, &stats.StorageBytes); err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var metadata []byte
	var indexedAt sql.NullTime
	if err := row.Scan(&doc.ID, &doc.FilePath, &doc.Title, &metadata, &doc.CreatedAt, &indexedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if indexedAt.Valid {
		doc.IndexedAt = indexedAt.Time
	}
	return &doc, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
