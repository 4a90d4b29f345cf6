package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ragcore/ragcore/internal/core/domain"
	"github.com/ragcore/ragcore/internal/core/ports"
)

// Store keeps documents, chunks and embedding vectors in a single SQLite
// file. Deleting a document cascades through its chunks to their
// embeddings via foreign keys.
type Store struct {
	db   *sql.DB
	path string
}

var _ ports.VectorStore = (*Store)(nil)

func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "ragcore.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	file_path TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	indexed_at TIMESTAMP
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
	vector BLOB NOT NULL,
	model TEXT NOT NULL,
	dimension INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model);
`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

// SaveDocument inserts the document, replacing any previous document
// indexed from the same file path. The replacement cascades, so stale
// chunks and embeddings of the old version disappear with it.
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
		`DELETE FROM documents WHERE file_path = ? AND id != ?`,
		doc.FilePath, doc.ID,
	); err != nil {
		return fmt.Errorf("replace previous document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO documents (id, file_path, title, metadata, created_at, indexed_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	file_path = excluded.file_path,
	title = excluded.title,
	metadata = excluded.metadata,
	indexed_at = excluded.indexed_at
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

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO chunks (id, document_id, content, position, heading, start_offset, end_offset, token_count)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx,
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
VALUES (?, ?, ?, ?)
ON CONFLICT(chunk_id) DO UPDATE SET
	vector = excluded.vector,
	model = excluded.model,
	dimension = excluded.dimension
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
		`UPDATE documents SET indexed_at = ? WHERE id = ?`, at, documentID)
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
WHERE id = ?
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
WHERE c.document_id = ?
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
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
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
	(SELECT COUNT(*) FROM embeddings)
`)
	if err := row.Scan(&stats.Documents, &stats.Chunks, &stats.Embeddings); err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}
	if info, err := os.Stat(s.path); err == nil {
		stats.StorageBytes = info.Size()
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
