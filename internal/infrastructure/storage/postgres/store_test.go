package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ragcore/ragcore/internal/core/domain"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &Store{db: db}, mock, func() { _ = db.Close() }
}

func TestGetDocumentReturnsDomainNotFound(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, file_path, title, metadata").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetDocument(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found kind, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteDocumentReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM documents").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteDocument(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found kind, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkIndexedReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkIndexed(context.Background(), "missing", time.Now())
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found kind, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveChunksRollsBackOnInsertFailure(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO chunks").
		WithArgs("c1", "d1", "content a", 0, "", 0, 9, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO chunks").
		WithArgs("c2", "d1", "content b", 1, "", 9, 18, 3).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := store.SaveChunks(context.Background(), []domain.Chunk{
		{ID: "c1", DocumentID: "d1", Content: "content a", Position: 0, StartOffset: 0, EndOffset: 9, TokenCount: 3},
		{ID: "c2", DocumentID: "d1", Content: "content b", Position: 1, StartOffset: 9, EndOffset: 18, TokenCount: 3},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveDocumentReplacesSamePathInOneTransaction(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM documents WHERE file_path").
		WithArgs("/kb/a.md", "new-id").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO documents").
		WithArgs("new-id", "/kb/a.md", "Title", sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.SaveDocument(context.Background(), &domain.Document{
		ID:        "new-id",
		FilePath:  "/kb/a.md",
		Title:     "Title",
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("SaveDocument() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAllEmbeddingsSkipsDimensionMismatchedRows(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	blob := float32SliceToBytes([]float32{1, 0, 0.5})
	rows := sqlmock.NewRows([]string{
		"chunk_id", "vector", "model", "dimension",
		"document_id", "content", "position", "heading", "start_offset", "end_offset", "token_count",
		"title", "file_path",
	}).
		AddRow("c1", blob, "embed", 5, "d1", "text", 0, "", 0, 4, 1, "Doc", "/kb/a.md").
		AddRow("c2", blob, "embed", 3, "d1", "text", 1, "", 4, 8, 1, "Doc", "/kb/a.md")

	mock.ExpectQuery("SELECT e.chunk_id, e.vector").WillReturnRows(rows)

	got, err := store.AllEmbeddings(context.Background())
	if err != nil {
		t.Fatalf("AllEmbeddings() error = %v", err)
	}
	if len(got) != 1 || got[0].Chunk.ID != "c2" {
		t.Fatalf("expected only the consistent row, got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAllEmbeddingsDecodesVectorBlob(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	blob := float32SliceToBytes([]float32{1, 0, 0.5})
	rows := sqlmock.NewRows([]string{
		"chunk_id", "vector", "model", "dimension",
		"document_id", "content", "position", "heading", "start_offset", "end_offset", "token_count",
		"title", "file_path",
	}).AddRow("c1", blob, "embed", 3, "d1", "text", 0, "Section", 0, 4, 1, "Doc", "/kb/a.md")

	mock.ExpectQuery("SELECT e.chunk_id, e.vector").WillReturnRows(rows)

	got, err := store.AllEmbeddings(context.Background())
	if err != nil {
		t.Fatalf("AllEmbeddings() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one row, got %d", len(got))
	}
	ec := got[0]
	if len(ec.Vector) != 3 || ec.Vector[2] != 0.5 {
		t.Fatalf("vector decode failed: %v", ec.Vector)
	}
	if ec.DocumentPath != "/kb/a.md" || ec.Chunk.DocumentTitle != "Doc" {
		t.Fatalf("provenance missing: %+v", ec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
