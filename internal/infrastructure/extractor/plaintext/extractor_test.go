package plaintext

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ragcore/ragcore/internal/core/domain"
)

func TestExtractTrimsWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("\n  plain body  \n\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	text, err := New().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "plain body" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractMissingFileIsNotFound(t *testing.T) {
	_, err := New().Extract(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found kind, got %v", err)
	}
}

func TestExtractBinaryIsValidationError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.txt")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x80}, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := New().Extract(context.Background(), path)
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation kind, got %v", err)
	}
}
