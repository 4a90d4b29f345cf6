package config

import "testing"

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("CHUNK_MAX_SIZE", "")
	t.Setenv("CHUNK_STRATEGY", "")
	t.Setenv("EMBED_BATCH_SIZE", "")
	t.Setenv("SEARCH_TOP_K", "")
	t.Setenv("SEARCH_MIN_SCORE", "")

	cfg := Load()
	if cfg.ChunkMaxSize != 1000 {
		t.Fatalf("expected default chunk max size 1000, got %d", cfg.ChunkMaxSize)
	}
	if cfg.ChunkStrategy != "recursive" {
		t.Fatalf("expected default chunk strategy recursive, got %q", cfg.ChunkStrategy)
	}
	if cfg.EmbedBatchSize != 16 {
		t.Fatalf("expected default embed batch size 16, got %d", cfg.EmbedBatchSize)
	}
	if cfg.SearchTopK != 5 {
		t.Fatalf("expected default top k 5, got %d", cfg.SearchTopK)
	}
	if cfg.SearchMinScore != 0.7 {
		t.Fatalf("expected default min score 0.7, got %f", cfg.SearchMinScore)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("CHUNK_MAX_SIZE", "600")
	t.Setenv("CHUNK_PRESERVE_HEADINGS", "false")
	t.Setenv("EMBED_MAX_RETRIES", "5")
	t.Setenv("SEARCH_MIN_SCORE", "0.55")
	t.Setenv("STORAGE_BACKEND", "postgres")

	cfg := Load()
	if cfg.ChunkMaxSize != 600 {
		t.Fatalf("expected chunk max size override, got %d", cfg.ChunkMaxSize)
	}
	if cfg.ChunkPreserveHeadings {
		t.Fatalf("expected preserve headings disabled")
	}
	if cfg.EmbedMaxRetries != 5 {
		t.Fatalf("expected embed max retries 5, got %d", cfg.EmbedMaxRetries)
	}
	if cfg.SearchMinScore != 0.55 {
		t.Fatalf("expected min score 0.55, got %f", cfg.SearchMinScore)
	}
	if cfg.StorageBackend != "postgres" {
		t.Fatalf("expected storage backend postgres, got %q", cfg.StorageBackend)
	}
}

func TestLoadFallsBackOnUnparsableValues(t *testing.T) {
	t.Setenv("EMBED_BATCH_SIZE", "not-a-number")
	t.Setenv("SEARCH_MIN_SCORE", "lots")

	cfg := Load()
	if cfg.EmbedBatchSize != 16 {
		t.Fatalf("expected fallback batch size 16, got %d", cfg.EmbedBatchSize)
	}
	if cfg.SearchMinScore != 0.7 {
		t.Fatalf("expected fallback min score 0.7, got %f", cfg.SearchMinScore)
	}
}
