package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ragcore/ragcore/internal/core/domain"
	"github.com/ragcore/ragcore/internal/core/ports"
)

// Embedder produces embedding vectors through the Ollama embeddings API,
// one text per request. Failed items in a batch come back as empty
// vectors so positions always line up with the input.
type Embedder struct {
	client    *Client
	batchSize int
}

var _ ports.Embedder = (*Embedder)(nil)

func NewEmbedder(client *Client, batchSize int) *Embedder {
	if batchSize <= 0 {
		batchSize = 16
	}
	return &Embedder{client: client, batchSize: batchSize}
}

func (e *Embedder) Model() string {
	return e.client.embedModel
}

func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrValidation, "embed text", fmt.Errorf("text is empty"))
	}

	var vector []float32
	err := e.client.executor.Execute(ctx, "embed", func(ctx context.Context) error {
		if err := e.client.limiter.Wait(ctx); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, e.client.embedTimeout)
		defer cancel()

		request := map[string]any{
			"model":  e.client.embedModel,
			"prompt": text,
		}
		var response struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := e.client.postJSON(callCtx, "/api/embeddings", request, &response, "embed"); err != nil {
			return err
		}
		vector = response.Embedding
		return nil
	}, classifyOllamaError)

	if err != nil {
		if isConnectionFailure(err) {
			return nil, domain.WrapError(domain.ErrProviderUnavailable, "embed text", err)
		}
		return nil, domain.WrapError(domain.ErrEmbeddingFailed, "embed text", err)
	}
	if len(vector) == 0 {
		return nil, domain.WrapError(domain.ErrEmbeddingFailed, "embed text", fmt.Errorf("server returned an empty embedding"))
	}
	return vector, nil
}

// EmbedBatch embeds texts in groups of batchSize. Texts inside one group
// run concurrently; groups run one after another so a slow server is
// never hit with the whole corpus at once. The result always has one
// entry per input, with an empty vector standing in for a failed item.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	if len(texts) == 0 {
		return vectors, nil
	}

	for start := 0; start < len(texts); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return vectors, err
		}
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				vector, err := e.EmbedOne(ctx, texts[i])
				if err != nil {
					slog.Warn("batch_item_embedding_failed", "index", i, "error", err)
					vectors[i] = []float32{}
					return
				}
				vectors[i] = vector
			}(i)
		}
		wg.Wait()
	}
	return vectors, nil
}

// Healthy asks the server for its installed models. A reachable server
// without the embedding model reports unhealthy with a nil error; an
// unreachable server is an error.
func (e *Embedder) Healthy(ctx context.Context) (bool, error) {
	var response struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := e.client.getJSON(ctx, "/api/tags", &response, "list models"); err != nil {
		return false, domain.WrapError(domain.ErrProviderUnavailable, "list models", err)
	}

	for _, m := range response.Models {
		if modelMatches(m.Name, e.client.embedModel) {
			return true, nil
		}
	}
	return false, nil
}

// modelMatches compares model names ignoring the ":tag" suffix, so
// "nomic-embed-text" matches an installed "nomic-embed-text:latest".
func modelMatches(installed, wanted string) bool {
	if installed == wanted {
		return true
	}
	baseInstalled, _, _ := strings.Cut(installed, ":")
	baseWanted, _, _ := strings.Cut(wanted, ":")
	return baseInstalled == baseWanted
}
