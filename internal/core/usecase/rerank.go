package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ragcore/ragcore/internal/core/domain"
	"github.com/ragcore/ragcore/internal/core/ports"
)

const rerankPassageLimit = 500

// Reranker rescores retrieval candidates with an LLM relevance judgment.
// Judgments run concurrently, each under its own deadline. A judge that
// cannot be reached scores a neutral 0.5; a reply that parses to nothing
// scores 0.0. The asymmetry is deliberate: transport trouble says nothing
// about the passage, an unparseable verdict usually does.
type Reranker struct {
	judge   ports.RelevanceJudge
	timeout time.Duration
}

func NewReranker(judge ports.RelevanceJudge, timeout time.Duration) *Reranker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Reranker{judge: judge, timeout: timeout}
}

func (r *Reranker) Rerank(ctx context.Context, query string, results []domain.RankedResult, topK int) []domain.RankedResult {
	if len(results) == 0 {
		return results
	}

	scored := make([]domain.RankedResult, len(results))
	copy(scored, results)

	var wg sync.WaitGroup
	for i := range scored {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scored[i].RerankScore = r.judgeOne(ctx, query, scored[i])
		}(i)
	}
	wg.Wait()

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RerankScore > scored[j].RerankScore
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored
}

func (r *Reranker) judgeOne(ctx context.Context, query string, result domain.RankedResult) float64 {
	passage := result.Content
	if len(passage) > rerankPassageLimit {
		passage = passage[:rerankPassageLimit]
	}

	judgeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reply, err := r.judge.Judge(judgeCtx, query, passage)
	if err != nil {
		slog.Warn("rerank_judgment_unavailable", "chunk_id", result.ChunkID, "error", err)
		return 0.5
	}

	score, ok := parseRelevanceScore(reply)
	if !ok {
		slog.Warn("rerank_reply_unparseable", "chunk_id", result.ChunkID, "reply", reply)
		return 0.0
	}
	return score
}

// parseRelevanceScore pulls the first number out of a model reply and
// clamps it to [0, 1].
func parseRelevanceScore(reply string) (float64, bool) {
	for _, field := range strings.Fields(reply) {
		field = strings.Trim(field, ".,;:!?()[]\"'")
		score, err := strconv.ParseFloat(field, 64)
		if err != nil {
			continue
		}
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		return score, true
	}
	return 0, false
}
