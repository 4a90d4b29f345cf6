package usecase

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ragcore/ragcore/internal/core/domain"
	"github.com/ragcore/ragcore/internal/core/ports"
)

// NoContextAnswer is returned without touching the generator when a
// strategy that requires relevant context finds none.
const NoContextAnswer = "No relevant documents found in the knowledge base for this question."

const filteredResultLimit = 3

type QueryConfig struct {
	DefaultTopK      int
	FilteredMinScore float64
}

func (c QueryConfig) withDefaults() QueryConfig {
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = 5
	}
	if c.FilteredMinScore <= 0 {
		c.FilteredMinScore = 0.7
	}
	return c
}

// QueryUseCase implements the retrieval strategies. Plain always
// generates, even from an empty context; filtered and reranked
// short-circuit to NoContextAnswer when nothing clears their floor.
type QueryUseCase struct {
	searcher  ports.Searcher
	reranker  *Reranker
	generator ports.Generator
	cfg       QueryConfig
}

var _ ports.QueryService = (*QueryUseCase)(nil)

func NewQueryUseCase(searcher ports.Searcher, reranker *Reranker, generator ports.Generator, cfg QueryConfig) *QueryUseCase {
	return &QueryUseCase{
		searcher:  searcher,
		reranker:  reranker,
		generator: generator,
		cfg:       cfg.withDefaults(),
	}
}

func (uc *QueryUseCase) AnswerPlain(ctx context.Context, question string, topK int) (*domain.Answer, error) {
	if topK <= 0 {
		topK = uc.cfg.DefaultTopK
	}
	results, contextText, err := uc.searcher.SearchWithRAG(ctx, question, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	text, err := uc.generator.Generate(ctx, buildAnswerPrompt(question, contextText))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return &domain.Answer{Text: text, Sources: results}, nil
}

func (uc *QueryUseCase) AnswerFiltered(ctx context.Context, question string, minScore float64) (*domain.Answer, error) {
	if minScore <= 0 {
		minScore = uc.cfg.FilteredMinScore
	}
	results, err := uc.searcher.Search(ctx, question, domain.SearchOptions{
		TopK:     filteredResultLimit,
		MinScore: minScore,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	if len(results) == 0 {
		return &domain.Answer{Text: NoContextAnswer}, nil
	}

	text, err := uc.generator.Generate(ctx, buildAnswerPrompt(question, buildScoredContext(results)))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return &domain.Answer{Text: text, Sources: results}, nil
}

// AnswerReranked retrieves a pool three times larger than topK under a
// looser score floor (half the filtered floor, never below 0.1), then
// lets the judge pick the head of it.
func (uc *QueryUseCase) AnswerReranked(ctx context.Context, question string, topK int) (*domain.Answer, error) {
	if topK <= 0 {
		topK = uc.cfg.DefaultTopK
	}
	poolFloor := uc.cfg.FilteredMinScore / 2
	if poolFloor < 0.1 {
		poolFloor = 0.1
	}

	pool, err := uc.searcher.Search(ctx, question, domain.SearchOptions{
		TopK:     topK * 3,
		MinScore: poolFloor,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve candidate pool: %w", err)
	}
	if len(pool) == 0 {
		return &domain.Answer{Text: NoContextAnswer}, nil
	}

	reranked := uc.reranker.Rerank(ctx, question, pool, topK)

	text, err := uc.generator.Generate(ctx, buildAnswerPrompt(question, buildRerankedContext(reranked)))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return &domain.Answer{Text: text, Sources: reranked}, nil
}

func (uc *QueryUseCase) AnswerWithoutRAG(ctx context.Context, question string) (string, error) {
	text, err := uc.generator.Generate(ctx, question)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return text, nil
}

// Compare answers the same question with and without retrieval, in
// parallel.
func (uc *QueryUseCase) Compare(ctx context.Context, question string) (*domain.RAGComparison, error) {
	comparison := &domain.RAGComparison{Question: question}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		answer, err := uc.AnswerPlain(gctx, question, uc.cfg.DefaultTopK)
		if err != nil {
			return err
		}
		comparison.WithRAG = *answer
		return nil
	})
	g.Go(func() error {
		text, err := uc.AnswerWithoutRAG(gctx, question)
		if err != nil {
			return err
		}
		comparison.WithoutRAG = text
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return comparison, nil
}

func buildAnswerPrompt(question, contextText string) string {
	if strings.TrimSpace(contextText) == "" {
		return question
	}
	return fmt.Sprintf(`Answer the question using only the context below. If the context does not contain the answer, say so.

Context:
%s

Question: %s

Answer:`, contextText, question)
}
