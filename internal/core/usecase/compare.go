package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ragcore/ragcore/internal/core/domain"
)

var defaultThresholds = []float64{0.5, 0.7, 0.9}

// CompareThresholds sweeps the score floors concurrently, one result
// slot per threshold, and recommends the lowest threshold whose results
// span at least two documents with an average score above 0.7. When no
// threshold qualifies, the configured floor is recommended and flagged
// as the default.
func (uc *QueryUseCase) CompareThresholds(ctx context.Context, question string, thresholds []float64) (*domain.ThresholdReport, error) {
	if len(thresholds) == 0 {
		thresholds = defaultThresholds
	}

	report := &domain.ThresholdReport{
		Question: question,
		Results:  make([]domain.ThresholdResult, len(thresholds)),
	}

	var wg sync.WaitGroup
	wg.Add(len(thresholds))
	for i, threshold := range thresholds {
		go func(slot *domain.ThresholdResult, threshold float64) {
			defer wg.Done()
			*slot = uc.runThreshold(ctx, question, threshold)
		}(&report.Results[i], threshold)
	}
	wg.Wait()

	for _, result := range report.Results {
		if result.Error != "" {
			continue
		}
		if result.Documents >= 2 && result.AvgScore > 0.7 {
			if report.Recommended == 0 || result.Threshold < report.Recommended {
				report.Recommended = result.Threshold
				report.Reason = fmt.Sprintf(
					"threshold %.2f is the lowest with results from %d documents at average score %.2f",
					result.Threshold, result.Documents, result.AvgScore)
			}
		}
	}
	if report.Recommended == 0 {
		report.Recommended = uc.cfg.FilteredMinScore
		report.DefaultUsed = true
		report.Reason = "no threshold produced results from at least two documents with average score above 0.70; falling back to the configured floor"
	}
	return report, nil
}

func (uc *QueryUseCase) runThreshold(ctx context.Context, question string, threshold float64) domain.ThresholdResult {
	result := domain.ThresholdResult{Threshold: threshold}

	results, err := uc.searcher.Search(ctx, question, domain.SearchOptions{
		TopK:     uc.cfg.DefaultTopK,
		MinScore: threshold,
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Documents = countDistinctDocuments(results)
	result.AvgScore = averageScore(results)

	if len(results) == 0 {
		result.Answer = NoContextAnswer
		return result
	}

	answer, err := uc.generator.Generate(ctx, buildAnswerPrompt(question, buildScoredContext(results)))
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Answer = answer
	return result
}

// CompareMethods answers the question with all three strategies
// concurrently, timing each, and picks a verdict from the strength of
// the retrieved evidence.
func (uc *QueryUseCase) CompareMethods(ctx context.Context, question string) (*domain.MethodReport, error) {
	report := &domain.MethodReport{Question: question}

	var wg sync.WaitGroup
	run := func(method string, slot *domain.MethodResult, fn func(context.Context) (*domain.Answer, error)) {
		defer wg.Done()
		started := time.Now()
		answer, err := fn(ctx)
		slot.Method = method
		slot.Duration = time.Since(started)
		if err != nil {
			slot.Error = err.Error()
			return
		}
		slot.Answer = *answer
	}

	wg.Add(3)
	go run("plain", &report.Plain, func(ctx context.Context) (*domain.Answer, error) {
		return uc.AnswerPlain(ctx, question, uc.cfg.DefaultTopK)
	})
	go run("filtered", &report.Filtered, func(ctx context.Context) (*domain.Answer, error) {
		return uc.AnswerFiltered(ctx, question, uc.cfg.FilteredMinScore)
	})
	go run("reranked", &report.Reranked, func(ctx context.Context) (*domain.Answer, error) {
		return uc.AnswerReranked(ctx, question, uc.cfg.DefaultTopK)
	})
	wg.Wait()

	report.Verdict = methodVerdict(report)
	return report, nil
}

func methodVerdict(report *domain.MethodReport) string {
	plainHits := len(report.Plain.Answer.Sources)
	filteredHits := len(report.Filtered.Answer.Sources)
	rerankedHits := len(report.Reranked.Answer.Sources)

	if plainHits == 0 && filteredHits == 0 && rerankedHits == 0 {
		return "no method retrieved relevant documents; the knowledge base likely does not cover this question"
	}
	if rerankedHits > 0 && report.Reranked.Error == "" && report.Reranked.Answer.Sources[0].RerankScore > 0.8 {
		return "reranked: the relevance judge scored its top result above 0.8"
	}
	filteredDocs := countDistinctDocuments(report.Filtered.Answer.Sources)
	if filteredDocs >= 2 && report.Filtered.Error == "" && report.Filtered.Answer.Sources[0].Score > 0.7 {
		return "filtered: results from multiple documents cleared the similarity floor with a strong top score"
	}
	return "inconclusive: no method produced clearly stronger evidence than the others"
}

func countDistinctDocuments(results []domain.RankedResult) int {
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		seen[r.DocumentID] = struct{}{}
	}
	return len(seen)
}

func averageScore(results []domain.RankedResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	return sum / float64(len(results))
}
