package domain

import "time"

type SearchFilter struct {
	DocumentIDs []string `json:"document_ids,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type SearchOptions struct {
	TopK     int          `json:"top_k"`
	MinScore float64      `json:"min_score"`
	Filter   SearchFilter `json:"filter"`
}

// RankedResult is one retrieval hit with provenance. Rank is 1-based and
// assigned after filtering and sorting. RerankScore is populated only by the
// reranked strategy.
type RankedResult struct {
	Rank          int     `json:"rank"`
	Score         float64 `json:"score"`
	RerankScore   float64 `json:"rerank_score,omitempty"`
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	DocumentPath  string  `json:"document_path"`
	Heading       string  `json:"heading,omitempty"`
	Content       string  `json:"content"`
	Position      int     `json:"position"`
}

type Answer struct {
	Text    string         `json:"text"`
	Sources []RankedResult `json:"sources"`
}

// RAGComparison pairs the answers of a plain-RAG and a no-RAG run of the
// same question.
type RAGComparison struct {
	Question   string `json:"question"`
	WithRAG    Answer `json:"with_rag"`
	WithoutRAG string `json:"without_rag"`
}

type ThresholdResult struct {
	Threshold float64 `json:"threshold"`
	Documents int     `json:"documents"`
	AvgScore  float64 `json:"avg_score"`
	Answer    string  `json:"answer,omitempty"`
	Error     string  `json:"error,omitempty"`
}

type ThresholdReport struct {
	Question    string            `json:"question"`
	Results     []ThresholdResult `json:"results"`
	Recommended float64           `json:"recommended"`
	Reason      string            `json:"reason"`
	DefaultUsed bool              `json:"default_used"`
}

type MethodResult struct {
	Method   string        `json:"method"`
	Answer   Answer        `json:"answer"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

type MethodReport struct {
	Question string       `json:"question"`
	Plain    MethodResult `json:"plain"`
	Filtered MethodResult `json:"filtered"`
	Reranked MethodResult `json:"reranked"`
	Verdict  string       `json:"verdict"`
}
