package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ragcore/ragcore/internal/core/domain"
	"github.com/ragcore/ragcore/internal/core/ports"
	"github.com/ragcore/ragcore/internal/observability/metrics"
)

type Router struct {
	indexer  ports.DocumentIndexer
	searcher ports.Searcher
	query    ports.QueryService
	embedder ports.Embedder
	metrics  *metrics.HTTPServerMetrics
	service  string
}

func NewRouter(
	indexer ports.DocumentIndexer,
	searcher ports.Searcher,
	query ports.QueryService,
	embedder ports.Embedder,
	httpMetrics *metrics.HTTPServerMetrics,
	service string,
) *Router {
	return &Router{
		indexer:  indexer,
		searcher: searcher,
		query:    query,
		embedder: embedder,
		metrics:  httpMetrics,
		service:  service,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.documents)
	mux.HandleFunc("/v1/documents/", rt.documentByID)
	mux.HandleFunc("/v1/stats", rt.stats)
	mux.HandleFunc("/v1/search", rt.search)
	mux.HandleFunc("/v1/query", rt.answer)
	mux.HandleFunc("/v1/compare", rt.compare)
	mux.HandleFunc("/v1/compare/thresholds", rt.compareThresholds)
	mux.HandleFunc("/v1/compare/methods", rt.compareMethods)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	healthy, err := rt.embedder.Healthy(r.Context())
	switch {
	case err != nil:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
	case !healthy:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  "embedding model is not installed",
		})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (rt *Router) documents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		docs, err := rt.indexer.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if docs == nil {
			docs = []domain.Document{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
	case http.MethodPost:
		var req struct {
			FilePath string `json:"file_path"`
			Async    bool   `json:"async"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		if strings.TrimSpace(req.FilePath) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file_path is required"})
			return
		}

		if req.Async {
			if err := rt.indexer.RequestIndex(r.Context(), req.FilePath); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "file_path": req.FilePath})
			return
		}

		doc, err := rt.indexer.Index(r.Context(), req.FilePath)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, doc)
	default:
		writeMethodNotAllowed(w)
	}
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch {
	case sub == "chunks" && r.Method == http.MethodGet:
		chunks, err := rt.indexer.Chunks(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if chunks == nil {
			chunks = []domain.Chunk{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks})
	case sub != "":
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown resource"})
	case r.Method == http.MethodGet:
		doc, err := rt.indexer.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case r.Method == http.MethodDelete:
		if err := rt.indexer.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}

func (rt *Router) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	stats, err := rt.indexer.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		Query       string   `json:"query"`
		TopK        int      `json:"top_k"`
		MinScore    float64  `json:"min_score"`
		DocumentIDs []string `json:"document_ids"`
		Tags        []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	results, err := rt.searcher.Search(r.Context(), req.Query, domain.SearchOptions{
		TopK:     req.TopK,
		MinScore: req.MinScore,
		Filter: domain.SearchFilter{
			DocumentIDs: req.DocumentIDs,
			Tags:        req.Tags,
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []domain.RankedResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		Question string  `json:"question"`
		Strategy string  `json:"strategy"`
		TopK     int     `json:"top_k"`
		MinScore float64 `json:"min_score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = "plain"
	}

	start := time.Now()
	var answer *domain.Answer
	var err error
	switch strategy {
	case "plain":
		answer, err = rt.query.AnswerPlain(r.Context(), req.Question, req.TopK)
	case "filtered":
		answer, err = rt.query.AnswerFiltered(r.Context(), req.Question, req.MinScore)
	case "reranked":
		answer, err = rt.query.AnswerReranked(r.Context(), req.Question, req.TopK)
	case "none":
		var text string
		text, err = rt.query.AnswerWithoutRAG(r.Context(), req.Question)
		if err == nil {
			answer = &domain.Answer{Text: text}
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown strategy " + strategy})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordRetrieval(rt.service, strategy, len(answer.Sources), time.Since(start))
	}
	if answer.Sources == nil {
		answer.Sources = []domain.RankedResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"strategy": strategy, "answer": answer})
}

func (rt *Router) compare(w http.ResponseWriter, r *http.Request) {
	question, ok := decodeQuestion(w, r)
	if !ok {
		return
	}
	comparison, err := rt.query.Compare(r.Context(), question)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comparison)
}

func (rt *Router) compareThresholds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		Question   string    `json:"question"`
		Thresholds []float64 `json:"thresholds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	report, err := rt.query.CompareThresholds(r.Context(), req.Question, req.Thresholds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) compareMethods(w http.ResponseWriter, r *http.Request) {
	question, ok := decodeQuestion(w, r)
	if !ok {
		return
	}
	report, err := rt.query.CompareMethods(r.Context(), question)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func decodeQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return "", false
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return "", false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return "", false
	}
	return req.Question, true
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
