package ollama

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ragcore/ragcore/internal/infrastructure/resilience"
)

type Options struct {
	EmbedTimeout   time.Duration
	GenTimeout     time.Duration
	MaxRetries     int
	RequestsPerSec float64
}

func defaultOptions() Options {
	return Options{
		EmbedTimeout:   30 * time.Second,
		GenTimeout:     60 * time.Second,
		MaxRetries:     3,
		RequestsPerSec: 20,
	}
}

// Client talks to a single Ollama server. All adapters in this package
// (Embedder, Generator, Judge) share one client so they share its rate
// limiter and circuit breakers.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
	limiter    *rate.Limiter

	embedTimeout time.Duration
	genTimeout   time.Duration
}

func New(baseURL, genModel, embedModel string, opts Options) *Client {
	def := defaultOptions()
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = def.EmbedTimeout
	}
	if opts.GenTimeout <= 0 {
		opts.GenTimeout = def.GenTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = def.RequestsPerSec
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		genModel:     genModel,
		embedModel:   embedModel,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		executor:     resilience.NewExecutor(resilience.EmbeddingConfig(opts.MaxRetries)),
		limiter:      rate.NewLimiter(rate.Limit(opts.RequestsPerSec), int(opts.RequestsPerSec)+1),
		embedTimeout: opts.EmbedTimeout,
		genTimeout:   opts.GenTimeout,
	}
}
